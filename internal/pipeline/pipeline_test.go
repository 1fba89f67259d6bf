package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	twitter "github.com/anatolykoptev/go-twitter-digest"
	"github.com/anatolykoptev/go-twitter-digest/internal/config"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type response struct {
	status  int
	body    string
	headers map[string]string
	err     error
}

type fakeDoer struct {
	responses []response
	calls     int
}

func (f *fakeDoer) DoWithHeaderOrder(_, _ string, _ map[string]string, _ io.Reader, _ []string) ([]byte, map[string]string, int, error) {
	f.calls++
	if len(f.responses) == 0 {
		return nil, nil, 0, errors.New("unexpected request")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	if r.err != nil {
		return nil, nil, 0, r.err
	}
	return []byte(r.body), r.headers, r.status, nil
}

type fixtureTweet struct {
	id     string
	handle string
	likes  int
	age    time.Duration
	text   string
}

func entry(ft fixtureTweet) string {
	text := ft.text
	if text == "" {
		text = "tweet " + ft.id
	}
	return fmt.Sprintf(`{"entryId":"tweet-%[1]s","content":{"itemContent":{"tweet_results":{"result":{
		"__typename":"Tweet","rest_id":"%[1]s",
		"core":{"user_results":{"result":{"core":{"screen_name":"%[2]s","name":"Name %[2]s"}}}},
		"legacy":{"full_text":%[5]q,"created_at":"%[4]s","favorite_count":%[3]d,"retweet_count":2}
	}}}}}`, ft.id, ft.handle, ft.likes, now.Add(-ft.age).Format("Mon Jan 02 15:04:05 -0700 2006"), text)
}

func page(cursor string, tweets ...fixtureTweet) response {
	var entries []string
	for _, ft := range tweets {
		entries = append(entries, entry(ft))
	}
	if cursor != "" {
		entries = append(entries, fmt.Sprintf(`{"entryId":"cursor-bottom","content":{"cursorType":"Bottom","value":%q}}`, cursor))
	}
	return response{status: 200, body: `{"data":{"home":{"home_timeline_urt":{"instructions":[{"type":"TimelineAddEntries","entries":[` +
		strings.Join(entries, ",") + `]}]}}}}`}
}

type harness struct {
	cfg     *config.Config
	doer    *fakeDoer
	opened  []string
	logs    bytes.Buffer
	persist func(twitter.Credentials) error
}

func newHarness(t *testing.T, responses ...response) *harness {
	t.Helper()
	dir := t.TempDir()
	cats := filepath.Join(dir, "categories.yaml")
	require.NoError(t, os.WriteFile(cats, []byte("AI / ML & Research:\n  - karpathy\n"), 0o600))

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.TimelineQueryID = "abcDEF123_-xyz"
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.CategoriesFile = cats
	cfg.PageDelay = 0

	return &harness{cfg: cfg, doer: &fakeDoer{responses: responses}}
}

func (h *harness) run(t *testing.T) (*Result, error) {
	t.Helper()
	r, err := New(Options{
		Config:        h.cfg,
		Credentials:            twitter.Credentials{AuthToken: "auth", CT0: "ct0"},
		OnCredentialsRefreshed: h.persist,
		ClientOptions: []twitter.Option{twitter.WithDoer(h.doer), twitter.WithoutJitter()},
		Logger:        slog.New(slog.NewJSONHandler(&h.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Now:           func() time.Time { return now },
		Open: func(path string) error {
			h.opened = append(h.opened, path)
			return nil
		},
	})
	require.NoError(t, err)
	return r.Execute(context.Background())
}

func (h *harness) outputFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.cfg.OutputDir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExecuteWritesDigest(t *testing.T) {
	h := newHarness(t,
		page("c1",
			fixtureTweet{id: "1", handle: "karpathy", likes: 75, age: 2 * time.Hour},
			fixtureTweet{id: "2", handle: "randomdev", likes: 50, age: 23 * time.Hour},
			fixtureTweet{id: "3", handle: "lowlikes", likes: 10, age: time.Hour},
		),
		page("c2",
			fixtureTweet{id: "4", handle: "KARPATHY", likes: 500, age: 3 * time.Hour},
			fixtureTweet{id: "5", handle: "rt", likes: 900, age: time.Hour, text: "RT @someone: hello"},
		),
		page("",
			fixtureTweet{id: "6", handle: "other", likes: 60, age: 20 * time.Hour},
		),
	)

	res, err := h.run(t)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 6, res.Stats.Fresh)
	assert.True(t, res.Written())
	assert.Equal(t, 2, res.Categorized)
	assert.ElementsMatch(t, []string{"2026-10-18_digest.md", "2026-10-18_digest.html"}, h.outputFiles(t))
	assert.Equal(t, []string{res.HTMLPath}, h.opened)

	require.Len(t, res.Digest.Sections, 2)
	assert.Equal(t, "AI / ML & Research", res.Digest.Sections[0].Name)
	assert.Equal(t, "4", res.Digest.Sections[0].Tweets[0].ID)
	assert.Equal(t, "1", res.Digest.Sections[0].Tweets[1].ID)
	assert.Equal(t, "Other", res.Digest.Sections[1].Name)
	assert.False(t, res.Digest.Incomplete)

	md, err := os.ReadFile(res.MarkdownPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "**Total tweets:** 4")
	assert.NotContains(t, string(md), "RT @someone")
	assert.NotContains(t, string(md), "lowlikes")
}

func TestExecuteAuthFailureOnFirstPage(t *testing.T) {
	h := newHarness(t, response{status: 401, body: `{"errors":[{"code":32,"message":"Could not authenticate you."}]}`})

	res, err := h.run(t)
	assert.Nil(t, res)
	var authErr *twitter.AuthenticationError
	require.True(t, errors.As(err, &authErr), "got %v", err)
	assert.Empty(t, h.outputFiles(t), "no files may be written on auth failure")
	assert.Empty(t, h.opened)
	assert.Equal(t, 1, h.doer.calls)
}

func TestExecuteAuthFailureAfterFirstPage(t *testing.T) {
	h := newHarness(t,
		page("c1", fixtureTweet{id: "1", handle: "karpathy", likes: 75, age: time.Hour}),
		response{status: 403, body: `{}`},
	)

	_, err := h.run(t)
	var authErr *twitter.AuthenticationError
	require.True(t, errors.As(err, &authErr), "got %v", err)
	assert.Empty(t, h.outputFiles(t))
}

func TestExecuteTransientFailureOnFirstPage(t *testing.T) {
	h := newHarness(t, response{status: 503, body: "upstream unavailable"})

	_, err := h.run(t)
	var transient *twitter.TransientFetchError
	require.True(t, errors.As(err, &transient), "got %v", err)
	assert.Equal(t, 1, transient.Page)
	assert.Empty(t, h.outputFiles(t))
}

func TestExecutePartialSuccessRendersIncompleteDigest(t *testing.T) {
	h := newHarness(t,
		page("c1", fixtureTweet{id: "1", handle: "karpathy", likes: 75, age: time.Hour}),
		response{err: errors.New("connection reset by peer")},
	)

	res, err := h.run(t)
	require.NoError(t, err)
	require.True(t, res.Written())
	assert.True(t, res.Digest.Incomplete)
	assert.Contains(t, res.Digest.Note, "Stopped after 1 page")

	md, err := os.ReadFile(res.MarkdownPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "fetching was incomplete")
	assert.Contains(t, string(md), "connection reset by peer")
}

func TestExecuteMalformedPageStopsFetching(t *testing.T) {
	h := newHarness(t,
		page("c1", fixtureTweet{id: "1", handle: "karpathy", likes: 75, age: time.Hour}),
		response{status: 200, body: `<html>maintenance</html>`},
		page("", fixtureTweet{id: "2", handle: "karpathy", likes: 75, age: time.Hour}),
	)

	res, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, h.doer.calls)
	assert.True(t, res.Digest.Incomplete)
	assert.Equal(t, 1, res.Digest.Total())
}

func TestExecuteStaleQueryID(t *testing.T) {
	h := newHarness(t, response{status: 404, body: ""})

	_, err := h.run(t)
	var cfgErr *twitter.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "timeline_query_id", cfgErr.Field)
}

func TestExecuteNoQualifyingTweets(t *testing.T) {
	h := newHarness(t, page("", fixtureTweet{id: "1", handle: "karpathy", likes: 3, age: time.Hour}))

	res, err := h.run(t)
	require.NoError(t, err)
	assert.False(t, res.Written())
	assert.Nil(t, res.Digest)
	assert.Empty(t, h.outputFiles(t))
	assert.Empty(t, h.opened)
}

func TestExecuteStopsAtCutoff(t *testing.T) {
	h := newHarness(t,
		page("c1",
			fixtureTweet{id: "1", handle: "karpathy", likes: 75, age: time.Hour},
			fixtureTweet{id: "2", handle: "karpathy", likes: 75, age: 30 * time.Hour},
		),
		page("", fixtureTweet{id: "3", handle: "karpathy", likes: 75, age: 31 * time.Hour}),
	)

	res, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, h.doer.calls)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, 1, res.Digest.Total())
}

func TestExecuteCutoffDisabledKeepsPaging(t *testing.T) {
	h := newHarness(t,
		page("c1", fixtureTweet{id: "1", handle: "karpathy", likes: 75, age: 30 * time.Hour}),
		page("", fixtureTweet{id: "2", handle: "karpathy", likes: 75, age: time.Hour}),
	)
	h.cfg.StopAtCutoff = false

	res, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, h.doer.calls)
	assert.Equal(t, 1, res.Digest.Total())
}

func TestExecuteStopsWhenPageHasNoNewTweets(t *testing.T) {
	same := fixtureTweet{id: "1", handle: "karpathy", likes: 75, age: time.Hour}
	h := newHarness(t, page("c1", same), page("c2", same), page("", same))

	res, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, h.doer.calls)
	assert.Equal(t, 1, res.Stats.Duplicates)
}

func TestExecuteRespectsMaxPages(t *testing.T) {
	h := newHarness(t,
		page("c1", fixtureTweet{id: "1", handle: "karpathy", likes: 75, age: time.Hour}),
		page("c2", fixtureTweet{id: "2", handle: "karpathy", likes: 75, age: time.Hour}),
		page("c3", fixtureTweet{id: "3", handle: "karpathy", likes: 75, age: time.Hour}),
	)
	h.cfg.MaxPages = 2

	res, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, h.doer.calls)
	assert.Equal(t, 2, res.Digest.Total())
}

func TestExecuteNoBrowserWhenDisabled(t *testing.T) {
	h := newHarness(t, page("", fixtureTweet{id: "1", handle: "karpathy", likes: 75, age: time.Hour}))
	h.cfg.OpenBrowser = false

	res, err := h.run(t)
	require.NoError(t, err)
	assert.True(t, res.Written())
	assert.Empty(t, h.opened)
}

func TestLogLinesCarryRunID(t *testing.T) {
	var global bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&global, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	first := page("c1", fixtureTweet{id: "1", handle: "karpathy", likes: 75, age: time.Hour})
	first.body = strings.Replace(first.body, `"entries":[`,
		`"entries":[{"entryId":"tweet-9","content":{"itemContent":{"tweet_results":{"result":{"__typename":"Tweet","legacy":{}}}}}},`, 1)
	first.headers = map[string]string{"set-cookie": "ct0=rotated; Path=/"}
	h := newHarness(t, first, response{status: 503, body: "over capacity"})
	require.NoError(t, os.WriteFile(h.cfg.CategoriesFile,
		[]byte("AI / ML & Research:\n  - karpathy\nOther Stuff:\n  - karpathy\n"), 0o600))
	h.persist = func(twitter.Credentials) error { return errors.New("read-only store") }

	res, err := h.run(t)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	logs := h.logs.String()
	for _, msg := range []string{
		"handle listed twice",
		"fetching timeline page",
		"skip malformed tweet node",
		"ct0 rotated by server",
		"could not persist rotated ct0",
		"timeline non-200",
	} {
		assert.Contains(t, logs, msg)
	}
	for _, l := range strings.Split(strings.TrimSpace(logs), "\n") {
		assert.Contains(t, l, `"run_id":"`+res.RunID+`"`)
	}
	assert.Empty(t, global.String(), "run log lines must not reach the default logger")
}

func TestExecuteIncompleteWithoutQualifyingTweets(t *testing.T) {
	h := newHarness(t, response{status: 200, body: `{"data":`})

	res, err := h.run(t)
	require.NoError(t, err)
	assert.False(t, res.Written())
	assert.Nil(t, res.Digest)
	assert.True(t, res.Incomplete)
	assert.Contains(t, res.Note, "Stopped after 0 pages")
	assert.Empty(t, h.outputFiles(t))
}

func TestNewRejectsBadSetup(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	creds := twitter.Credentials{AuthToken: "a", CT0: "c"}

	_, err = New(Options{Config: cfg, Credentials: creds})
	var cfgErr *twitter.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "timeline_query_id", cfgErr.Field)

	cfg.TimelineQueryID = "abcDEF123_-xyz"
	_, err = New(Options{Config: cfg})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "credentials", cfgErr.Field)

	cfg.MaxPages = 0
	_, err = New(Options{Config: cfg, Credentials: creds})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "max_pages", cfgErr.Field)

	_, err = New(Options{})
	assert.Error(t, err)
}
