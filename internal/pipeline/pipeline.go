// Package pipeline runs one digest: fetch the Following timeline, extract
// and filter tweets, categorize them and write the markdown and HTML files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	twitter "github.com/anatolykoptev/go-twitter-digest"
	"github.com/anatolykoptev/go-twitter-digest/digest"
	"github.com/anatolykoptev/go-twitter-digest/internal/config"
)

// Options wires a Run. Config and Credentials are required.
type Options struct {
	Config      *config.Config
	Credentials twitter.Credentials

	// OnCredentialsRefreshed persists a server-rotated ct0. A failure is
	// logged and the run continues.
	OnCredentialsRefreshed func(twitter.Credentials) error

	// ClientOptions are passed to twitter.NewClient.
	ClientOptions []twitter.Option

	Logger *slog.Logger
	Now    func() time.Time
	// Open shows the HTML digest; nil disables it.
	Open func(path string) error
}

// Result summarizes a finished run.
type Result struct {
	RunID        string
	Pages        int
	Stats        twitter.ExtractStats
	Digest       *digest.Digest
	MarkdownPath string
	HTMLPath     string
	Categorized  int
	Elapsed      time.Duration

	// Incomplete is set when fetching stopped on an error; Note explains
	// why. It is reported even when nothing qualified.
	Incomplete bool
	Note       string
}

// Written reports whether digest files were produced.
func (r *Result) Written() bool {
	return r.MarkdownPath != ""
}

// Run owns the state of one invocation: the seen-ID set (through its
// Extractor), the accumulated tweets and the partial-fetch marker.
// A Run is used once.
type Run struct {
	ID string

	cfg       *config.Config
	opts      Options
	log       *slog.Logger
	now       func() time.Time
	cat       *digest.Categorizer
	extractor *twitter.Extractor

	tweets     []twitter.Tweet
	pages      int
	incomplete bool
	note       string
}

// New validates the configuration and loads the category file. Every error
// it returns is a *twitter.ConfigurationError or an I/O error, detected
// before any network call.
func New(opts Options) (*Run, error) {
	if opts.Config == nil {
		return nil, &twitter.ConfigurationError{Field: "config", Reason: "missing"}
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := twitter.ValidateQueryID(cfg.TimelineQueryID); err != nil {
		return nil, err
	}
	if !opts.Credentials.Valid() {
		return nil, &twitter.ConfigurationError{Field: "credentials", Reason: "auth_token and ct0 are required"}
	}

	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("run_id", id))
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	cm, err := digest.LoadCategories(cfg.CategoriesFile, logger)
	if err != nil {
		return nil, &twitter.ConfigurationError{Field: "categories_file", Reason: err.Error()}
	}

	r := &Run{
		ID:        id,
		cfg:       cfg,
		opts:      opts,
		log:       logger,
		now:       now,
		cat:       digest.NewCategorizer(cm),
		extractor: twitter.NewExtractor(logger),
	}
	for _, sh := range r.cat.Shadowed() {
		r.log.Debug("handle listed twice, keeping first category",
			slog.String("handle", sh.Handle), slog.String("kept", sh.Kept), slog.String("ignored", sh.Ignored))
	}
	r.log.Debug("run configured",
		slog.Int("categories", len(cm.Categories)),
		slog.Int("handles", r.cat.Handles()),
		slog.Int("min_likes", cfg.MinLikes),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Float64("hours", cfg.Hours))
	return r, nil
}

// Execute performs the run. Authentication and configuration errors, and a
// transient failure before the first page, abort without writing files. A
// later transient failure or a malformed page ends fetching early and the
// digest is written with an incomplete note. Zero qualifying tweets is a
// success that writes nothing.
func (r *Run) Execute(ctx context.Context) (*Result, error) {
	started := r.now()
	res := &Result{RunID: r.ID}
	defer r.opts.Credentials.Wipe()

	ccfg := r.cfg.ClientConfig()
	if persist := r.opts.OnCredentialsRefreshed; persist != nil {
		ccfg.OnCredentialsRefreshed = func(c twitter.Credentials) {
			if err := persist(c); err != nil {
				r.log.Warn("could not persist rotated ct0", slog.Any("error", err))
			}
		}
	}
	clientOpts := append([]twitter.Option{twitter.WithLogger(r.log)}, r.opts.ClientOptions...)
	client, err := twitter.NewClient(ccfg, r.opts.Credentials, clientOpts...)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := r.fetch(ctx, client); err != nil {
		return nil, err
	}
	res.Pages = r.pages
	res.Stats = r.extractor.Totals()
	res.Incomplete, res.Note = r.incomplete, r.note

	now := r.now()
	window := r.cfg.Window()
	kept := digest.Filter(r.tweets, now, digest.FilterConfig{MinLikes: r.cfg.MinLikes, Window: window})
	r.log.Info("filtered tweets",
		slog.Int("scanned", len(r.tweets)),
		slog.Int("kept", len(kept)),
		slog.Int("min_likes", r.cfg.MinLikes))

	if len(kept) == 0 {
		r.log.Info("no tweets matched the filter; lower min_likes or raise max_pages")
		res.Elapsed = r.now().Sub(started)
		return res, nil
	}

	d := digest.Build(digest.Digest{
		Date:        now.Format("2006-01-02"),
		GeneratedAt: now,
		MinLikes:    r.cfg.MinLikes,
		Window:      window,
		Scanned:     len(r.tweets),
		Incomplete:  r.incomplete,
		Note:        r.note,
	}, kept, r.cat)
	res.Digest = d
	for _, s := range d.Sections {
		if s.Name != digest.DefaultCategory {
			res.Categorized += len(s.Tweets)
		}
	}

	if err := r.write(d, res); err != nil {
		return nil, err
	}

	if r.cfg.OpenBrowser && r.opts.Open != nil {
		if err := r.opts.Open(res.HTMLPath); err != nil {
			r.log.Warn("could not open browser", slog.String("path", res.HTMLPath), slog.Any("error", err))
		}
	}
	res.Elapsed = r.now().Sub(started)
	return res, nil
}

// fetch ranges over the timeline, feeding pages to the extractor until a
// stop rule fires.
func (r *Run) fetch(ctx context.Context, client *twitter.Client) error {
	cutoff := r.now().Add(-r.cfg.Window())

	for page, err := range client.Timeline(ctx, r.cfg.MaxPages) {
		if err != nil {
			return r.fetchFailed(ctx, err)
		}
		r.pages++

		fresh, stats := r.extractor.Extract(page)
		r.tweets = append(r.tweets, fresh...)
		r.log.Info("fetched page",
			slog.Int("page", page.Number),
			slog.Int("tweets", stats.Fresh),
			slog.Int("duplicates", stats.Duplicates),
			slog.Int("malformed", stats.Malformed),
			slog.Int("total", len(r.tweets)))

		if stats.Fresh == 0 {
			r.log.Info("no new tweets on page, stopping", slog.Int("page", page.Number))
			break
		}
		if r.cfg.StopAtCutoff && oldest(fresh).Before(cutoff) {
			r.log.Info("reached tweets older than the window, stopping",
				slog.Int("page", page.Number),
				slog.Time("cutoff", cutoff))
			break
		}
	}
	return nil
}

// fetchFailed applies the error policy to a failed page. A nil return means
// the run continues with what it has.
func (r *Run) fetchFailed(ctx context.Context, err error) error {
	var (
		authErr      *twitter.AuthenticationError
		cfgErr       *twitter.ConfigurationError
		transientErr *twitter.TransientFetchError
		malformedErr *twitter.MalformedResponseError
	)
	switch {
	case errors.As(err, &authErr), errors.As(err, &cfgErr):
		r.log.Error("fetch aborted", slog.Any("error", err))
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("fetch cancelled: %w", ctx.Err())
	case errors.As(err, &malformedErr):
		r.log.Warn("malformed page, stopping fetch", slog.Int("page", malformedErr.Page), slog.Any("error", err))
		r.markIncomplete(err)
		return nil
	case errors.As(err, &transientErr) && r.pages > 0:
		r.log.Warn("fetch failed after partial success, rendering collected tweets",
			slog.Int("pages", r.pages), slog.Any("error", err))
		r.markIncomplete(err)
		return nil
	}
	r.log.Error("fetch failed", slog.Any("error", err))
	return err
}

func (r *Run) markIncomplete(err error) {
	r.incomplete = true
	r.note = "Stopped after " + plural(r.pages, "page") + ": " + err.Error()
}

func (r *Run) write(d *digest.Digest, res *Result) error {
	html, err := digest.RenderHTML(d)
	if err != nil {
		return err
	}
	md := digest.RenderMarkdown(d)

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	res.MarkdownPath = filepath.Join(r.cfg.OutputDir, d.Date+"_digest.md")
	res.HTMLPath = filepath.Join(r.cfg.OutputDir, d.Date+"_digest.html")

	if err := os.WriteFile(res.MarkdownPath, md, 0o644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	if err := os.WriteFile(res.HTMLPath, html, 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	r.log.Info("digest written",
		slog.String("markdown", res.MarkdownPath),
		slog.String("html", res.HTMLPath),
		slog.Int("tweets", d.Total()),
		slog.Int("sections", len(d.Sections)))
	return nil
}

func oldest(tweets []twitter.Tweet) time.Time {
	var t time.Time
	for i, tw := range tweets {
		if i == 0 || tw.CreatedAt.Before(t) {
			t = tw.CreatedAt
		}
	}
	return t
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
