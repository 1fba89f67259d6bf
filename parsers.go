package twitter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// createdAtLayout is the timestamp format of legacy.created_at.
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// ParsePage decodes one HomeLatestTimeline body and collects its tweet nodes
// and bottom cursor by walking the whole document.
func ParsePage(number int, body []byte) (*Page, error) {
	var root map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, &MalformedResponseError{Page: number, Err: err}
	}

	if class, msg := classifyError(body); class.isAuth() {
		return nil, &AuthenticationError{Detail: msg}
	}

	data, ok := root["data"].(map[string]any)
	if !ok {
		if _, msg := classifyError(body); msg != "" {
			return nil, &MalformedResponseError{Page: number, Err: fmt.Errorf("api error: %s", msg)}
		}
		return nil, &MalformedResponseError{Page: number, Err: errors.New("missing data object")}
	}

	p := &Page{Number: number, Size: len(body)}
	p.walk(data)
	return p, nil
}

// walk visits v depth-first in a stable key order so node order is reproducible.
func (p *Page) walk(v any) {
	switch node := v.(type) {
	case map[string]any:
		if tr, ok := node["tweet_results"].(map[string]any); ok {
			if res := unwrapTweetResult(tr["result"]); res != nil {
				p.Nodes = append(p.Nodes, res)
			}
			return
		}
		if isTweetNode(node) {
			p.Nodes = append(p.Nodes, node)
			return
		}
		if node["cursorType"] == "Bottom" {
			if val, ok := node["value"].(string); ok && p.Cursor == "" {
				p.Cursor = val
			}
			return
		}
		for _, k := range slices.Sorted(maps.Keys(node)) {
			p.walk(node[k])
		}
	case []any:
		for _, item := range node {
			p.walk(item)
		}
	}
}

func isTweetNode(node map[string]any) bool {
	if node["__typename"] == "Tweet" {
		return true
	}
	legacy, ok := node["legacy"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = legacy["full_text"]
	return ok
}

// unwrapTweetResult returns the tweet object inside a tweet_results.result,
// or nil for tombstones and unavailable tweets.
func unwrapTweetResult(v any) map[string]any {
	res, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if res["__typename"] == "TweetWithVisibilityResults" {
		inner, _ := res["tweet"].(map[string]any)
		return inner
	}
	if _, ok := res["legacy"]; ok {
		return res
	}
	return nil
}

// --- Field strategies ---

// strategy looks up one field variant and reports whether it was present.
type strategy func(node map[string]any) (any, bool)

func path(keys ...string) strategy {
	return func(node map[string]any) (any, bool) {
		var cur any = node
		for _, k := range keys {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = m[k]; !ok {
				return nil, false
			}
		}
		return cur, cur != nil
	}
}

// The platform moves author fields between API versions; strategies are
// tried in order and the first non-empty value wins.
var (
	idStrategies = []strategy{
		path("rest_id"),
		path("legacy", "id_str"),
	}
	handleStrategies = []strategy{
		path("core", "user_results", "result", "core", "screen_name"),
		path("core", "user_results", "result", "legacy", "screen_name"),
		path("core", "user_result", "result", "legacy", "screen_name"),
	}
	nameStrategies = []strategy{
		path("core", "user_results", "result", "core", "name"),
		path("core", "user_results", "result", "legacy", "name"),
		path("core", "user_result", "result", "legacy", "name"),
	}
	textStrategies = []strategy{
		path("note_tweet", "note_tweet_results", "result", "text"),
		path("legacy", "full_text"),
	}
)

func firstString(node map[string]any, strategies []strategy) string {
	for _, s := range strategies {
		if v, ok := s(node); ok {
			if str, ok := v.(string); ok && str != "" {
				return str
			}
		}
	}
	return ""
}

// intField reads a counter stored either as a JSON number or a numeric string.
func intField(node map[string]any, s strategy) int {
	v, ok := s(node)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	case float64:
		return int(n)
	}
	return 0
}

// parseTweetNode converts one raw node into a Tweet.
func parseTweetNode(node map[string]any) (Tweet, error) {
	id := firstString(node, idStrategies)
	if id == "" {
		return Tweet{}, errors.New("no tweet id")
	}
	handle := firstString(node, handleStrategies)
	if handle == "" {
		return Tweet{}, fmt.Errorf("tweet %s: no author screen_name", id)
	}

	createdRaw := firstString(node, []strategy{path("legacy", "created_at")})
	createdAt, err := time.Parse(createdAtLayout, createdRaw)
	if err != nil {
		return Tweet{}, fmt.Errorf("tweet %s: created_at %q: %w", id, createdRaw, err)
	}

	text := firstString(node, textStrategies)
	_, hasRetweeted := path("legacy", "retweeted_status_result")(node)
	inReplyTo := firstString(node, []strategy{path("legacy", "in_reply_to_screen_name")})

	return Tweet{
		ID:          id,
		Handle:      handle,
		DisplayName: firstString(node, nameStrategies),
		Text:        text,
		Likes:       intField(node, path("legacy", "favorite_count")),
		Retweets:    intField(node, path("legacy", "retweet_count")),
		Replies:     intField(node, path("legacy", "reply_count")),
		Views:       intField(node, path("views", "count")),
		CreatedAt:   createdAt.UTC(),
		URL:         permalink(handle, id),
		IsRetweet:   hasRetweeted || strings.HasPrefix(text, "RT @"),
		IsReply:     inReplyTo != "" && !strings.EqualFold(inReplyTo, handle),
	}, nil
}

// --- Extraction ---

// ExtractStats counts what happened to the nodes of one or more pages.
type ExtractStats struct {
	Nodes      int
	Fresh      int
	Duplicates int
	Malformed  int
}

func (s *ExtractStats) add(o ExtractStats) {
	s.Nodes += o.Nodes
	s.Fresh += o.Fresh
	s.Duplicates += o.Duplicates
	s.Malformed += o.Malformed
}

// Extractor turns pages into tweets and de-duplicates them across a whole run.
// It is not safe for concurrent use.
type Extractor struct {
	seen   map[string]struct{}
	totals ExtractStats
	log    *slog.Logger
}

// NewExtractor returns an Extractor with an empty seen set. Skipped nodes
// are logged to log, or to slog.Default when it is nil.
func NewExtractor(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{seen: make(map[string]struct{}), log: log}
}

// Extract returns the tweets of p not seen earlier in the run, in page order.
// Malformed nodes are skipped and counted.
func (e *Extractor) Extract(p *Page) ([]Tweet, ExtractStats) {
	var stats ExtractStats
	var tweets []Tweet

	for _, node := range p.Nodes {
		stats.Nodes++
		t, err := parseTweetNode(node)
		if err != nil {
			stats.Malformed++
			e.log.Debug("skip malformed tweet node", slog.Int("page", p.Number), slog.Any("error", err))
			continue
		}
		if _, dup := e.seen[t.ID]; dup {
			stats.Duplicates++
			continue
		}
		e.seen[t.ID] = struct{}{}
		stats.Fresh++
		tweets = append(tweets, t)
	}

	e.totals.add(stats)
	return tweets, stats
}

// Totals returns the cumulative counters for the run.
func (e *Extractor) Totals() ExtractStats {
	return e.totals
}
