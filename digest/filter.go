package digest

import (
	"time"

	twitter "github.com/anatolykoptev/go-twitter-digest"
)

// FilterConfig holds the inclusion thresholds of a digest.
type FilterConfig struct {
	MinLikes int
	Window   time.Duration
}

// Keep reports whether t belongs in the digest: enough likes, posted within
// the trailing window, and neither a retweet nor a reply.
func Keep(t twitter.Tweet, now time.Time, cfg FilterConfig) bool {
	if t.Likes < cfg.MinLikes {
		return false
	}
	if now.UTC().Sub(t.CreatedAt.UTC()) > cfg.Window {
		return false
	}
	return !t.IsRetweet && !t.IsReply
}

// Filter returns the tweets accepted by Keep, in input order.
func Filter(tweets []twitter.Tweet, now time.Time, cfg FilterConfig) []twitter.Tweet {
	var out []twitter.Tweet
	for _, t := range tweets {
		if Keep(t, now, cfg) {
			out = append(out, t)
		}
	}
	return out
}
