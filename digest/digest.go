// Package digest filters, categorizes and renders timeline tweets.
package digest

import (
	"cmp"
	"slices"
	"time"

	twitter "github.com/anatolykoptev/go-twitter-digest"
)

// Section is one category with its qualifying tweets.
type Section struct {
	Name   string
	Tweets []twitter.Tweet
}

// Digest is the categorized report of one run.
type Digest struct {
	Date        string
	GeneratedAt time.Time
	MinLikes    int
	Window      time.Duration
	Scanned     int

	// Incomplete is set when fetching stopped on an error; Note explains why.
	Incomplete bool
	Note       string

	Sections []Section
}

// Total returns the number of tweets across all sections.
func (d *Digest) Total() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Tweets)
	}
	return n
}

// Build groups tweets into sections following the categorizer's order.
// Empty categories are dropped. Within a section tweets are sorted by likes,
// then recency, then ID.
func Build(d Digest, tweets []twitter.Tweet, cat *Categorizer) *Digest {
	groups := make(map[string][]twitter.Tweet)
	for _, t := range tweets {
		name := cat.Category(t.Handle)
		groups[name] = append(groups[name], t)
	}

	d.Sections = nil
	for _, name := range cat.Order() {
		ts := groups[name]
		if len(ts) == 0 {
			continue
		}
		slices.SortStableFunc(ts, compareTweets)
		d.Sections = append(d.Sections, Section{Name: name, Tweets: ts})
	}
	return &d
}

func compareTweets(a, b twitter.Tweet) int {
	if c := cmp.Compare(b.Likes, a.Likes); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
