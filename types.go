package twitter

import "time"

// Tweet represents a single tweet from the Following timeline.
type Tweet struct {
	ID          string
	Handle      string
	DisplayName string
	Text        string
	Likes       int
	Retweets    int
	Replies     int
	Views       int
	CreatedAt   time.Time
	URL         string
	IsRetweet   bool
	IsReply     bool
}

// Page is one timeline response: raw tweet nodes plus the continuation cursor.
// An empty Cursor marks the end of the stream.
type Page struct {
	Number int
	Nodes  []map[string]any
	Cursor string
	Size   int
}

// Credentials holds the browser session cookies used for authenticated requests.
type Credentials struct {
	AuthToken string
	CT0       string
}

// Valid reports whether both cookies are present.
func (c Credentials) Valid() bool {
	return c.AuthToken != "" && c.CT0 != ""
}

// Wipe overwrites the cookie values held by c.
func (c *Credentials) Wipe() {
	c.AuthToken = ""
	c.CT0 = ""
}

// permalink returns the canonical x.com URL of a tweet.
func permalink(handle, id string) string {
	if handle == "" || id == "" {
		return ""
	}
	return "https://x.com/" + handle + "/status/" + id
}
