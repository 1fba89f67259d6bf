package twitter

import "time"

// ClientConfig holds all configuration for the timeline client.
type ClientConfig struct {
	// QueryID is the HomeLatestTimeline GraphQL operation ID.
	QueryID string

	// Proxy is an optional proxy URL for all requests.
	Proxy string

	// UserAgent overrides the default Chrome User-Agent.
	UserAgent string

	// PageSize is the number of entries requested per page.
	PageSize int

	// PageDelay is the fixed pause between two page requests.
	PageDelay time.Duration

	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration

	// Retries is the number of extra attempts on transient failures.
	// Zero keeps the single-attempt policy.
	Retries int

	// OnCredentialsRefreshed is called when the server rotates the ct0 cookie.
	OnCredentialsRefreshed func(Credentials)
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *ClientConfig) defaults() {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
}
