package twitter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Doer performs a single HTTP round trip with a fixed header order.
// *stealth.BrowserClient satisfies it.
type Doer interface {
	DoWithHeaderOrder(method, url string, headers map[string]string, body io.Reader, order []string) ([]byte, map[string]string, int, error)
}

// Client fetches the Following timeline with one set of session cookies.
type Client struct {
	doer     Doer
	endpoint Endpoint
	cfg      ClientConfig
	creds    Credentials
	jitter   func(context.Context) error
	log      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithDoer replaces the stealth browser client, mostly for tests.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithLogger sets the logger used for every request and page of the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithoutJitter disables the anti-fingerprint pause before each request.
func WithoutJitter() Option {
	return func(c *Client) { c.jitter = nil }
}

// NewClient creates a fully-wired timeline client.
func NewClient(cfg ClientConfig, creds Credentials, opts ...Option) (*Client, error) {
	cfg.defaults()

	ep, err := FollowingTimeline(cfg.QueryID)
	if err != nil {
		return nil, err
	}
	if !creds.Valid() {
		return nil, &ConfigurationError{Field: "credentials", Reason: "auth_token and ct0 are required"}
	}

	c := &Client{
		endpoint: ep,
		cfg:      cfg,
		creds:    creds,
		jitter:   stealth.DefaultJitter.Sleep,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.doer == nil {
		stealthOpts := []stealth.ClientOption{
			stealth.WithHeaderOrder(headerOrder),
		}
		if cfg.Proxy != "" {
			stealthOpts = append(stealthOpts, stealth.WithProxy(cfg.Proxy))
			c.log.Debug("using proxy", slog.String("proxy", stealth.MaskProxy(cfg.Proxy)))
		}
		bc, err := stealth.NewClient(stealthOpts...)
		if err != nil {
			return nil, fmt.Errorf("stealth client: %w", err)
		}
		c.doer = bc
	}
	return c, nil
}

// Credentials returns the cookies currently in use, including any server-rotated ct0.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// Close drops the cookies held by the client.
func (c *Client) Close() {
	c.creds.Wipe()
}

// doRequest executes one round trip bounded by the configured request timeout.
// The transport has no context support, so the call runs in its own goroutine
// and is abandoned when the deadline passes.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, headers map[string]string) ([]byte, map[string]string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	type result struct {
		body    []byte
		headers map[string]string
		status  int
		err     error
	}
	done := make(chan result, 1)
	go func() {
		body, hdrs, status, err := c.doer.DoWithHeaderOrder(method, urlStr, headers, nil, headerOrder)
		done <- result{body, hdrs, status, err}
	}()

	select {
	case r := <-done:
		return r.body, r.headers, r.status, r.err
	case <-ctx.Done():
		urlPath := urlStr
		if u, err := url.Parse(urlStr); err == nil {
			urlPath = u.Path
		}
		return nil, nil, 0, fmt.Errorf("%s %s: %w", method, urlPath, ctx.Err())
	}
}
