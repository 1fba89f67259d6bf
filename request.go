package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
)

// doGET fetches one timeline page. Transient failures are retried up to
// cfg.Retries times with exponential backoff; auth failures never are.
func (c *Client) doGET(ctx context.Context, page int, urlStr string) ([]byte, error) {
	if c.jitter != nil {
		if err := c.jitter(ctx); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := range c.cfg.Retries + 1 {
		if attempt > 0 {
			delay := stealth.DefaultBackoff.Duration(attempt)
			c.log.Warn("retrying timeline page",
				slog.Int("page", page),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", delay),
				slog.Any("error", lastErr))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := c.attempt(ctx, page, urlStr)
		if err == nil {
			return body, nil
		}
		var transient *TransientFetchError
		if !errors.As(err, &transient) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// attempt performs one request and maps the outcome onto the error taxonomy.
func (c *Client) attempt(ctx context.Context, page int, urlStr string) ([]byte, error) {
	body, respHdrs, status, err := c.doRequest(ctx, "GET", urlStr, timelineHeaders(c.creds, c.cfg.UserAgent))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientFetchError{Page: page, Err: err}
	}

	switch {
	case status == 401 || status == 403:
		_, msg := classifyError(body)
		if msg == "" {
			msg = truncateBytes(body, 200)
		}
		return nil, &AuthenticationError{Status: status, Detail: msg}

	case status == 404:
		return nil, &ConfigurationError{Field: "timeline_query_id", Reason: fmt.Sprintf("%s returned 404, the query ID is stale", homeLatestTimeline)}

	case status == 429:
		reset := parseRateLimitReset(respHdrs["x-rate-limit-reset"])
		return nil, &TransientFetchError{Page: page, Status: status, Err: fmt.Errorf("rate limited until %s", reset.Format(time.TimeOnly))}

	case status != 200:
		c.log.Warn("timeline non-200", slog.Int("page", page), slog.Int("status", status), slog.String("body", truncateBytes(body, 500)))
		return nil, &TransientFetchError{Page: page, Status: status, Err: errors.New(truncateBytes(body, 200))}
	}

	// HTTP 200 — check for error codes in response body
	errClass, msg := classifyError(body)
	switch {
	case errClass.isAuth():
		return nil, &AuthenticationError{Detail: msg}
	case errClass == errBanned:
		return nil, &TransientFetchError{Page: page, Status: status, Err: fmt.Errorf("throttled: %s", msg)}
	case errClass == errInternal && !hasResponseData(body):
		return nil, &TransientFetchError{Page: page, Status: status, Err: fmt.Errorf("x.com internal error (131)")}
	case errClass == errInternal:
		c.log.Debug("error 131 with usable data, treating as success", slog.Int("page", page))
	}

	c.refreshCT0(respHdrs)
	return body, nil
}

// refreshCT0 adopts a ct0 cookie rotated by the server.
func (c *Client) refreshCT0(respHdrs map[string]string) {
	newCT0 := extractCT0FromHeaders(respHdrs)
	if newCT0 == "" || newCT0 == c.creds.CT0 {
		return
	}
	c.creds.CT0 = newCT0
	c.log.Info("ct0 rotated by server", slog.String("prefix", newCT0[:min(8, len(newCT0))]))
	if c.cfg.OnCredentialsRefreshed != nil {
		c.cfg.OnCredentialsRefreshed(c.creds)
	}
}

// parseRateLimitReset parses the X-Rate-Limit-Reset unix timestamp header.
// Falls back to 15 minutes from now if missing or invalid.
func parseRateLimitReset(v string) time.Time {
	if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(ts, 0)
	}
	return time.Now().Add(15 * time.Minute)
}

// hasResponseData returns true if the JSON body contains a non-null "data" field.
func hasResponseData(body []byte) bool {
	var probe struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return false
	}
	return len(probe.Data) > 0 && string(probe.Data) != "null"
}

// addGraphQLParams builds the full URL with URL-encoded variables and features.
func addGraphQLParams(rawURL string, variables, features map[string]any) string {
	v, _ := json.Marshal(variables)
	f, _ := json.Marshal(features)
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "variables=" + url.QueryEscape(string(v)) + "&features=" + url.QueryEscape(string(f))
}
