package twitter

import (
	"context"
	"iter"
	"log/slog"
	"time"
)

// Timeline returns a lazy sequence of Following-timeline pages, one HTTP call
// per iteration. It stops after maxPages requests, when a page carries no
// cursor, when the consumer stops ranging, or after yielding an error.
func (c *Client) Timeline(ctx context.Context, maxPages int) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		var cursor string

		for n := 1; n <= maxPages; n++ {
			if n > 1 && c.cfg.PageDelay > 0 {
				select {
				case <-time.After(c.cfg.PageDelay):
				case <-ctx.Done():
					yield(nil, ctx.Err())
					return
				}
			}

			variables := map[string]any{
				"count":                  c.cfg.PageSize,
				"includePromotedContent": false,
				"latestControlAvailable": true,
			}
			if cursor != "" {
				variables["cursor"] = cursor
			} else {
				variables["requestContext"] = "launch"
			}
			url := addGraphQLParams(c.endpoint.URL(), variables, c.endpoint.Features)

			c.log.Debug("fetching timeline page", slog.Int("page", n), slog.Bool("has_cursor", cursor != ""))
			body, err := c.doGET(ctx, n, url)
			if err != nil {
				yield(nil, err)
				return
			}

			page, err := ParsePage(n, body)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}

			if page.Cursor == "" || page.Cursor == cursor {
				c.log.Debug("timeline exhausted", slog.Int("page", n))
				return
			}
			cursor = page.Cursor
		}
	}
}
