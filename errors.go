package twitter

import (
	"encoding/json"
	"fmt"
)

// errorClass categorizes Twitter API error responses for targeted handling.
type errorClass int

const (
	errNone          errorClass = iota
	errBanned                   // 88 — rate limit abuse
	errSuspended                // 64 — account suspended
	errLocked                   // 326 — account locked (captcha needed)
	errCSRF                     // 353 — csrf token mismatch
	errAuthExpired              // 32, 89 — could not authenticate / expired token
	errNotAuthorized            // 179, 219 — not authorized
	errInternal                 // 131 — Twitter internal error
)

// classifyError inspects a response body for known Twitter error codes.
func classifyError(body []byte) (errorClass, string) {
	var errResp struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) != nil || len(errResp.Errors) == 0 {
		return errNone, ""
	}

	for _, e := range errResp.Errors {
		switch e.Code {
		case 88:
			return errBanned, e.Message
		case 64:
			return errSuspended, e.Message
		case 326:
			return errLocked, e.Message
		case 353:
			return errCSRF, e.Message
		case 32, 89:
			return errAuthExpired, e.Message
		case 179, 219:
			return errNotAuthorized, e.Message
		case 131:
			return errInternal, e.Message
		}
	}
	return errNone, errResp.Errors[0].Message
}

// isAuth reports whether the class means the session cookies are unusable.
func (ec errorClass) isAuth() bool {
	switch ec {
	case errSuspended, errLocked, errCSRF, errAuthExpired, errNotAuthorized:
		return true
	}
	return false
}

// AuthenticationError means the session cookies were rejected.
// It is never retried: stale cookies do not heal on their own.
type AuthenticationError struct {
	Status int
	Detail string
}

func (e *AuthenticationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed (HTTP %d): %s", e.Status, e.Detail)
	}
	return "authentication failed: " + e.Detail
}

// Remediation tells the user how to recover.
func (e *AuthenticationError) Remediation() string {
	return "session cookies expired or were rejected; copy fresh auth_token and ct0 from x.com and run `xdigest login`"
}

// TransientFetchError covers network failures, throttling and 5xx responses.
// Retrying with backoff is safe.
type TransientFetchError struct {
	Page   int
	Status int
	Err    error
}

func (e *TransientFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("page %d: HTTP %d: %v", e.Page, e.Status, e.Err)
	}
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// Remediation tells the user how to recover.
func (e *TransientFetchError) Remediation() string {
	if e.Status == 429 {
		return "x.com is throttling this session; wait a few minutes or lower max_pages"
	}
	return "x.com did not answer; check the network or proxy and run again later"
}

// MalformedResponseError means a page body did not have the expected JSON shape.
type MalformedResponseError struct {
	Page int
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("page %d: malformed response: %v", e.Page, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Remediation tells the user how to recover.
func (e *MalformedResponseError) Remediation() string {
	return "the timeline schema may have changed; the query ID or feature flags may need updating"
}

// ConfigurationError reports a missing or invalid setting detected before any network call.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Remediation tells the user how to recover.
func (e *ConfigurationError) Remediation() string {
	if e.Field == "timeline_query_id" {
		return "open x.com, Following tab, DevTools > Network, filter 'HomeLatest' and copy the ID from /i/api/graphql/<ID>/HomeLatestTimeline"
	}
	return "fix " + e.Field + " in the config file or pass it as a flag"
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
