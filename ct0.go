package twitter

import "strings"

// extractCT0FromHeaders parses the ct0 value from a set-cookie response header.
// The transport joins repeated set-cookie headers, so every ';' or ','
// separated part is checked.
func extractCT0FromHeaders(headers map[string]string) string {
	cookie := headers["set-cookie"]
	if cookie == "" {
		return ""
	}
	parts := strings.FieldsFunc(cookie, func(r rune) bool { return r == ';' || r == ',' })
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if val, ok := strings.CutPrefix(part, "ct0="); ok && val != "" {
			return val
		}
	}
	return ""
}
