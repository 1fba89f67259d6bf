package digest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// maxTextRunes caps tweet text in the markdown digest.
const maxTextRunes = 280

// anchor turns a heading into the slug GitHub-flavoured markdown generates for it.
func anchor(heading string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(heading) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// anchoredSection pairs a section with its unique in-page anchor.
type anchoredSection struct {
	Section
	Anchor string
}

// anchorSections gives every section a distinct slug the way GitHub does for
// repeated headings: the second "ai--ml" becomes "ai--ml-1". Names with no
// slug characters fall back to "section".
func anchorSections(sections []Section) []anchoredSection {
	used := make(map[string]bool, len(sections))
	out := make([]anchoredSection, 0, len(sections))
	for _, s := range sections {
		base := anchor(s.Name)
		if base == "" {
			base = "section"
		}
		slug := base
		for n := 1; used[slug]; n++ {
			slug = fmt.Sprintf("%s-%d", base, n)
		}
		used[slug] = true
		out = append(out, anchoredSection{Section: s, Anchor: slug})
	}
	return out
}

// flatten collapses all whitespace runs, newlines included, into single spaces.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most n runes, ending with "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// thousands formats n with comma separators: 12345 -> "12,345".
func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// compact formats n as 999, 1.2K or 3.4M.
func compact(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return strconv.Itoa(n)
}

// initials returns up to two upper-cased leading runes of a display name.
func initials(name string) string {
	r := []rune(strings.TrimSpace(name))
	if len(r) == 0 {
		return "?"
	}
	return strings.ToUpper(string(r[:min(2, len(r))]))
}

// windowLabel describes a trailing window in hours: "Last 24 hours".
func windowLabel(hours float64) string {
	if hours == 1 {
		return "Last hour"
	}
	return "Last " + strconv.FormatFloat(hours, 'f', -1, 64) + " hours"
}
