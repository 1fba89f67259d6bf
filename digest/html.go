package digest

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

//go:embed templates/digest.html.tmpl
var templateFS embed.FS

// html/template escapes every value by context; tweet text and names come
// from arbitrary accounts and are never marked safe.
var htmlTemplate = template.Must(
	template.New("digest.html.tmpl").Funcs(template.FuncMap{
		"compact":  compact,
		"initials": initials,
		"lines":    lines,
		"safeLink": safeLink,
	}).ParseFS(templateFS, "templates/digest.html.tmpl"),
)

type htmlView struct {
	*Digest
	Sections    []anchoredSection
	WindowLabel string
}

// RenderHTML renders d as a self-contained HTML page.
func RenderHTML(d *Digest) ([]byte, error) {
	var b bytes.Buffer
	view := htmlView{Digest: d, Sections: anchorSections(d.Sections), WindowLabel: windowLabel(d.Window.Hours())}
	if err := htmlTemplate.Execute(&b, view); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return b.Bytes(), nil
}

// lines splits trimmed text on newlines for <br> rendering.
func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

// safeLink returns raw only when it is an https link to x.com or twitter.com.
func safeLink(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" {
		return ""
	}
	switch u.Host {
	case "x.com", "twitter.com":
		return u.String()
	}
	return ""
}
