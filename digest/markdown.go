package digest

import (
	"bytes"
	"fmt"
)

// RenderMarkdown renders d as a markdown document. The output depends only on d.
func RenderMarkdown(d *Digest) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Daily Twitter Digest - %s\n\n", d.Date)
	fmt.Fprintf(&b, "**Filter:** %d+ likes | %s | Excluding retweets & replies\n", d.MinLikes, windowLabel(d.Window.Hours()))
	fmt.Fprintf(&b, "**Generated:** %s\n\n", d.GeneratedAt.Format("2006-01-02 15:04"))
	if d.Incomplete {
		fmt.Fprintf(&b, "> **Note:** fetching was incomplete, this digest only covers the pages retrieved before the failure. %s\n\n", d.Note)
	}
	fmt.Fprintf(&b, "**Total tweets:** %d\n\n", d.Total())

	if len(d.Sections) == 0 {
		b.WriteString("No tweets matched the filter.\n")
		return b.Bytes()
	}

	b.WriteString("## Contents\n\n")
	for _, s := range anchorSections(d.Sections) {
		fmt.Fprintf(&b, "- [%s](#%s) (%d tweets)\n", s.Name, s.Anchor, len(s.Tweets))
	}
	b.WriteString("\n---\n\n")

	for _, s := range d.Sections {
		fmt.Fprintf(&b, "## %s\n\n", s.Name)
		for _, t := range s.Tweets {
			fmt.Fprintf(&b, "**@%s** (%s)\n", t.Handle, t.DisplayName)
			fmt.Fprintf(&b, "> %s\n\n", truncate(flatten(t.Text), maxTextRunes))
			fmt.Fprintf(&b, "Likes: %s | Retweets: %s | Views: %s | [View Tweet](%s)\n\n",
				thousands(t.Likes), thousands(t.Retweets), thousands(t.Views), t.URL)
			b.WriteString("---\n\n")
		}
	}
	return b.Bytes()
}
