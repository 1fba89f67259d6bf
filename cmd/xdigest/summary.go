package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/anatolykoptev/go-twitter-digest/internal/pipeline"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#B58900", Dark: "#E5C07B"}

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarn)
)

func printSummary(w io.Writer, res *pipeline.Result) {
	fmt.Fprintln(w, titleStyle.Render("Daily Twitter Digest"))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("run %s · %d pages · %d tweets scanned · %s",
		shortID(res.RunID), res.Pages, res.Stats.Fresh, res.Elapsed.Round(100*time.Millisecond))))

	if res.Incomplete {
		fmt.Fprintln(w, warnStyle.Render("Fetching was incomplete: "+res.Note))
	}
	if !res.Written() {
		fmt.Fprintln(w, warnStyle.Render("No tweets matched the filter. Try lowering min_likes or raising max_pages."))
		return
	}

	d := res.Digest

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "Tweets"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, s := range d.Sections {
		table.Append([]string{s.Name, strconv.Itoa(len(s.Tweets))})
	}
	table.SetFooter([]string{"Total", strconv.Itoa(d.Total())})
	table.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, okStyle.Render("Markdown: ")+res.MarkdownPath)
	fmt.Fprintln(w, okStyle.Render("HTML:     ")+res.HTMLPath)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
