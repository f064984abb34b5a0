package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/stgrag/internal/chunker"
	"github.com/dgallion1/stgrag/internal/doctree"
	"github.com/dgallion1/stgrag/internal/pipeline"
	"github.com/dgallion1/stgrag/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

func statusText(s pipeline.JobStatus) string {
	switch s {
	case pipeline.StatusCompleted:
		return successStyle.Render(string(s))
	case pipeline.StatusPartial:
		return warnStyle.Render(string(s))
	default:
		return errorStyle.Render(string(s))
	}
}

// formatIngestSummary renders the per-document ingest summary box.
func formatIngestSummary(w io.Writer, snap pipeline.JobSnapshot) {
	p := snap.Progress
	lines := []string{
		fmt.Sprintf("%s %s  %s", dimStyle.Render("File:"), titleStyle.Render(snap.Filename), statusText(snap.Status)),
		fmt.Sprintf("%s %d parsed, %d scanned",
			dimStyle.Render("Pages:"), p.Pages, p.PagesScanned),
		fmt.Sprintf("%s %d chapters, %d sections, %d issues",
			dimStyle.Render("Outline:"), p.Chapters, p.Sections, p.OutlineIssues),
		fmt.Sprintf("%s %d/%d  %s %d/%d  %s %d/%d",
			dimStyle.Render("Conditions:"), p.ConditionsStored, p.ConditionsFound,
			dimStyle.Render("Treatments:"), p.TreatmentsStored, p.TreatmentsFound,
			dimStyle.Render("Medications:"), p.MedicationsStored, p.MedicationsFound),
		fmt.Sprintf("%s %d  %s %d  %s %d",
			dimStyle.Render("Chunks:"), p.Chunks,
			dimStyle.Render("Embedded:"), p.Embedded,
			dimStyle.Render("Rejected:"), p.Rejected),
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
	for _, e := range p.Errors {
		fmt.Fprintln(w, errorStyle.Render("  ! ")+e)
	}
}

func formatHits(w io.Writer, hits []store.SearchHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no results"))
		return
	}
	for i, h := range hits {
		fmt.Fprintf(w, "%s %s %s\n    %s\n",
			dimStyle.Render(fmt.Sprintf("%2d.", i+1)),
			titleStyle.Render(h.Title),
			dimStyle.Render(fmt.Sprintf("[%s #%d]", h.ContentType, h.ContentID)),
			h.Snippet)
	}
}

func formatLocation(w io.Writer, loc doctree.Location, page int) {
	fmt.Fprintln(w, titleStyle.Render(chunker.Citation(loc, page)))
	if loc.Chapter != nil {
		fmt.Fprintf(w, "%s %d. %s (from page %d)\n",
			dimStyle.Render("Chapter:"), loc.Chapter.Number, loc.Chapter.Title, loc.Chapter.StartPage)
	}
	if loc.Section != nil {
		fmt.Fprintf(w, "%s %s. %s (page %d)\n",
			dimStyle.Render("Section:"), loc.Section.Number, loc.Section.Title, loc.Section.Page)
	}
}
