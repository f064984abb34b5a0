// Package toc builds the chapter/section outline from table-of-contents pages.
package toc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// DefaultSectionMinNumber rejects front-matter numbering such as "3. Foreword .... 7".
const DefaultSectionMinNumber = 100

var (
	chapterLine = regexp.MustCompile(`^(?i:chapter)\s+(\d+)\.?\s+(.+?)\s*\.+\s*(\d+)\s*$`)
	sectionLine = regexp.MustCompile(`^(\d{1,3})\.\s+([^.]+?)\s*\.+\s*(\d+)\s*$`)
)

// Config controls outline parsing.
type Config struct {
	// SectionMinNumber is the highest section number still treated as noise.
	SectionMinNumber int
}

// DefaultConfig returns the defaults used for the guideline TOC layout.
func DefaultConfig() Config {
	return Config{SectionMinNumber: DefaultSectionMinNumber}
}

// Parser turns TOC page text into an Outline.
type Parser struct {
	cfg Config
}

func NewParser(cfg Config) *Parser {
	if cfg.SectionMinNumber < 0 {
		cfg.SectionMinNumber = DefaultSectionMinNumber
	}
	return &Parser{cfg: cfg}
}

type sectionCandidate struct {
	section doctree.Section
	line    string
}

// Parse scans every line of the given pages. Lines matching neither pattern
// are ignored; an empty TOC produces an empty outline.
func (p *Parser) Parse(pages []doctree.Page) *doctree.Outline {
	out := &doctree.Outline{}
	var sections []sectionCandidate

	for _, page := range pages {
		for _, raw := range strings.Split(page.Text, "\n") {
			line := strings.TrimSpace(raw)
			if line == "" {
				continue
			}
			if ch, ok := parseChapter(line); ok {
				out.Chapters = append(out.Chapters, ch)
				continue
			}
			if sec, ok := p.parseSection(line); ok {
				sections = append(sections, sectionCandidate{section: sec, line: line})
			}
		}
	}

	out.Issues = append(out.Issues, checkChapters(out.Chapters)...)

	// Discovery order is not trusted: assignment below needs chapters in start page order.
	sort.SliceStable(out.Chapters, func(i, j int) bool {
		return out.Chapters[i].StartPage < out.Chapters[j].StartPage
	})

	for _, cand := range sections {
		idx := chapterIndexFor(out.Chapters, cand.section.Page)
		if idx < 0 {
			out.Issues = append(out.Issues, doctree.Issue{
				Kind:    doctree.IssueOrphanSection,
				Message: fmt.Sprintf("section %s on page %d precedes every chapter", cand.section.Number, cand.section.Page),
				Line:    cand.line,
			})
			continue
		}
		sec := cand.section
		sec.ChapterNumber = out.Chapters[idx].Number
		out.Chapters[idx].Sections = append(out.Chapters[idx].Sections, sec)
	}

	for i := range out.Chapters {
		secs := out.Chapters[i].Sections
		sort.SliceStable(secs, func(a, b int) bool { return secs[a].Page < secs[b].Page })
	}

	return out
}

func parseChapter(line string) (doctree.Chapter, bool) {
	m := chapterLine.FindStringSubmatch(line)
	if m == nil {
		return doctree.Chapter{}, false
	}
	num, err := strconv.Atoi(m[1])
	if err != nil || num <= 0 {
		return doctree.Chapter{}, false
	}
	page, err := strconv.Atoi(m[3])
	if err != nil || page <= 0 {
		return doctree.Chapter{}, false
	}
	return doctree.Chapter{
		Number:    num,
		Title:     strings.TrimSpace(m[2]),
		StartPage: page,
	}, true
}

func (p *Parser) parseSection(line string) (doctree.Section, bool) {
	m := sectionLine.FindStringSubmatch(line)
	if m == nil {
		return doctree.Section{}, false
	}
	num, err := strconv.Atoi(m[1])
	if err != nil || num <= p.cfg.SectionMinNumber {
		return doctree.Section{}, false
	}
	page, err := strconv.Atoi(m[3])
	if err != nil || page <= 0 {
		return doctree.Section{}, false
	}
	return doctree.Section{
		Number: m[1],
		Title:  strings.TrimSpace(m[2]),
		Page:   page,
	}, true
}

// chapterIndexFor returns the index of the chapter with the greatest start
// page <= page, or -1. chapters must be sorted by StartPage.
func chapterIndexFor(chapters []doctree.Chapter, page int) int {
	i := sort.Search(len(chapters), func(i int) bool { return chapters[i].StartPage > page })
	return i - 1
}

// checkChapters reports invariant violations in discovery order.
func checkChapters(chapters []doctree.Chapter) []doctree.Issue {
	var issues []doctree.Issue
	byNumber := make(map[int]bool, len(chapters))
	byPage := make(map[int]int, len(chapters))

	for _, ch := range chapters {
		if byNumber[ch.Number] {
			issues = append(issues, doctree.Issue{
				Kind:    doctree.IssueDuplicateChapter,
				Message: fmt.Sprintf("chapter %d listed more than once", ch.Number),
			})
		}
		byNumber[ch.Number] = true

		if other, ok := byPage[ch.StartPage]; ok {
			issues = append(issues, doctree.Issue{
				Kind:    doctree.IssueDuplicateStartPage,
				Message: fmt.Sprintf("chapters %d and %d both start on page %d", other, ch.Number, ch.StartPage),
			})
		} else {
			byPage[ch.StartPage] = ch.Number
		}
	}

	sorted := make([]doctree.Chapter, len(chapters))
	copy(sorted, chapters)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartPage < sorted[j].StartPage })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Number <= sorted[i-1].Number {
			issues = append(issues, doctree.Issue{
				Kind: doctree.IssueChapterOrder,
				Message: fmt.Sprintf("chapter %d (page %d) follows chapter %d (page %d)",
					sorted[i].Number, sorted[i].StartPage, sorted[i-1].Number, sorted[i-1].StartPage),
			})
		}
	}
	return issues
}
