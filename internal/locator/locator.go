// Package locator maps page numbers to their enclosing chapter and section.
package locator

import (
	"sort"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// Resolver answers page lookups against an immutable outline.
// It is safe for concurrent use.
type Resolver struct {
	chapters []doctree.Chapter // sorted by StartPage
	starts   []int             // starts[i] == chapters[i].StartPage
	byNumber map[int]int       // chapter number -> index (first wins)
}

// New builds a resolver. The outline is copied; later changes to it are not observed.
func New(outline *doctree.Outline) *Resolver {
	r := &Resolver{byNumber: make(map[int]int)}
	if outline == nil {
		return r
	}

	r.chapters = make([]doctree.Chapter, len(outline.Chapters))
	for i, ch := range outline.Chapters {
		secs := make([]doctree.Section, len(ch.Sections))
		copy(secs, ch.Sections)
		sort.SliceStable(secs, func(a, b int) bool { return secs[a].Page < secs[b].Page })
		ch.Sections = secs
		r.chapters[i] = ch
	}
	sort.SliceStable(r.chapters, func(i, j int) bool {
		return r.chapters[i].StartPage < r.chapters[j].StartPage
	})

	r.starts = make([]int, len(r.chapters))
	for i, ch := range r.chapters {
		r.starts[i] = ch.StartPage
		if _, ok := r.byNumber[ch.Number]; !ok {
			r.byNumber[ch.Number] = i
		}
	}
	return r
}

// Resolve returns the chapter with the greatest start page <= page and,
// within it, the section with the greatest page <= page. Either may be nil.
func (r *Resolver) Resolve(page int) doctree.Location {
	ci := sort.SearchInts(r.starts, page+1) - 1
	if ci < 0 {
		return doctree.Location{}
	}
	ch := &r.chapters[ci]
	loc := doctree.Location{Chapter: ch}

	secs := ch.Sections
	si := sort.Search(len(secs), func(i int) bool { return secs[i].Page > page }) - 1
	if si >= 0 {
		loc.Section = &secs[si]
	}
	return loc
}

// ResolveLinear is the straightforward scan Resolve must agree with.
func (r *Resolver) ResolveLinear(page int) doctree.Location {
	var loc doctree.Location
	for i := range r.chapters {
		ch := &r.chapters[i]
		if ch.StartPage > page {
			continue
		}
		if loc.Chapter == nil || ch.StartPage >= loc.Chapter.StartPage {
			loc.Chapter = ch
		}
	}
	if loc.Chapter == nil {
		return loc
	}
	for i := range loc.Chapter.Sections {
		sec := &loc.Chapter.Sections[i]
		if sec.Page > page {
			continue
		}
		if loc.Section == nil || sec.Page >= loc.Section.Page {
			loc.Section = sec
		}
	}
	return loc
}

// Chapter looks up a chapter by number.
func (r *Resolver) Chapter(number int) (doctree.Chapter, bool) {
	i, ok := r.byNumber[number]
	if !ok {
		return doctree.Chapter{}, false
	}
	return r.chapters[i], true
}

// Chapters returns the chapters in start page order.
func (r *Resolver) Chapters() []doctree.Chapter {
	out := make([]doctree.Chapter, len(r.chapters))
	copy(out, r.chapters)
	return out
}
