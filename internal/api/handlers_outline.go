package api

import (
	"net/http"
	"strconv"

	"github.com/dgallion1/stgrag/internal/chunker"
	"github.com/dgallion1/stgrag/internal/doctree"
	"github.com/dgallion1/stgrag/internal/locator"
)

type sectionView struct {
	Number string `json:"number"`
	Title  string `json:"title"`
	Page   int    `json:"page"`
}

type chapterView struct {
	Number    int           `json:"number"`
	Title     string        `json:"title"`
	StartPage int           `json:"start_page"`
	Sections  []sectionView `json:"sections,omitempty"`
}

type locationView struct {
	Page     int          `json:"page"`
	Chapter  *chapterView `json:"chapter"`
	Section  *sectionView `json:"section"`
	Citation string       `json:"citation"`
}

func toChapterView(ch doctree.Chapter, withSections bool) chapterView {
	v := chapterView{Number: ch.Number, Title: ch.Title, StartPage: ch.StartPage}
	if withSections {
		for _, sec := range ch.Sections {
			v.Sections = append(v.Sections, sectionView{Number: sec.Number, Title: sec.Title, Page: sec.Page})
		}
	}
	return v
}

func toLocationView(loc doctree.Location, page int) locationView {
	v := locationView{Page: page, Citation: chunker.Citation(loc, page)}
	if loc.Chapter != nil {
		ch := toChapterView(*loc.Chapter, false)
		v.Chapter = &ch
	}
	if loc.Section != nil {
		v.Section = &sectionView{Number: loc.Section.Number, Title: loc.Section.Title, Page: loc.Section.Page}
	}
	return v
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	outline, err := s.store.LoadOutline(r.Context())
	if err != nil {
		s.log.Error("load outline failed", "error", err)
		jsonError(w, "failed to load outline", http.StatusInternalServerError)
		return
	}
	chapters := make([]chapterView, 0, len(outline.Chapters))
	for _, ch := range outline.Chapters {
		chapters = append(chapters, toChapterView(ch, true))
	}
	writeJSON(w, map[string]any{
		"chapters": chapters,
		"sections": outline.SectionCount(),
	})
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		jsonError(w, "page must be a positive integer", http.StatusBadRequest)
		return
	}
	outline, err := s.store.LoadOutline(r.Context())
	if err != nil {
		s.log.Error("load outline failed", "error", err)
		jsonError(w, "failed to load outline", http.StatusInternalServerError)
		return
	}
	loc := locator.New(outline).Resolve(page)
	writeJSON(w, toLocationView(loc, page))
}
