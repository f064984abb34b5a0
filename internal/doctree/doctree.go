package doctree

import (
	"fmt"
	"time"
)

// Page is one page of extracted document text.
type Page struct {
	Number int    // 1-based page number in the source document
	Text   string // Raw page text, newline separated
}

// Outline is the chapter/section hierarchy parsed from a table of contents.
type Outline struct {
	Chapters []Chapter // Ordered by StartPage ascending
	Issues   []Issue   // Data-quality conditions found while parsing
}

// Chapter is a top-level division of the document.
type Chapter struct {
	Number    int
	Title     string
	StartPage int
	Sections  []Section // Ordered by Page ascending
}

// Section is a numbered subdivision of a chapter.
type Section struct {
	ChapterNumber int
	Number        string // Usually numeric ("186") but not guaranteed
	Title         string
	Page          int
}

// IssueKind classifies an outline data-quality condition.
type IssueKind string

const (
	IssueDuplicateChapter   IssueKind = "duplicate_chapter"
	IssueDuplicateStartPage IssueKind = "duplicate_start_page"
	IssueChapterOrder       IssueKind = "chapter_order"
	IssueOrphanSection      IssueKind = "orphan_section"
)

// Issue is a data-quality condition in the parsed outline.
type Issue struct {
	Kind    IssueKind
	Message string
	Line    string // Offending TOC line, when there is one
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Message)
}

// SectionCount returns the number of sections across all chapters.
func (o *Outline) SectionCount() int {
	n := 0
	for _, ch := range o.Chapters {
		n += len(ch.Sections)
	}
	return n
}

// Location is the most specific outline position covering a page.
// A nil Chapter or Section means no covering entry exists.
type Location struct {
	Chapter *Chapter
	Section *Section
}

// ChapterNumber returns the chapter number and whether a chapter is present.
func (l Location) ChapterNumber() (int, bool) {
	if l.Chapter == nil {
		return 0, false
	}
	return l.Chapter.Number, true
}

// SectionNumber returns the section number, or "" when absent.
func (l Location) SectionNumber() string {
	if l.Section == nil {
		return ""
	}
	return l.Section.Number
}

// Condition is a named diagnosis mined from page text. Name is its identity.
type Condition struct {
	Name             string
	ICDCode          string
	ClinicalFeatures string
	Investigations   string
	Treatment        string
	Page             int
	Confidence       float64
}

// Treatment is a therapy line attributed to the nearest preceding condition.
type Treatment struct {
	ConditionName string // Weak reference; empty when no condition was seen yet
	FirstLine     string
	SecondLine    string
	Dosage        string
	Duration      string
	Page          int
}

// Medication is a drug mention with optional strength and route.
type Medication struct {
	Name     string
	Strength string
	Route    string
	Page     int
}

// ChunkType names the source field a chunk was built from.
type ChunkType string

const (
	ChunkTreatment        ChunkType = "treatment"
	ChunkClinicalFeatures ChunkType = "clinical_features"
	ChunkInvestigations   ChunkType = "investigations"
	ChunkMedication       ChunkType = "medication"
)

// ContentChunk is a citation-bearing text unit ready for indexing.
type ContentChunk struct {
	ID            string
	Content       string
	Type          ChunkType
	SourceID      int64 // Row id of the originating condition or medication
	ChapterNumber *int  // nil when no chapter covers the page
	ChapterTitle  string
	SectionNumber string
	Page          int
	ConditionName string
	Citation      string
	Metadata      map[string]any
	Embedding     []float32 // Attached once, after creation
	CreatedAt     time.Time
}
