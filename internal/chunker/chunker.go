// Package chunker turns extracted entities into citation-bearing content chunks.
package chunker

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// MaxContentChars is the hard cap on chunk content, in characters.
const MaxContentChars = 2000

// Config controls chunk building.
type Config struct {
	MaxContent int // Content cap in characters.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxContent: MaxContentChars}
}

// Builder creates chunks. The zero value is not usable; use NewBuilder.
type Builder struct {
	cfg Config
	now func() time.Time
}

func NewBuilder(cfg Config) *Builder {
	if cfg.MaxContent <= 0 || cfg.MaxContent > MaxContentChars {
		cfg.MaxContent = MaxContentChars
	}
	return &Builder{cfg: cfg, now: time.Now}
}

type conditionField struct {
	typ   doctree.ChunkType
	label string
	text  string
}

// ForCondition emits one chunk per non-empty field, in the order treatment,
// clinical features, investigations. id is the stored condition row id.
func (b *Builder) ForCondition(c doctree.Condition, id int64, loc doctree.Location) []doctree.ContentChunk {
	fields := []conditionField{
		{doctree.ChunkTreatment, "Treatment for %s: %s", c.Treatment},
		{doctree.ChunkClinicalFeatures, "Clinical features of %s: %s", c.ClinicalFeatures},
		{doctree.ChunkInvestigations, "Investigations for %s: %s", c.Investigations},
	}

	var chunks []doctree.ContentChunk
	for _, f := range fields {
		if strings.TrimSpace(f.text) == "" {
			continue
		}
		content := b.truncate(fmt.Sprintf(f.label, c.Name, f.text))
		meta := map[string]any{
			"condition_id":  id,
			"type":          string(f.typ),
			"approx_tokens": EstimateTokens(content),
		}
		if c.ICDCode != "" {
			meta["icd_code"] = c.ICDCode
		}
		chunks = append(chunks, b.newChunk(content, f.typ, id, c.Page, c.Name, loc, meta))
	}
	return chunks
}

// ForMedication emits exactly one chunk listing the medication's known attributes.
func (b *Builder) ForMedication(m doctree.Medication, id int64, loc doctree.Location) doctree.ContentChunk {
	var sb strings.Builder
	sb.WriteString("Medication: ")
	sb.WriteString(m.Name)
	if m.Strength != "" {
		sb.WriteString(", Strength: ")
		sb.WriteString(m.Strength)
	}
	if m.Route != "" {
		sb.WriteString(", Route: ")
		sb.WriteString(m.Route)
	}

	content := b.truncate(sb.String())
	meta := map[string]any{
		"medication_id": id,
		"type":          string(doctree.ChunkMedication),
		"approx_tokens": EstimateTokens(content),
	}
	return b.newChunk(content, doctree.ChunkMedication, id, m.Page, m.Name, loc, meta)
}

func (b *Builder) newChunk(content string, typ doctree.ChunkType, sourceID int64, page int,
	name string, loc doctree.Location, meta map[string]any) doctree.ContentChunk {
	ch := doctree.ContentChunk{
		ID:            newID(),
		Content:       content,
		Type:          typ,
		SourceID:      sourceID,
		SectionNumber: loc.SectionNumber(),
		Page:          page,
		ConditionName: name,
		Citation:      Citation(loc, page),
		Metadata:      meta,
		CreatedAt:     b.now().UTC(),
	}
	if n, ok := loc.ChapterNumber(); ok {
		ch.ChapterNumber = &n
		ch.ChapterTitle = loc.Chapter.Title
	}
	return ch
}

// Citation renders the human-readable locator for a page. Pages before the
// first chapter get an explicit "No chapter" marker.
func Citation(loc doctree.Location, page int) string {
	n, ok := loc.ChapterNumber()
	if !ok {
		return fmt.Sprintf("No chapter, Page %d", page)
	}
	if s := loc.SectionNumber(); s != "" {
		return fmt.Sprintf("Chapter %d, Section %s, Page %d", n, s, page)
	}
	return fmt.Sprintf("Chapter %d, Page %d", n, page)
}

func (b *Builder) truncate(s string) string {
	n := 0
	for i := range s {
		if n == b.cfg.MaxContent {
			return s[:i]
		}
		n++
	}
	return s
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
