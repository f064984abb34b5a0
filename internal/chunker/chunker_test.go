package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/stgrag/internal/doctree"
)

func chapterLoc() doctree.Location {
	ch := &doctree.Chapter{Number: 7, Title: "Infections", StartPage: 100}
	sec := &doctree.Section{ChapterNumber: 7, Number: "186", Title: "Severe Malaria", Page: 112}
	return doctree.Location{Chapter: ch, Section: sec}
}

func fullCondition() doctree.Condition {
	return doctree.Condition{
		Name:             "Severe Malaria",
		ICDCode:          "B50",
		ClinicalFeatures: "High fever, convulsions",
		Investigations:   "Blood film",
		Treatment:        "Artesunate 2.4mg/kg IV",
		Page:             113,
	}
}

func TestForCondition_ThreeChunksShareCitation(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	chunks := b.ForCondition(fullCondition(), 42, chapterLoc())

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantTypes := []doctree.ChunkType{doctree.ChunkTreatment, doctree.ChunkClinicalFeatures, doctree.ChunkInvestigations}
	seen := make(map[doctree.ChunkType]bool)
	for i, c := range chunks {
		if c.Type != wantTypes[i] {
			t.Errorf("chunk %d: expected type %s, got %s", i, wantTypes[i], c.Type)
		}
		seen[c.Type] = true
		if c.Citation != chunks[0].Citation {
			t.Errorf("chunk %d: citation %q differs from %q", i, c.Citation, chunks[0].Citation)
		}
		if c.SourceID != 42 || c.ConditionName != "Severe Malaria" || c.Page != 113 {
			t.Errorf("chunk %d: unexpected provenance %+v", i, c)
		}
		if c.ID == "" || c.CreatedAt.IsZero() {
			t.Errorf("chunk %d: expected id and created_at to be set", i)
		}
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 distinct types, got %v", seen)
	}
	if chunks[0].Citation != "Chapter 7, Section 186, Page 113" {
		t.Errorf("unexpected citation %q", chunks[0].Citation)
	}
	if chunks[0].Content != "Treatment for Severe Malaria: Artesunate 2.4mg/kg IV" {
		t.Errorf("unexpected content %q", chunks[0].Content)
	}
	if chunks[1].Content != "Clinical features of Severe Malaria: High fever, convulsions" {
		t.Errorf("unexpected content %q", chunks[1].Content)
	}
	if chunks[2].Content != "Investigations for Severe Malaria: Blood film" {
		t.Errorf("unexpected content %q", chunks[2].Content)
	}
	if chunks[0].ChapterNumber == nil || *chunks[0].ChapterNumber != 7 || chunks[0].ChapterTitle != "Infections" {
		t.Errorf("unexpected chapter fields: %v %q", chunks[0].ChapterNumber, chunks[0].ChapterTitle)
	}
	if chunks[0].Metadata["icd_code"] != "B50" || chunks[0].Metadata["condition_id"] != int64(42) {
		t.Errorf("unexpected metadata %v", chunks[0].Metadata)
	}
	if chunks[0].ID == chunks[1].ID {
		t.Error("expected distinct chunk ids")
	}
}

func TestForCondition_OnlyPopulatedFields(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	c := fullCondition()
	c.ClinicalFeatures = ""
	c.Investigations = "   "

	chunks := b.ForCondition(c, 1, chapterLoc())
	if len(chunks) != 1 || chunks[0].Type != doctree.ChunkTreatment {
		t.Fatalf("expected only a treatment chunk, got %+v", chunks)
	}

	c.Treatment = ""
	if got := b.ForCondition(c, 1, chapterLoc()); len(got) != 0 {
		t.Errorf("expected no chunks, got %d", len(got))
	}
}

func TestForCondition_ContentCap(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	c := fullCondition()
	c.Treatment = strings.Repeat("é", 5000)

	chunks := b.ForCondition(c, 1, chapterLoc())
	for _, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Content); n > MaxContentChars {
			t.Errorf("%s chunk has %d characters, cap is %d", ch.Type, n, MaxContentChars)
		}
		if !utf8.ValidString(ch.Content) {
			t.Errorf("%s chunk content is not valid UTF-8", ch.Type)
		}
	}
	if n := utf8.RuneCountInString(chunks[0].Content); n != MaxContentChars {
		t.Errorf("expected truncation to exactly %d characters, got %d", MaxContentChars, n)
	}
}

func TestForMedication(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	tests := []struct {
		med  doctree.Medication
		want string
	}{
		{doctree.Medication{Name: "Artesunate", Strength: "2.4mg/kg", Route: "IV", Page: 113}, "Medication: Artesunate, Strength: 2.4mg/kg, Route: IV"},
		{doctree.Medication{Name: "Paracetamol", Strength: "500mg", Page: 113}, "Medication: Paracetamol, Strength: 500mg"},
		{doctree.Medication{Name: "Quinine", Page: 113}, "Medication: Quinine"},
	}
	for _, tc := range tests {
		ch := b.ForMedication(tc.med, 9, chapterLoc())
		if ch.Content != tc.want {
			t.Errorf("got %q, want %q", ch.Content, tc.want)
		}
		if ch.Type != doctree.ChunkMedication || ch.SourceID != 9 {
			t.Errorf("unexpected chunk %+v", ch)
		}
		if ch.Metadata["medication_id"] != int64(9) {
			t.Errorf("unexpected metadata %v", ch.Metadata)
		}
	}
}

func TestCitation(t *testing.T) {
	ch := &doctree.Chapter{Number: 3, Title: "Malaria Control", StartPage: 45}
	tests := []struct {
		name string
		loc  doctree.Location
		page int
		want string
	}{
		{"with section", chapterLoc(), 113, "Chapter 7, Section 186, Page 113"},
		{"chapter only", doctree.Location{Chapter: ch}, 46, "Chapter 3, Page 46"},
		{"before first chapter", doctree.Location{}, 5, "No chapter, Page 5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Citation(tc.loc, tc.page); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestForCondition_NoChapter(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	c := fullCondition()
	c.Page = 5

	chunks := b.ForCondition(c, 1, doctree.Location{})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if ch.Citation != "No chapter, Page 5" {
			t.Errorf("unexpected citation %q", ch.Citation)
		}
		if ch.ChapterNumber != nil || ch.SectionNumber != "" {
			t.Errorf("expected absent chapter and section, got %v %q", ch.ChapterNumber, ch.SectionNumber)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("expected 0 tokens for empty text")
	}
	if EstimateTokens("x") != 1 {
		t.Error("expected at least 1 token for non-empty text")
	}
	if got := EstimateTokens(strings.Repeat("word ", 100)); got != 133 {
		t.Errorf("expected 133 tokens, got %d", got)
	}
}
