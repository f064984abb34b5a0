package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/stgrag/internal/chunker"
	"github.com/dgallion1/stgrag/internal/doctree"
)

func malaria() doctree.Condition {
	return doctree.Condition{
		Name:             "Severe Malaria",
		ICDCode:          "B50",
		ClinicalFeatures: "High fever, convulsions",
		Investigations:   "Blood film",
		Treatment:        "Artesunate 2.4mg/kg IV",
		Page:             113,
	}
}

func loc() doctree.Location {
	return doctree.Location{
		Chapter: &doctree.Chapter{Number: 7, Title: "Infections", StartPage: 100},
		Section: &doctree.Section{ChapterNumber: 7, Number: "186", Page: 112},
	}
}

func TestUpsertCondition_KeepFirst(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	id1, created, err := s.UpsertCondition(ctx, malaria())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Error("expected first upsert to create")
	}

	second := malaria()
	second.Treatment = "Quinine"
	id2, created, err := s.UpsertCondition(ctx, second)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Error("expected second upsert to keep the existing row")
	}
	if id1 != id2 {
		t.Errorf("expected same id, got %d and %d", id1, id2)
	}

	got, id, err := s.Condition(ctx, "Severe Malaria")
	if err != nil {
		t.Fatalf("Condition: %v", err)
	}
	if id != id1 || got.Treatment != "Artesunate 2.4mg/kg IV" || got.ICDCode != "B50" {
		t.Errorf("expected first record kept, got %+v (id %d)", got, id)
	}

	if _, _, err := s.Condition(ctx, "Cholera"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertChunks_RerunDuplicates(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	b := chunker.NewBuilder(chunker.DefaultConfig())

	id, _, err := s.UpsertCondition(ctx, malaria())
	if err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 2; run++ {
		for _, ch := range b.ForCondition(malaria(), id, loc()) {
			if err := s.InsertChunk(ctx, ch); err != nil {
				t.Fatalf("run %d: insert chunk: %v", run, err)
			}
		}
	}

	for _, typ := range []doctree.ChunkType{doctree.ChunkTreatment, doctree.ChunkClinicalFeatures, doctree.ChunkInvestigations} {
		n, err := s.CountChunks(ctx, typ, id)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("%s: expected 2 rows after two runs, got %d", typ, n)
		}
	}
}

func TestChunkRoundTrip(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	b := chunker.NewBuilder(chunker.DefaultConfig())

	chunks := b.ForCondition(malaria(), 1, loc())
	if err := s.InsertChunk(ctx, chunks[0]); err != nil {
		t.Fatal(err)
	}
	noChapter := b.ForMedication(doctree.Medication{Name: "Artesunate", Strength: "2.4mg/kg", Page: 5}, 2, doctree.Location{})
	if err := s.InsertChunk(ctx, noChapter); err != nil {
		t.Fatal(err)
	}

	got, err := s.Chunk(ctx, chunks[0].ID)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if got.Content != chunks[0].Content || got.Citation != chunks[0].Citation || got.Type != doctree.ChunkTreatment {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.ChapterNumber == nil || *got.ChapterNumber != 7 || got.SectionNumber != "186" {
		t.Errorf("unexpected chapter/section: %v %q", got.ChapterNumber, got.SectionNumber)
	}
	if got.Metadata["icd_code"] != "B50" {
		t.Errorf("unexpected metadata: %v", got.Metadata)
	}
	if !got.CreatedAt.Equal(chunks[0].CreatedAt) {
		t.Errorf("created_at %v != %v", got.CreatedAt, chunks[0].CreatedAt)
	}

	med, err := s.Chunk(ctx, noChapter.ID)
	if err != nil {
		t.Fatal(err)
	}
	if med.ChapterNumber != nil || med.Citation != "No chapter, Page 5" {
		t.Errorf("unexpected medication chunk: %+v", med)
	}

	if _, err := s.Chunk(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	byCond, err := s.ChunksByCondition(ctx, "Severe Malaria")
	if err != nil {
		t.Fatal(err)
	}
	if len(byCond) != 1 {
		t.Errorf("expected 1 chunk for Severe Malaria, got %d", len(byCond))
	}
}

func TestAttachEmbedding_Once(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	ch := chunker.NewBuilder(chunker.DefaultConfig()).ForCondition(malaria(), 1, loc())[0]
	if err := s.InsertChunk(ctx, ch); err != nil {
		t.Fatal(err)
	}

	pending, err := s.PendingEmbeddings(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != ch.ID {
		t.Fatalf("expected chunk pending, got %+v", pending)
	}

	if err := s.AttachEmbedding(ctx, ch.ID, []float32{1, 0, 0}); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := s.AttachEmbedding(ctx, ch.ID, []float32{0, 1, 0}); !errors.Is(err, ErrEmbeddingSet) {
		t.Errorf("expected ErrEmbeddingSet, got %v", err)
	}
	if err := s.AttachEmbedding(ctx, "missing", []float32{1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	got, err := s.Chunk(ctx, ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 1 {
		t.Errorf("expected first embedding kept, got %v", got.Embedding)
	}
	pending, _ = s.PendingEmbeddings(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("expected nothing pending, got %d", len(pending))
	}
}

func TestSimilarChunks(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	chunks := chunker.NewBuilder(chunker.DefaultConfig()).ForCondition(malaria(), 1, loc())
	vecs := [][]float32{{1, 0}, {0.7, 0.7}, {0, 1}}
	for i, ch := range chunks {
		if err := s.InsertChunk(ctx, ch); err != nil {
			t.Fatal(err)
		}
		if err := s.AttachEmbedding(ctx, ch.ID, vecs[i]); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := s.SimilarChunks(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Chunk.ID != chunks[0].ID || hits[1].Chunk.ID != chunks[1].ID {
		t.Errorf("unexpected ranking: %s, %s", hits[0].Chunk.Type, hits[1].Chunk.Type)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("expected near-1 score for identical vector, got %f", hits[0].Score)
	}

	if hits, _ := s.SimilarChunks(ctx, []float32{1, 0, 0}, 2); len(hits) != 0 {
		t.Errorf("expected dimension mismatch to yield no hits, got %d", len(hits))
	}
}

func TestSearch(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	if _, _, err := s.UpsertCondition(ctx, malaria()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertMedication(ctx, doctree.Medication{Name: "Amoxicillin", Strength: "500mg", Route: "oral", Page: 40}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertTreatment(ctx, doctree.Treatment{ConditionName: "Pneumonia", FirstLine: "Amoxicillin 500mg oral", Page: 40}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "artesunate", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ContentType != "condition" || hits[0].Title != "Severe Malaria" {
		t.Errorf("unexpected hits: %+v", hits)
	}

	hits, err = s.Search(ctx, "amoxicillin", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("expected medication and treatment hits, got %+v", hits)
	}

	// FTS operators in user input are treated literally.
	if _, err := s.Search(ctx, `malaria AND "(`, 10); err != nil {
		t.Errorf("expected sanitized query to succeed, got %v", err)
	}
	if hits, _ := s.Search(ctx, "   ", 10); hits != nil {
		t.Errorf("expected no hits for blank query, got %+v", hits)
	}
}

func TestUpsertCondition_DuplicateNotReindexed(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, _, err := s.UpsertCondition(ctx, malaria()); err != nil {
			t.Fatal(err)
		}
	}
	hits, err := s.Search(ctx, "malaria", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("expected a single index row, got %d", len(hits))
	}
}

func TestOutlineRoundTrip(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	outline := &doctree.Outline{Chapters: []doctree.Chapter{
		{Number: 1, Title: "Gastrointestinal", StartPage: 10, Sections: []doctree.Section{
			{ChapterNumber: 1, Number: "101", Title: "Diarrhoea", Page: 12},
		}},
		{Number: 7, Title: "Infections", StartPage: 100, Sections: []doctree.Section{
			{ChapterNumber: 7, Number: "186", Title: "Severe Malaria", Page: 112},
			{ChapterNumber: 7, Number: "187", Title: "Uncomplicated Malaria", Page: 115},
		}},
		{Number: 7, Title: "Duplicate", StartPage: 200},
	}}
	if err := s.SaveOutline(ctx, outline); err != nil {
		t.Fatalf("SaveOutline: %v", err)
	}
	// Saving again replaces rather than appends.
	if err := s.SaveOutline(ctx, outline); err != nil {
		t.Fatalf("SaveOutline again: %v", err)
	}

	got, err := s.LoadOutline(ctx)
	if err != nil {
		t.Fatalf("LoadOutline: %v", err)
	}
	if len(got.Chapters) != 2 {
		t.Fatalf("expected 2 chapters (duplicate number ignored), got %d", len(got.Chapters))
	}
	if got.Chapters[1].Title != "Infections" || len(got.Chapters[1].Sections) != 2 {
		t.Errorf("unexpected chapter 7: %+v", got.Chapters[1])
	}

	counts, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Chapters != 2 || counts.Sections != 3 {
		t.Errorf("unexpected counts %+v", counts)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stg.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
