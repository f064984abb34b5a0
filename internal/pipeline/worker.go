package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/stgrag/internal/chunker"
	"github.com/dgallion1/stgrag/internal/config"
	"github.com/dgallion1/stgrag/internal/doctree"
	"github.com/dgallion1/stgrag/internal/embed"
	"github.com/dgallion1/stgrag/internal/extract"
	"github.com/dgallion1/stgrag/internal/locator"
	"github.com/dgallion1/stgrag/internal/parser"
	"github.com/dgallion1/stgrag/internal/store"
	"github.com/dgallion1/stgrag/internal/toc"
)

// Worker processes a single document job.
type Worker struct {
	store     *store.Store
	extractor *extract.Extractor
	embedder  embed.Embedder // nil disables the embedding phase
	chunks    *chunker.Builder
	log       *slog.Logger
	cfg       config.Config
}

func NewWorker(st *store.Store, ex *extract.Extractor, emb embed.Embedder, log *slog.Logger, cfg config.Config) *Worker {
	return &Worker{
		store:     st,
		extractor: ex,
		embedder:  emb,
		chunks:    chunker.NewBuilder(chunker.DefaultConfig()),
		log:       log,
		cfg:       cfg,
	}
}

// storedCondition is a condition row this document touched.
type storedCondition struct {
	id        int64
	condition doctree.Condition
}

// storedMedication is a medication row written for this document.
type storedMedication struct {
	id         int64
	medication doctree.Medication
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	defer job.releaseFileData()

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	src, err := parser.ForFile(job.Filename, parser.Options{PDFFallbackPdftotext: w.cfg.PDFFallbackPdftotext})
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	pages, err := src.Pages(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if len(pages) == 0 {
		log.Warn("no pages produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Phase 2: Outline from the TOC pages.
	job.SetStatus(StatusStructuring, "structuring")
	tocPages := parser.Range(pages, w.cfg.TOCStartPage, w.cfg.TOCEndPage)
	outline := toc.NewParser(toc.Config{SectionMinNumber: w.cfg.SectionMinNumber}).Parse(tocPages)
	for _, issue := range outline.Issues {
		log.Warn("outline issue", "kind", issue.Kind, "message", issue.Message, "line", issue.Line)
	}
	job.SetOutline(len(outline.Chapters), outline.SectionCount(), len(outline.Issues))
	if err := w.store.SaveOutline(ctx, outline); err != nil {
		log.Error("save outline failed", "error", err)
		job.AddError(fmt.Sprintf("outline: %s", err))
		job.SetStatus(StatusFailed, "structuring")
		return
	}
	resolver := locator.New(outline)
	log.Info("outline parsed", "chapters", len(outline.Chapters), "sections", outline.SectionCount(),
		"issues", len(outline.Issues))

	// Phase 3: Extract entities, one page at a time in page order.
	job.SetStatus(StatusExtracting, "extracting")
	content := parser.Range(pages, w.cfg.ContentStartPage, w.cfg.ContentEndPage())
	job.SetPages(len(pages), len(content))
	res := w.extractor.Scan(content, extract.Context{})
	job.SetFound(res.Stats)
	log.Info("extraction complete",
		"pages", res.Stats.PagesProcessed,
		"conditions", res.Stats.ConditionsFound,
		"treatments", res.Stats.TreatmentsFound,
		"medications", res.Stats.MedicationsFound,
		"rejected", res.Stats.Rejected)

	// Phase 4: Store entities. Failures are logged and skipped.
	job.SetStatus(StatusStoring, "storing")
	conditions, meds := w.storeEntities(ctx, job, log, res)
	if err := ctx.Err(); err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "storing")
		return
	}

	// Phase 5: Chunks from the stored rows.
	job.SetStatus(StatusChunking, "chunking")
	w.storeChunks(ctx, job, log, resolver, conditions, meds)

	// Phase 6: Embeddings, when an embedder is configured.
	if w.embedder != nil {
		job.SetStatus(StatusEmbedding, "embedding")
		n, err := Backfill(ctx, w.store, w.embedder, w.cfg.EmbeddingBatch, log)
		job.AddEmbedded(n)
		if err != nil {
			log.Error("embedding backfill failed", "embedded", n, "error", err)
			job.AddError(fmt.Sprintf("embed: %s", err))
		}
	}

	snap := job.Snapshot()
	stored := snap.Progress.ConditionsStored + snap.Progress.TreatmentsStored + snap.Progress.MedicationsStored
	switch {
	case job.hasErrors() && stored > 0:
		job.SetStatus(StatusPartial, "done")
	case job.hasErrors():
		job.SetStatus(StatusFailed, "storing")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("ingest finished", "status", job.Snapshot().Status, "chunks", snap.Progress.Chunks,
		"embedded", snap.Progress.Embedded)
}

func (w *Worker) storeEntities(ctx context.Context, job *Job, log *slog.Logger, res extract.ScanResult) ([]storedCondition, []storedMedication) {
	var conditions []storedCondition
	seen := make(map[int64]bool)
	for _, c := range res.Conditions {
		id, created, err := w.store.UpsertCondition(ctx, c)
		if err != nil {
			log.Warn("store condition failed", "condition", c.Name, "page", c.Page, "error", err)
			job.AddError(fmt.Sprintf("condition %q: %s", c.Name, err))
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		stored := c
		if created {
			job.AddStored(1, 0, 0)
		} else {
			// Chunks describe the row that is actually stored.
			existing, _, err := w.store.Condition(ctx, c.Name)
			if err != nil {
				log.Warn("load condition failed", "condition", c.Name, "error", err)
				job.AddError(fmt.Sprintf("condition %q: %s", c.Name, err))
				continue
			}
			stored = existing
		}
		conditions = append(conditions, storedCondition{id: id, condition: stored})
	}

	for _, t := range res.Treatments {
		if _, err := w.store.InsertTreatment(ctx, t); err != nil {
			log.Warn("store treatment failed", "condition", t.ConditionName, "page", t.Page, "error", err)
			job.AddError(fmt.Sprintf("treatment page %d: %s", t.Page, err))
			continue
		}
		job.AddStored(0, 1, 0)
	}

	var meds []storedMedication
	for _, m := range res.Medications {
		id, err := w.store.InsertMedication(ctx, m)
		if err != nil {
			log.Warn("store medication failed", "medication", m.Name, "page", m.Page, "error", err)
			job.AddError(fmt.Sprintf("medication %q page %d: %s", m.Name, m.Page, err))
			continue
		}
		job.AddStored(0, 0, 1)
		meds = append(meds, storedMedication{id: id, medication: m})
	}
	return conditions, meds
}

func (w *Worker) storeChunks(ctx context.Context, job *Job, log *slog.Logger, resolver *locator.Resolver,
	conditions []storedCondition, meds []storedMedication) {
	var chunks []doctree.ContentChunk
	for _, sc := range conditions {
		loc := resolver.Resolve(sc.condition.Page)
		chunks = append(chunks, w.chunks.ForCondition(sc.condition, sc.id, loc)...)
	}
	for _, sm := range meds {
		loc := resolver.Resolve(sm.medication.Page)
		chunks = append(chunks, w.chunks.ForMedication(sm.medication, sm.id, loc))
	}

	for _, ch := range chunks {
		if err := w.store.InsertChunk(ctx, ch); err != nil {
			log.Warn("store chunk failed", "chunk_id", ch.ID, "type", ch.Type, "source_id", ch.SourceID, "error", err)
			job.AddError(fmt.Sprintf("chunk %s: %s", ch.ID, err))
			continue
		}
		job.AddChunks(1)
	}
	log.Info("chunks stored", "built", len(chunks))
}
