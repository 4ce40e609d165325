package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jvidalg/albasort/internal/classify"
	"github.com/jvidalg/albasort/internal/extract"
	"github.com/jvidalg/albasort/internal/place"
	"github.com/jvidalg/albasort/internal/rules"
	"github.com/jvidalg/albasort/internal/segment"
)

// Extractor is the slice of the text extractor the worker needs. The
// concrete *extract.Extractor satisfies it.
type Extractor interface {
	OpenBatch(path string) (*extract.Batch, error)
	File(ctx context.Context, path string, forceOCR bool) (string, error)
}

// Worker processes one batch job at a time: segment, classify, place.
// Pages are handled strictly in order because cut decisions depend on
// the state left by the previous page, so there is no parallelism here.
type Worker struct {
	rules *rules.Store
	ext   Extractor
	log   *slog.Logger

	outputRoot string
	tempRoot   string

	events chan<- Event
}

func NewWorker(rs *rules.Store, ext Extractor, log *slog.Logger, outputRoot, tempRoot string, events chan<- Event) *Worker {
	return &Worker{
		rules:      rs,
		ext:        ext,
		log:        log,
		outputRoot: outputRoot,
		tempRoot:   tempRoot,
		events:     events,
	}
}

// Process runs the full pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "file", job.Filename)
	w.emit(Event{Type: EventBatchStarted, JobID: job.ID, Note: job.Filename})

	// The rule snapshot is re-read per classification below so edits
	// take effect without a restart; this load only checks whether
	// classification is possible at all.
	if w.rules.Load().Empty() {
		job.AddWarning("rule store is empty: no document can be classified")
		log.Warn("rule store is empty, everything will land in manual review")
	}

	if job.Split && strings.EqualFold(filepath.Ext(job.Path), ".pdf") {
		w.processBatch(ctx, job, log)
	} else {
		w.processSingle(ctx, job, log)
	}

	w.finalize(job)
	w.emit(Event{Type: EventBatchFinished, JobID: job.ID, Note: string(job.Snapshot().Status)})
	log.Info("batch finished", "status", job.Snapshot().Status)
}

func (w *Worker) processBatch(ctx context.Context, job *Job, log *slog.Logger) {
	job.SetStatus(StatusSegmenting, "segmenting")

	batch, err := w.ext.OpenBatch(job.Path)
	if err != nil {
		log.Error("batch unreadable", "error", err)
		job.AddOutcome(DocumentOutcome{Confidence: classify.Low, Error: err.Error()})
		return
	}
	pageCount := batch.PageCount()

	detect := func(text string) string {
		return classify.Classify(text, w.rules.Load()).Provider
	}
	pageText := func(ctx context.Context, page int) (string, error) {
		if !job.OCR {
			// Optical fallback off for this batch: native text only.
			return batch.NativePageText(page)
		}
		return batch.PageText(ctx, page)
	}

	fragments, err := segment.Scan(ctx, pageCount, pageText, detect)
	batch.Close()
	if err != nil {
		log.Error("scan aborted", "error", err)
		job.AddOutcome(DocumentOutcome{Confidence: classify.Low, Error: err.Error()})
		return
	}
	job.SetCounts(pageCount, len(fragments))
	log.Info("batch segmented", "pages", pageCount, "fragments", len(fragments))

	if len(fragments) == 0 {
		return
	}

	tmpDir, err := os.MkdirTemp(w.tempRoot, "albasort-split-*")
	if err != nil {
		job.AddOutcome(DocumentOutcome{Confidence: classify.Low, Error: fmt.Sprintf("temp dir: %s", err)})
		return
	}
	// Fragments are transient: gone once the batch is done, whatever
	// happened to the individual documents.
	defer os.RemoveAll(tmpDir)

	files := segment.Cut(job.Path, tmpDir, fragments)

	job.SetStatus(StatusClassifying, "classifying")
	for _, f := range files {
		if f.Err != nil {
			log.Error("fragment cut failed", "provider", f.Provider, "error", f.Err)
			job.AddOutcome(DocumentOutcome{
				Provider:   f.Provider,
				Confidence: classify.Low,
				Pages:      f.Pages,
				Error:      f.Err.Error(),
			})
			continue
		}
		w.emit(Event{Type: EventFragmentCut, JobID: job.ID, Provider: f.Provider, Pages: f.Pages})
		w.processDocument(ctx, job, f.Path, f.Pages, log)
	}
}

func (w *Worker) processSingle(ctx context.Context, job *Job, log *slog.Logger) {
	job.SetStatus(StatusClassifying, "classifying")
	job.SetCounts(0, 1)
	w.processDocument(ctx, job, job.Path, nil, log)
}

// processDocument classifies one materialized document and moves it to
// its destination. Every failure degrades to a manual-review placement
// rather than dropping the document.
func (w *Worker) processDocument(ctx context.Context, job *Job, path string, pages []int, log *slog.Logger) {
	snap := w.rules.Load()

	var res classify.Result
	// Native text layer first, always: the extractor falls back to the
	// optical path on its own when the layer is empty or too short.
	// Forcing OCR here would re-render fragments that already carry
	// perfectly good text.
	text, err := w.ext.File(ctx, path, false)
	if err != nil {
		res = classify.Result{
			Confidence: classify.Low,
			Note:       fmt.Sprintf("text extraction failed (%s)", extract.Kind(err)),
		}
		log.Warn("document extraction failed", "path", path, "kind", extract.Kind(err), "error", err)
	} else {
		res = classify.Classify(text, snap)
	}

	var folder string
	if res.Provider != "" {
		folder = snap.Folder(res.Provider)
	}
	decision := place.Resolve(res, folder, filepath.Base(path), w.outputRoot)

	outcome := DocumentOutcome{
		Provider:   res.Provider,
		Identifier: res.Identifier,
		Confidence: res.Confidence,
		Pages:      pages,
		Note:       res.Note,
	}

	final, err := w.moveWithRetry(ctx, path, decision)
	if err != nil {
		outcome.Error = err.Error()
		log.Error("placement failed, source left in place", "path", path, "error", err)
	} else {
		outcome.FinalPath = final.FinalPath()
		log.Info("document placed",
			"provider", res.Provider,
			"identifier", res.Identifier,
			"final_path", outcome.FinalPath,
			"collision", final.CollisionResolved,
		)
	}
	job.AddOutcome(outcome)

	w.emit(Event{
		Type:       EventDocumentPlaced,
		JobID:      job.ID,
		Provider:   res.Provider,
		Identifier: res.Identifier,
		FinalPath:  outcome.FinalPath,
		Pages:      pages,
		Note:       res.Note,
		Error:      outcome.Error,
	})
}

func (w *Worker) moveWithRetry(ctx context.Context, src string, decision place.Decision) (place.Decision, error) {
	var lastErr error
	for attempt := range MaxRetries {
		final, err := place.Move(src, decision)
		if err == nil {
			return final, nil
		}
		lastErr = err
		if !place.IsTransient(err) {
			break
		}
		w.log.Warn("transient move failure", "src", src, "attempt", attempt, "error", err)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return decision, ctx.Err()
		}
	}
	return decision, lastErr
}

func (w *Worker) finalize(job *Job) {
	snap := job.Snapshot()
	failed := 0
	for _, o := range snap.Outcomes {
		if o.Error != "" {
			failed++
		}
	}
	switch {
	case len(snap.Outcomes) == 0:
		job.SetStatus(StatusCompleted, "done")
	case failed == len(snap.Outcomes):
		job.SetStatus(StatusFailed, "done")
	case failed > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) emit(ev Event) {
	if w.events == nil {
		return
	}
	ev.Time = time.Now()
	w.events <- ev
}
