package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/agrisense-lab/npkcal/internal/api/v1"
	coreerr "github.com/agrisense-lab/npkcal/internal/core/errors"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/agrisense-lab/npkcal/internal/metrics"
	"github.com/agrisense-lab/npkcal/internal/model"
)

// Outcome is the result class of one Process call.
type Outcome string

const (
	OutcomeCalibrated        Outcome = "calibrated"
	OutcomeSkippedCalibrated Outcome = "skipped_calibrated"
	OutcomeSkippedProcessed  Outcome = "skipped_processed"
	OutcomeSkippedDeadLetter Outcome = "skipped_dead_letter"
	OutcomeInvalid           Outcome = "invalid"
	OutcomeFailed            Outcome = "failed"
)

// Result reports what Process did. Err is set for OutcomeInvalid and OutcomeFailed.
type Result struct {
	Outcome Outcome
	Err     error
}

// Success is true only when the document was calibrated and marked processed.
func (r Result) Success() bool {
	return r.Outcome == OutcomeCalibrated
}

// Skipped is true when an idempotency guard short-circuited processing.
func (r Result) Skipped() bool {
	switch r.Outcome {
	case OutcomeSkippedCalibrated, OutcomeSkippedProcessed, OutcomeSkippedDeadLetter:
		return true
	}
	return false
}

// Collections names the raw source and calibrated destination collections.
type Collections struct {
	Raw        string
	Calibrated string
}

// Processor calibrates exactly one raw reading and records the result.
type Processor struct {
	store       storage.DocumentStore
	predictor   model.Predictor
	collections Collections
	metrics     metrics.Collector
}

func NewProcessor(store storage.DocumentStore, predictor model.Predictor, collections Collections, m metrics.Collector) *Processor {
	if store == nil {
		panic("calibration: store must not be nil")
	}
	if predictor == nil {
		panic("calibration: predictor must not be nil")
	}
	if collections.Raw == "" || collections.Calibrated == "" {
		panic("calibration: raw and calibrated collections are required")
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Processor{
		store:       store,
		predictor:   predictor,
		collections: collections,
		metrics:     m,
	}
}

// Process runs the idempotency guards, the model and the two writes for one
// raw reading. It never panics and never returns an error directly: every
// failure is logged and reported through the Result.
//
// The writes are not transactional. If the process dies after the calibrated
// insert but before the source update, the calibrated-exists guard stops a
// later attempt from writing a second time.
func (p *Processor) Process(ctx context.Context, id string, doc storage.Document) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Result{Outcome: OutcomeFailed, Err: fmt.Errorf("panic while processing %s: %v", id, r)}
			slog.Error("[Processor] Recovered from panic", "doc_id", id, "panic", r)
		}
		p.metrics.RecordOutcome(string(res.Outcome), time.Since(start))
	}()

	slog.Info("[Processor] Processing document", "doc_id", id)

	_, err := p.store.Get(ctx, p.collections.Calibrated, id)
	switch {
	case err == nil:
		slog.Info("[Processor] Already in calibrated collection, skipping", "doc_id", id, "collection", p.collections.Calibrated)
		return Result{Outcome: OutcomeSkippedCalibrated}
	case !errors.Is(err, storage.ErrNotFound):
		qerr := &coreerr.QueryError{Collection: p.collections.Calibrated, Err: err}
		slog.Error("[Processor] Failed to check calibrated collection", "doc_id", id, "error", qerr)
		return Result{Outcome: OutcomeFailed, Err: qerr}
	}

	if v1.IsProcessed(doc) {
		slog.Info("[Processor] Already marked as processed, skipping", "doc_id", id)
		return Result{Outcome: OutcomeSkippedProcessed}
	}
	if v1.IsDeadLettered(doc) {
		slog.Info("[Processor] Marked calibration_failed, skipping", "doc_id", id)
		return Result{Outcome: OutcomeSkippedDeadLetter}
	}

	features, err := v1.Features(doc)
	if err != nil {
		slog.Warn("[Processor] Missing field in document", "doc_id", id, "error", err)
		return Result{Outcome: OutcomeInvalid, Err: err}
	}

	outputs, err := p.predictor.Predict(ctx, features)
	if err != nil {
		slog.Error("[Processor] Model prediction failed", "doc_id", id, "error", err)
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("predict: %w", err)}
	}

	calibrated, err := v1.Calibrated(doc, outputs)
	if err != nil {
		slog.Error("[Processor] Unexpected model output", "doc_id", id, "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	if err := p.store.Set(ctx, p.collections.Calibrated, id, calibrated); err != nil {
		werr := &coreerr.WriteError{Collection: p.collections.Calibrated, DocumentID: id, Err: err}
		slog.Error("[Processor] Failed to save calibrated document", "doc_id", id, "error", werr)
		return Result{Outcome: OutcomeFailed, Err: werr}
	}

	if err := p.store.Update(ctx, p.collections.Raw, id, storage.Document{
		v1.FieldProcessed:   true,
		v1.FieldProcessedAt: storage.ServerTimestamp,
	}); err != nil {
		werr := &coreerr.WriteError{Collection: p.collections.Raw, DocumentID: id, Err: err}
		slog.Error("[Processor] Failed to mark source document processed", "doc_id", id, "error", werr)
		return Result{Outcome: OutcomeFailed, Err: werr}
	}

	slog.Info("[Processor] Calibrated and saved document",
		"doc_id", id,
		"sensor_id", v1.Describe(doc, v1.FieldSensorID),
		"timestamp", v1.Describe(doc, v1.FieldTimestamp),
		"original", fmt.Sprintf("N:%v, P:%v, K:%v", doc[v1.FieldN], doc[v1.FieldP], doc[v1.FieldK]),
		"calibrated", fmt.Sprintf("N:%.2f, P:%.2f, K:%.2f", outputs[0], outputs[1], outputs[2]),
	)
	return Result{Outcome: OutcomeCalibrated}
}

// MarkDeadLetter flags a raw reading so later notifications skip it.
func (p *Processor) MarkDeadLetter(ctx context.Context, id string, cause error) error {
	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}
	err := p.store.Update(ctx, p.collections.Raw, id, storage.Document{
		v1.FieldCalibrationFailed:   true,
		v1.FieldCalibrationError:    reason,
		v1.FieldCalibrationFailedAt: storage.ServerTimestamp,
	})
	if err != nil {
		return &coreerr.WriteError{Collection: p.collections.Raw, DocumentID: id, Err: err}
	}
	return nil
}

// Collections returns the collections this processor reads and writes.
func (p *Processor) Collections() Collections {
	return p.collections
}
