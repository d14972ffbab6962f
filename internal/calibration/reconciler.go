package calibration

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	v1 "github.com/agrisense-lab/npkcal/internal/api/v1"
	coreerr "github.com/agrisense-lab/npkcal/internal/core/errors"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/agrisense-lab/npkcal/internal/metrics"
)

const (
	defaultMaxAttempts = 3
	loggedChanges      = 3
)

// DocumentProcessor is the part of *Processor the Reconciler depends on.
type DocumentProcessor interface {
	Process(ctx context.Context, id string, doc storage.Document) Result
	MarkDeadLetter(ctx context.Context, id string, cause error) error
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	// Collection is the raw readings collection to watch.
	Collection string

	// TimestampField orders the collection when looking for the latest reading.
	TimestampField string

	// MaxAttempts caps how often a reading that keeps failing validation is
	// retried before it is marked calibration_failed. Zero or less disables
	// the cap.
	MaxAttempts int
}

// State is a point-in-time copy of the reconciler's process-local state.
type State struct {
	LastProcessedID     string `json:"last_processed_id"`
	InitialSnapshotSeen bool   `json:"initial_snapshot_seen"`
	BatchesReceived     int64  `json:"batches_received"`
}

// Reconciler turns a subscription's change batches into a serialized
// sequence of "process the latest reading" decisions.
//
// Change batches are never trusted to name the new reading: one batch can
// carry many documents, and our own processed-flag updates come back as
// changes too. Every batch after the initial snapshot triggers a fresh
// latest-by-timestamp query, and the result is processed only if it differs
// from the last reading handled successfully. The store-side guards in
// Processor remain the source of truth for idempotency.
type Reconciler struct {
	store     storage.DocumentStore
	processor DocumentProcessor
	opts      ReconcilerOptions
	metrics   metrics.Collector

	mu                  sync.Mutex
	lastProcessedID     string
	initialSnapshotSeen bool
	batches             int64
	attempts            map[string]int
}

func NewReconciler(store storage.DocumentStore, processor DocumentProcessor, opts ReconcilerOptions, m metrics.Collector) *Reconciler {
	if store == nil {
		panic("calibration: store must not be nil")
	}
	if processor == nil {
		panic("calibration: processor must not be nil")
	}
	if opts.Collection == "" {
		panic("calibration: reconciler collection is required")
	}
	if opts.TimestampField == "" {
		opts.TimestampField = v1.FieldTimestamp
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Reconciler{
		store:     store,
		processor: processor,
		opts:      opts,
		metrics:   m,
		attempts:  make(map[string]int),
	}
}

// DefaultReconcilerOptions returns options for the given raw collection with
// the standard timestamp field and attempt cap.
func DefaultReconcilerOptions(collection string) ReconcilerOptions {
	return ReconcilerOptions{
		Collection:     collection,
		TimestampField: v1.FieldTimestamp,
		MaxAttempts:    defaultMaxAttempts,
	}
}

// Run establishes the baseline, attaches to the collection and handles
// batches one at a time until ctx is cancelled or the subscription ends.
// The subscription is always stopped before Run returns.
func (r *Reconciler) Run(ctx context.Context) error {
	if _, err := r.Baseline(ctx); err != nil {
		slog.Error("[Reconciler] Error fetching baseline document", "collection", r.opts.Collection, "error", err)
	}

	sub, err := r.Attach(ctx)
	if err != nil {
		return err
	}
	defer sub.Stop()

	slog.Info("[Reconciler] Listener active, waiting for new changes", "collection", r.opts.Collection)

	for {
		if ctx.Err() != nil {
			slog.Info("[Reconciler] Stopping (context cancelled)", "collection", r.opts.Collection)
			return nil
		}

		select {
		case <-ctx.Done():
			continue
		case batch, ok := <-sub.Batches():
			if !ok {
				return r.subscriptionEnded(ctx, sub)
			}
			r.HandleBatch(ctx, batch)
		}
	}
}

func (r *Reconciler) subscriptionEnded(ctx context.Context, sub storage.Subscription) error {
	if ctx.Err() != nil {
		slog.Info("[Reconciler] Stopping (context cancelled)", "collection", r.opts.Collection)
		return nil
	}
	err := sub.Err()
	if err == nil || errors.Is(err, storage.ErrSubscriptionClosed) {
		slog.Info("[Reconciler] Subscription closed by store", "collection", r.opts.Collection)
		return nil
	}
	serr := &coreerr.SubscriptionError{Collection: r.opts.Collection, Err: err}
	slog.Error("[Reconciler] Subscription failed", "error", serr)
	return serr
}

// Baseline records the current latest reading as already handled so that
// historical data is not reprocessed after a restart. Returns the baseline
// snapshot, or nil when the collection is empty.
func (r *Reconciler) Baseline(ctx context.Context) (*storage.Snapshot, error) {
	latest, err := r.store.Latest(ctx, r.opts.Collection, r.opts.TimestampField)
	if err != nil {
		return nil, &coreerr.QueryError{Collection: r.opts.Collection, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if latest == nil {
		slog.Info("[Reconciler] No existing documents found, will process first incoming document",
			"collection", r.opts.Collection)
		return nil, nil
	}

	r.lastProcessedID = latest.ID
	slog.Info("[Reconciler] Baseline set",
		"doc_id", latest.ID,
		"timestamp", v1.Describe(latest.Data, r.opts.TimestampField),
		"sensor_id", v1.Describe(latest.Data, v1.FieldSensorID),
	)
	return latest, nil
}

// Attach opens the live subscription on the raw collection.
func (r *Reconciler) Attach(ctx context.Context) (storage.Subscription, error) {
	sub, err := r.store.Watch(ctx, r.opts.Collection)
	if err != nil {
		serr := &coreerr.SubscriptionError{Collection: r.opts.Collection, Err: err}
		slog.Error("[Reconciler] Failed to attach listener", "error", serr)
		return nil, serr
	}
	return sub, nil
}

// HandleBatch processes one change batch. The first batch after attaching is
// the store's replay of existing documents and is discarded whatever its size.
func (r *Reconciler) HandleBatch(ctx context.Context, batch storage.ChangeBatch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	r.batches++

	if !r.initialSnapshotSeen {
		r.initialSnapshotSeen = true
		r.metrics.RecordBatch("initial", len(batch.Changes))
		slog.Info("[Reconciler] Initial snapshot received, skipping existing documents",
			"existing_documents", len(batch.Changes))
		return
	}

	r.metrics.RecordBatch("change", len(batch.Changes))
	slog.Info("[Reconciler] Change detected", "collection", r.opts.Collection, "changes", len(batch.Changes))
	for i, ch := range batch.Changes {
		if i == loggedChanges {
			slog.Info("[Reconciler] ... and more changes", "remaining", len(batch.Changes)-loggedChanges)
			break
		}
		slog.Info("[Reconciler] Change", "kind", ch.Kind, "doc_id", ch.DocumentID)
	}

	latest, err := r.store.Latest(ctx, r.opts.Collection, r.opts.TimestampField)
	if err != nil {
		qerr := &coreerr.QueryError{Collection: r.opts.Collection, Err: err}
		slog.Error("[Reconciler] Error fetching latest document, dropping batch", "error", qerr)
		return
	}
	if latest == nil {
		slog.Info("[Reconciler] Collection is empty, nothing to process", "collection", r.opts.Collection)
		return
	}

	slog.Info("[Reconciler] Latest document",
		"doc_id", latest.ID,
		"timestamp", v1.Describe(latest.Data, r.opts.TimestampField),
		"sensor_id", v1.Describe(latest.Data, v1.FieldSensorID),
	)

	if latest.ID == r.lastProcessedID {
		slog.Info("[Reconciler] Latest document was already processed", "doc_id", latest.ID)
		return
	}

	res := r.processor.Process(ctx, latest.ID, latest.Data)
	switch {
	case res.Success():
		r.lastProcessedID = latest.ID
		delete(r.attempts, latest.ID)
	case res.Outcome == OutcomeInvalid:
		r.recordInvalid(ctx, latest.ID, res.Err)
	}
}

// recordInvalid counts a validation failure and dead-letters the reading once
// it reaches MaxAttempts. Must be called with r.mu held.
func (r *Reconciler) recordInvalid(ctx context.Context, id string, cause error) {
	if r.opts.MaxAttempts <= 0 {
		return
	}

	r.attempts[id]++
	n := r.attempts[id]
	if n < r.opts.MaxAttempts {
		slog.Warn("[Reconciler] Document failed validation, will retry on next change",
			"doc_id", id, "attempt", n, "max_attempts", r.opts.MaxAttempts)
		return
	}

	if err := r.processor.MarkDeadLetter(ctx, id, cause); err != nil {
		slog.Error("[Reconciler] Failed to mark document calibration_failed", "doc_id", id, "error", err)
		return
	}

	delete(r.attempts, id)
	r.lastProcessedID = id
	r.metrics.RecordDeadLetter()
	slog.Warn("[Reconciler] Document marked calibration_failed", "doc_id", id, "attempts", n, "cause", cause)
}

// State returns a snapshot of the reconciler state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		LastProcessedID:     r.lastProcessedID,
		InitialSnapshotSeen: r.initialSnapshotSeen,
		BatchesReceived:     r.batches,
	}
}
