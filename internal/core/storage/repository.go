package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist in a collection.
var ErrNotFound = errors.New("document not found")

// ErrAlreadyExists is returned by Create when the ID is already taken.
var ErrAlreadyExists = errors.New("document already exists")

// ErrSubscriptionClosed is reported by Subscription.Err after Stop.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Document is the field map of a stored document.
type Document map[string]interface{}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// serverTimestamp marks a field the backend must fill with its own clock on write.
type serverTimestamp struct{}

// ServerTimestamp is a sentinel field value. Backends replace it with the
// server-side write time (Firestore SERVER_TIMESTAMP, Postgres now(), ...).
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v interface{}) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Snapshot is a document read together with its ID.
type Snapshot struct {
	ID   string
	Data Document
}

// ChangeKind classifies a single entry of a change batch.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "ADDED"
	ChangeModified ChangeKind = "MODIFIED"
	ChangeRemoved  ChangeKind = "REMOVED"
)

// Change is one (kind, document ID) notification.
type Change struct {
	Kind       ChangeKind
	DocumentID string
}

// ChangeBatch is a set of changes delivered together by a subscription.
// The first batch of every subscription is the full current state of the
// collection, with every document reported as ChangeAdded.
type ChangeBatch struct {
	Changes []Change
}

// Subscription is a live watch on a collection.
type Subscription interface {
	// Batches delivers change batches in order. It is closed when the
	// subscription ends, either through Stop or because the watch failed.
	Batches() <-chan ChangeBatch

	// Err returns the terminal error once Batches is closed.
	Err() error

	// Stop detaches the watch. Safe to call more than once.
	Stop()
}

// DocumentStore is the document database collaborator consumed by the
// calibration pipeline.
type DocumentStore interface {
	// Get reads a document by ID. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Set creates or replaces the document at id.
	Set(ctx context.Context, collection, id string, doc Document) error

	// Create writes doc only if id is free. Returns ErrAlreadyExists otherwise.
	Create(ctx context.Context, collection, id string, doc Document) error

	// Update merges fields into an existing document. Returns ErrNotFound if
	// the document does not exist.
	Update(ctx context.Context, collection, id string, fields Document) error

	// Latest returns the document with the greatest value of orderBy, or nil
	// when the collection is empty.
	Latest(ctx context.Context, collection, orderBy string) (*Snapshot, error)

	// Watch subscribes to changes on a collection. The first delivered batch
	// is the initial snapshot of the collection.
	Watch(ctx context.Context, collection string) (Subscription, error)

	Close() error
}
