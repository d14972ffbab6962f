// Package firestore implements storage.DocumentStore on Google Cloud
// Firestore, the database the sensor gateway writes readings to.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store implements storage.DocumentStore on a Firestore client.
type Store struct {
	client    *firestore.Client
	queueSize int

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

var _ storage.DocumentStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithQueueSize sets the outbound channel capacity of new subscriptions.
func WithQueueSize(n int) Option {
	return func(s *Store) { s.queueSize = n }
}

// Open creates a Firestore client from service account credentials.
func Open(ctx context.Context, creds *Credentials, opts ...Option) (*Store, error) {
	if creds == nil {
		panic("firestore credentials cannot be nil")
	}
	client, err := firestore.NewClient(ctx, creds.ProjectID, option.WithCredentialsJSON(creds.JSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return NewStore(client, opts...), nil
}

// NewStore wraps an existing client. Close closes it.
func NewStore(client *firestore.Client, opts ...Option) *Store {
	if client == nil {
		panic("firestore client cannot be nil")
	}
	s := &Store{
		client:    client,
		queueSize: storage.DefaultQueueSize,
		subs:      make(map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	slog.Info("[Firestore] Document store initialized")
	return s
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return snap.Data(), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc storage.Document) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, resolve(doc)); err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	slog.Debug("[Firestore] Set document", "collection", collection, "doc_id", id)
	return nil
}

// Create fails with ErrAlreadyExists when the document is present.
func (s *Store) Create(ctx context.Context, collection, id string, doc storage.Document) error {
	_, err := s.client.Collection(collection).Doc(id).Create(ctx, resolve(doc))
	if status.Code(err) == codes.AlreadyExists {
		return storage.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create document %s/%s: %w", collection, id, err)
	}
	slog.Debug("[Firestore] Created document", "collection", collection, "doc_id", id)
	return nil
}

// Update merges top-level fields. Keys are used as single-segment field
// paths, so a key containing a dot does not address a nested field.
func (s *Store) Update(ctx context.Context, collection, id string, fields storage.Document) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, updates(fields))
	if status.Code(err) == codes.NotFound {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}
	slog.Debug("[Firestore] Updated document", "collection", collection, "doc_id", id, "fields", len(fields))
	return nil
}

func (s *Store) Latest(ctx context.Context, collection, orderBy string) (*storage.Snapshot, error) {
	it := s.client.Collection(collection).
		OrderBy(orderBy, firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest document in %s: %w", collection, err)
	}
	return &storage.Snapshot{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

// Ping issues a cheap read to check connectivity.
func (s *Store) Ping(ctx context.Context) error {
	it := s.client.Collections(ctx)
	_, err := it.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore unreachable: %w", err)
	}
	return nil
}

// Close ends every subscription and closes the client.
func (s *Store) Close() error {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[*subscription]struct{})
	s.mu.Unlock()

	for _, sub := range subs {
		sub.closeFromStore()
	}

	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close firestore client: %w", err)
	}
	return nil
}

// resolve copies doc, swapping the storage sentinel for Firestore's own.
// json.Number has reflect kind string and the client would store it as a
// string, so numbers are normalized first.
func resolve(doc storage.Document) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range storage.Normalize(doc) {
		if storage.IsServerTimestamp(v) {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}

func updates(fields storage.Document) []firestore.Update {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resolved := resolve(fields)
	out := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		out = append(out, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: resolved[k]})
	}
	return out
}
