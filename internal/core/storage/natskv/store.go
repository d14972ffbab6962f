// Package natskv implements storage.DocumentStore on NATS JetStream key-value
// buckets. Each collection maps to one bucket and each document to one key
// holding the JSON encoding of its fields.
package natskv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	DefaultBucketPrefix = "npkcal"

	// updateRetries bounds optimistic-concurrency retries of Update.
	updateRetries = 5
)

// Store implements storage.DocumentStore on JetStream KV.
type Store struct {
	nc        *nats.Conn
	js        jetstream.JetStream
	prefix    string
	queueSize int
	storage   jetstream.StorageType
	ownsConn  bool
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]jetstream.KeyValue
	subs    map[*subscription]struct{}
}

var _ storage.DocumentStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithBucketPrefix sets the prefix of bucket names, "<prefix>_<collection>".
func WithBucketPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithQueueSize sets the outbound channel capacity of new subscriptions.
func WithQueueSize(n int) Option {
	return func(s *Store) { s.queueSize = n }
}

// WithMemoryStorage creates buckets in memory instead of on disk.
func WithMemoryStorage() Option {
	return func(s *Store) { s.storage = jetstream.MemoryStorage }
}

// WithClock overrides the clock used for ServerTimestamp fields.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Connect dials url and returns a Store that closes the connection on Close.
func Connect(url string, opts ...Option) (*Store, error) {
	nc, err := nats.Connect(url,
		nats.Name("npkcal"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("[NATS] Disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("[NATS] Reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}

	s, err := NewStore(nc, opts...)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.ownsConn = true
	return s, nil
}

// NewStore builds a Store on an existing connection. The caller keeps
// ownership of nc.
func NewStore(nc *nats.Conn, opts ...Option) (*Store, error) {
	if nc == nil {
		panic("nats connection cannot be nil")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	s := &Store{
		nc:        nc,
		js:        js,
		prefix:    DefaultBucketPrefix,
		queueSize: storage.DefaultQueueSize,
		storage:   jetstream.FileStorage,
		now:       func() time.Time { return time.Now().UTC() },
		buckets:   make(map[string]jetstream.KeyValue),
		subs:      make(map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	slog.Info("[NATS] Document store initialized", "url", nc.ConnectedUrl(), "bucket_prefix", s.prefix)
	return s, nil
}

// BucketName returns the bucket backing collection.
func (s *Store) BucketName(collection string) string {
	return s.prefix + "_" + collection
}

// bucket creates or opens the bucket for collection. Concurrent creators race
// on CreateKeyValue, so ErrBucketExists falls back to opening it.
func (s *Store) bucket(ctx context.Context, collection string) (jetstream.KeyValue, error) {
	s.mu.Lock()
	kv, ok := s.buckets[collection]
	s.mu.Unlock()
	if ok {
		return kv, nil
	}

	name := s.BucketName(collection)
	kv, err := s.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "npkcal collection " + collection,
		Storage:     s.storage,
	})
	if errors.Is(err, jetstream.ErrBucketExists) {
		kv, err = s.js.KeyValue(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", name, err)
	}

	s.mu.Lock()
	s.buckets[collection] = kv
	s.mu.Unlock()
	return kv, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}
	doc, _, err := s.get(ctx, kv, collection, id)
	return doc, err
}

func (s *Store) get(ctx context.Context, kv jetstream.KeyValue, collection, id string) (storage.Document, uint64, error) {
	entry, err := kv.Get(ctx, id)
	if isNotFound(err) {
		return nil, 0, storage.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	doc, err := decode(entry.Value())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return doc, entry.Revision(), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc storage.Document) error {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}
	data, err := json.Marshal(s.resolve(doc))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if _, err := kv.Put(ctx, id, data); err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}

	slog.Debug("[NATS] Set document", "collection", collection, "doc_id", id)
	return nil
}

// Create puts doc only when the key has no live value, using the KV create
// primitive, so two concurrent creators cannot both succeed.
func (s *Store) Create(ctx context.Context, collection, id string, doc storage.Document) error {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}
	data, err := json.Marshal(s.resolve(doc))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if _, err := kv.Create(ctx, id, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create document %s/%s: %w", collection, id, err)
	}

	slog.Debug("[NATS] Created document", "collection", collection, "doc_id", id)
	return nil
}

// Update merges fields with a compare-and-set on the entry revision, retrying
// when another writer got there first.
func (s *Store) Update(ctx context.Context, collection, id string, fields storage.Document) error {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < updateRetries; attempt++ {
		doc, rev, err := s.get(ctx, kv, collection, id)
		if err != nil {
			return err
		}
		for k, v := range s.resolve(fields) {
			doc[k] = v
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}

		_, err = kv.Update(ctx, id, data, rev)
		if err == nil {
			slog.Debug("[NATS] Updated document", "collection", collection, "doc_id", id, "fields", len(fields))
			return nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
		}
		slog.Debug("[NATS] Concurrent write, retrying update", "collection", collection, "doc_id", id, "attempt", attempt+1)
	}
	return fmt.Errorf("failed to update document %s/%s: revision conflict after %d attempts", collection, id, updateRetries)
}

// Latest scans every key of the bucket. KV has no secondary index, so this is
// linear in the collection size.
func (s *Store) Latest(ctx context.Context, collection, orderBy string) (*storage.Snapshot, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}

	keys, err := kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest document in %s: %w", collection, err)
	}

	var best *storage.Snapshot
	for _, id := range keys {
		doc, _, err := s.get(ctx, kv, collection, id)
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted between Keys and Get.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query latest document in %s: %w", collection, err)
		}
		v, ok := doc[orderBy]
		if !ok {
			continue
		}
		if best == nil {
			best = &storage.Snapshot{ID: id, Data: doc}
			continue
		}
		c := storage.Compare(v, best.Data[orderBy])
		if c > 0 || (c == 0 && id > best.ID) {
			best = &storage.Snapshot{ID: id, Data: doc}
		}
	}
	return best, nil
}

// Delete removes a document. Not part of storage.DocumentStore.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}
	if err := kv.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Ping reports connection health for the readiness endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if status := s.nc.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection is %s", status)
	}
	return s.nc.FlushWithContext(ctx)
}

// Close ends every subscription and, when the store dialed it, the connection.
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

	if s.ownsConn {
		s.nc.Close()
	}
	return nil
}

// resolve copies doc, substituting ServerTimestamp sentinels with the store clock.
func (s *Store) resolve(doc storage.Document) storage.Document {
	out := make(storage.Document, len(doc))
	now := s.now()
	for k, v := range doc {
		if storage.IsServerTimestamp(v) {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

func decode(data []byte) (storage.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	doc := storage.Document{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}
