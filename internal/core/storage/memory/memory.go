package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agrisense-lab/npkcal/internal/core/storage"
)

// Store is an in-memory implementation of storage.DocumentStore.
// Useful for testing and local development.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]storage.Document
	watchers    map[string]map[*storage.Pump]struct{}
	queueSize   int
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for ServerTimestamp fields.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithQueueSize sets the outbound channel capacity of new subscriptions.
func WithQueueSize(n int) Option {
	return func(s *Store) { s.queueSize = n }
}

// New creates an empty in-memory document store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]storage.Document),
		watchers:    make(map[string]map[*storage.Pump]struct{}),
		queueSize:   storage.DefaultQueueSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	// Return a copy to prevent external modification
	return doc.Clone(), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc storage.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]storage.Document)
		s.collections[collection] = docs
	}

	kind := storage.ChangeAdded
	if _, exists := docs[id]; exists {
		kind = storage.ChangeModified
	}
	docs[id] = s.resolve(doc)
	s.notifyLocked(collection, storage.Change{Kind: kind, DocumentID: id})
	return nil
}

func (s *Store) Create(ctx context.Context, collection, id string, doc storage.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]storage.Document)
		s.collections[collection] = docs
	}
	if _, exists := docs[id]; exists {
		return storage.ErrAlreadyExists
	}
	docs[id] = s.resolve(doc)
	s.notifyLocked(collection, storage.Change{Kind: storage.ChangeAdded, DocumentID: id})
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields storage.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return storage.ErrNotFound
	}
	merged := doc.Clone()
	for k, v := range s.resolve(fields) {
		merged[k] = v
	}
	s.collections[collection][id] = merged
	s.notifyLocked(collection, storage.Change{Kind: storage.ChangeModified, DocumentID: id})
	return nil
}

// Delete removes a document. Not part of storage.DocumentStore; the
// calibration pipeline never deletes.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.collections[collection], id)
	s.notifyLocked(collection, storage.Change{Kind: storage.ChangeRemoved, DocumentID: id})
	return nil
}

// Latest returns the document with the greatest orderBy value. Documents
// without the field are not eligible. Ties break on the larger ID so the
// result is deterministic.
func (s *Store) Latest(ctx context.Context, collection, orderBy string) (*storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		bestID  string
		bestVal interface{}
		found   bool
	)
	for id, doc := range s.collections[collection] {
		v, ok := doc[orderBy]
		if !ok {
			continue
		}
		if !found {
			bestID, bestVal, found = id, v, true
			continue
		}
		c := storage.Compare(v, bestVal)
		if c > 0 || (c == 0 && id > bestID) {
			bestID, bestVal = id, v
		}
	}
	if !found {
		return nil, nil
	}
	return &storage.Snapshot{ID: bestID, Data: s.collections[collection][bestID].Clone()}, nil
}

// Watch registers a subscription whose first batch lists every document
// currently in the collection.
func (s *Store) Watch(ctx context.Context, collection string) (storage.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pump := storage.NewPump(s.queueSize)

	ids := make([]string, 0, len(s.collections[collection]))
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	initial := storage.ChangeBatch{Changes: make([]storage.Change, 0, len(ids))}
	for _, id := range ids {
		initial.Changes = append(initial.Changes, storage.Change{Kind: storage.ChangeAdded, DocumentID: id})
	}
	pump.Push(initial)

	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[*storage.Pump]struct{})
	}
	s.watchers[collection][pump] = struct{}{}

	sub := &subscription{Pump: pump, detach: func() { s.unwatch(collection, pump) }}
	go func() {
		select {
		case <-ctx.Done():
			sub.Stop()
		case <-pump.Stopped():
		}
	}()
	return sub, nil
}

// Close ends every open subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for collection, pumps := range s.watchers {
		for p := range pumps {
			p.Close(nil)
		}
		delete(s.watchers, collection)
	}
	return nil
}

func (s *Store) unwatch(collection string, p *storage.Pump) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers[collection], p)
}

func (s *Store) notifyLocked(collection string, change storage.Change) {
	for p := range s.watchers[collection] {
		p.Push(storage.ChangeBatch{Changes: []storage.Change{change}})
	}
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

type subscription struct {
	*storage.Pump
	detach func()
	once   sync.Once
}

func (s *subscription) Stop() {
	s.once.Do(func() {
		s.detach()
		s.Pump.Stop()
	})
}
