package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Watch opens a snapshot listener on the collection. Firestore reports the
// documents present at listen time as added in the first snapshot, which
// becomes the initial batch.
func (s *Store) Watch(ctx context.Context, collection string) (storage.Subscription, error) {
	watchCtx, cancel := context.WithCancel(ctx)

	sub := &subscription{
		Pump:       storage.NewPump(s.queueSize),
		store:      s,
		collection: collection,
		cancel:     cancel,
		iter:       s.client.Collection(collection).Snapshots(watchCtx),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	slog.Info("[Firestore] Watching collection", "collection", collection)
	go sub.run()
	return sub, nil
}

type subscription struct {
	*storage.Pump
	store      *Store
	collection string
	iter       *firestore.QuerySnapshotIterator
	cancel     context.CancelFunc

	once      sync.Once
	closeOnce sync.Once
	clean     bool
}

func (s *subscription) run() {
	defer s.iter.Stop()

	for {
		qs, err := s.iter.Next()
		if err != nil {
			s.finish(err)
			return
		}
		s.Push(toBatch(qs.Changes))
	}
}

// finish maps the iterator's terminal error onto the pump. Cancellation that
// we caused through Stop or store Close is not a failure.
func (s *subscription) finish(err error) {
	select {
	case <-s.Stopped():
		return
	default:
	}

	s.store.mu.Lock()
	clean := s.clean
	s.store.mu.Unlock()

	switch {
	case clean:
		s.Pump.Close(nil)
	case errors.Is(err, iterator.Done), status.Code(err) == codes.Canceled, errors.Is(err, context.Canceled):
		s.Stop()
	default:
		slog.Error("[Firestore] Snapshot listener failed", "collection", s.collection, "error", err)
		s.detach()
		s.Pump.Close(fmt.Errorf("firestore listener on %s: %w", s.collection, err))
	}
}

func toBatch(changes []firestore.DocumentChange) storage.ChangeBatch {
	batch := storage.ChangeBatch{Changes: make([]storage.Change, 0, len(changes))}
	for _, c := range changes {
		batch.Changes = append(batch.Changes, storage.Change{Kind: changeKind(c.Kind), DocumentID: c.Doc.Ref.ID})
	}
	return batch
}

func changeKind(k firestore.DocumentChangeKind) storage.ChangeKind {
	switch k {
	case firestore.DocumentAdded:
		return storage.ChangeAdded
	case firestore.DocumentRemoved:
		return storage.ChangeRemoved
	default:
		return storage.ChangeModified
	}
}

func (s *subscription) detach() {
	s.store.mu.Lock()
	delete(s.store.subs, s)
	s.store.mu.Unlock()
}

func (s *subscription) Stop() {
	s.once.Do(func() {
		s.detach()
		s.Pump.Stop()
		s.cancel()
	})
}

// closeFromStore ends the listener and lets queued batches drain.
func (s *subscription) closeFromStore() {
	s.closeOnce.Do(func() {
		s.store.mu.Lock()
		s.clean = true
		s.store.mu.Unlock()
		s.cancel()
	})
}
