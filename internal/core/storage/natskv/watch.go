package natskv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/nats-io/nats.go/jetstream"
)

// Watch replays the bucket until the watcher's nil marker and delivers that
// replay as the initial batch. Keys whose last entry is a delete marker are
// left out of it.
func (s *Store) Watch(ctx context.Context, collection string) (storage.Subscription, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}

	w, err := kv.WatchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to watch bucket %s: %w", s.BucketName(collection), err)
	}

	known := make(map[string]struct{})
replay:
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return nil, ctx.Err()
		case entry, ok := <-w.Updates():
			if !ok {
				return nil, errors.New("watcher closed during initial replay")
			}
			if entry == nil {
				break replay
			}
			if entry.Operation() == jetstream.KeyValuePut {
				known[entry.Key()] = struct{}{}
			} else {
				delete(known, entry.Key())
			}
		}
	}

	ids := make([]string, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pump := storage.NewPump(s.queueSize)
	initial := storage.ChangeBatch{Changes: make([]storage.Change, 0, len(ids))}
	for _, id := range ids {
		initial.Changes = append(initial.Changes, storage.Change{Kind: storage.ChangeAdded, DocumentID: id})
	}
	pump.Push(initial)

	sub := &subscription{
		Pump:       pump,
		store:      s,
		watcher:    w,
		collection: collection,
		known:      known,
		closed:     make(chan struct{}),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	slog.Info("[NATS] Watching collection", "collection", collection, "bucket", s.BucketName(collection), "existing_documents", len(ids))
	go sub.run(ctx)
	return sub, nil
}

type subscription struct {
	*storage.Pump
	store      *Store
	watcher    jetstream.KeyWatcher
	collection string

	// known tracks live keys so a put can be told apart as an add or a
	// modification. Only the run goroutine touches it.
	known map[string]struct{}

	once      sync.Once
	closeOnce sync.Once
	closed    chan struct{}
}

func (s *subscription) run(ctx context.Context) {
	defer s.watcher.Stop()

	updates := s.watcher.Updates()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-s.Stopped():
			return
		case <-s.closed:
			return
		case entry, ok := <-updates:
			if !ok {
				s.Close(errors.New("nats watcher closed"))
				return
			}
			batch := storage.ChangeBatch{}
			s.add(&batch, entry)

			// Coalesce entries that are already waiting.
		drain:
			for {
				select {
				case entry, ok = <-updates:
					if !ok {
						break drain
					}
					s.add(&batch, entry)
				default:
					break drain
				}
			}

			if len(batch.Changes) > 0 {
				s.Push(batch)
			}
		}
	}
}

func (s *subscription) add(batch *storage.ChangeBatch, entry jetstream.KeyValueEntry) {
	if entry == nil {
		return
	}
	id := entry.Key()
	switch entry.Operation() {
	case jetstream.KeyValuePut:
		kind := storage.ChangeAdded
		if _, ok := s.known[id]; ok {
			kind = storage.ChangeModified
		}
		s.known[id] = struct{}{}
		batch.Changes = append(batch.Changes, storage.Change{Kind: kind, DocumentID: id})
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		delete(s.known, id)
		batch.Changes = append(batch.Changes, storage.Change{Kind: storage.ChangeRemoved, DocumentID: id})
	}
}

func (s *subscription) Stop() {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.subs, s)
		s.store.mu.Unlock()
		s.Pump.Stop()
	})
}

func (s *subscription) closeFromStore() {
	s.closeOnce.Do(func() {
		s.Pump.Close(nil)
		close(s.closed)
	})
}
