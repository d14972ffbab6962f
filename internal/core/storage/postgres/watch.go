package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/lib/pq"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
)

// notifier is the part of *pq.Listener a subscription needs.
type notifier interface {
	Notifications() <-chan *pq.Notification
	Ping() error
	Close() error
}

type pqNotifier struct {
	l *pq.Listener
}

func (n *pqNotifier) Notifications() <-chan *pq.Notification { return n.l.Notify }
func (n *pqNotifier) Ping() error                            { return n.l.Ping() }
func (n *pqNotifier) Close() error                           { return n.l.Close() }

func listen(dsn, channel string) (notifier, error) {
	l := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			slog.Warn("[Postgres] Listener connection attempt failed", "error", err)
		case pq.ListenerEventDisconnected:
			slog.Warn("[Postgres] Listener disconnected", "error", err)
		case pq.ListenerEventReconnected:
			slog.Info("[Postgres] Listener reconnected")
		}
	})
	if err := l.Listen(channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen on %q: %w", channel, err)
	}
	return &pqNotifier{l: l}, nil
}

// changePayload is the JSON body sent by the notify_document_change trigger.
type changePayload struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         string `json:"op"`
}

func changeKind(op string) storage.ChangeKind {
	switch op {
	case "INSERT":
		return storage.ChangeAdded
	case "DELETE":
		return storage.ChangeRemoved
	default:
		return storage.ChangeModified
	}
}

// Watch listens on the notify channel before listing the collection, so no
// write between the two is missed. The first batch lists every current
// document as ChangeAdded.
func (s *Store) Watch(ctx context.Context, collection string) (storage.Subscription, error) {
	n, err := s.newListener(s.channel)
	if err != nil {
		return nil, err
	}

	ids, err := s.listIDs(ctx, collection)
	if err != nil {
		n.Close()
		return nil, err
	}

	pump := storage.NewPump(s.queueSize)
	initial := storage.ChangeBatch{Changes: make([]storage.Change, 0, len(ids))}
	for _, id := range ids {
		initial.Changes = append(initial.Changes, storage.Change{Kind: storage.ChangeAdded, DocumentID: id})
	}
	pump.Push(initial)

	sub := &subscription{
		Pump:       pump,
		store:      s,
		listener:   n,
		collection: collection,
		closed:     make(chan struct{}),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	slog.Info("[Postgres] Watching collection", "collection", collection, "existing_documents", len(ids))
	go sub.run(ctx)
	return sub, nil
}

type subscription struct {
	*storage.Pump
	store      *Store
	listener   notifier
	collection string

	once      sync.Once
	closeOnce sync.Once
	closed    chan struct{}
}

func (s *subscription) run(ctx context.Context) {
	defer s.listener.Close()

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	notes := s.listener.Notifications()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-s.Stopped():
			return
		case <-s.closed:
			return
		case <-ticker.C:
			if err := s.listener.Ping(); err != nil {
				slog.Warn("[Postgres] Listener ping failed", "error", err)
			}
		case note, ok := <-notes:
			if !ok {
				s.Close(errors.New("postgres listener closed"))
				return
			}
			batch := storage.ChangeBatch{}
			resync := s.add(&batch, note)

			// Coalesce notifications that are already waiting.
		drain:
			for {
				select {
				case note, ok = <-notes:
					if !ok {
						break drain
					}
					resync = s.add(&batch, note) || resync
				default:
					break drain
				}
			}

			// A nil notification means the connection was re-established and
			// notifications may have been lost; an empty batch still makes
			// the consumer re-query.
			if len(batch.Changes) > 0 || resync {
				s.Push(batch)
			}
		}
	}
}

// add appends note to batch when it concerns this collection. It reports true
// for a reconnect marker.
func (s *subscription) add(batch *storage.ChangeBatch, note *pq.Notification) bool {
	if note == nil {
		slog.Warn("[Postgres] Listener reconnected, forcing resync", "collection", s.collection)
		return true
	}
	var p changePayload
	if err := json.Unmarshal([]byte(note.Extra), &p); err != nil {
		slog.Warn("[Postgres] Ignoring malformed notification", "payload", note.Extra, "error", err)
		return false
	}
	if p.Collection != s.collection {
		return false
	}
	batch.Changes = append(batch.Changes, storage.Change{Kind: changeKind(p.Op), DocumentID: p.ID})
	return false
}

func (s *subscription) Stop() {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.subs, s)
		s.store.mu.Unlock()
		s.Pump.Stop()
	})
}

// closeFromStore ends the subscription cleanly when the store is closed.
func (s *subscription) closeFromStore() {
	s.closeOnce.Do(func() {
		s.Pump.Close(nil)
		close(s.closed)
	})
}
