package memory

import (
	"context"
	"testing"
	"time"

	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextBatch(t *testing.T, sub storage.Subscription) storage.ChangeBatch {
	t.Helper()
	select {
	case b, ok := <-sub.Batches():
		require.True(t, ok, "subscription closed unexpectedly")
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
	}
	return storage.ChangeBatch{}
}

func TestStore_GetSetUpdate(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))

	_, err := s.Get(ctx, "raw", "r1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "raw", "r1", storage.Document{"N": 10.0}))
	require.NoError(t, s.Update(ctx, "raw", "r1", storage.Document{
		"processed":    true,
		"processed_at": storage.ServerTimestamp,
	}))

	doc, err := s.Get(ctx, "raw", "r1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, doc["N"])
	assert.Equal(t, true, doc["processed"])
	assert.Equal(t, fixed, doc["processed_at"])

	// Mutating the returned copy must not leak into the store.
	doc["N"] = 99.0
	again, err := s.Get(ctx, "raw", "r1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again["N"])

	require.ErrorIs(t, s.Update(ctx, "raw", "missing", storage.Document{"x": 1}), storage.ErrNotFound)
}

func TestStore_CreateIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	s := New()

	sub, err := s.Watch(ctx, "raw")
	require.NoError(t, err)
	defer sub.Stop()
	nextBatch(t, sub)

	require.NoError(t, s.Create(ctx, "raw", "r1", storage.Document{"N": 10.0}))
	require.ErrorIs(t, s.Create(ctx, "raw", "r1", storage.Document{"N": 99.0}), storage.ErrAlreadyExists)

	doc, err := s.Get(ctx, "raw", "r1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, doc["N"])

	b := nextBatch(t, sub)
	assert.Equal(t, []storage.Change{{Kind: storage.ChangeAdded, DocumentID: "r1"}}, b.Changes)
}

func TestStore_Latest(t *testing.T) {
	ctx := context.Background()
	s := New()

	latest, err := s.Latest(ctx, "raw", "timestamp")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.Set(ctx, "raw", "a", storage.Document{"timestamp": int64(100)}))
	require.NoError(t, s.Set(ctx, "raw", "b", storage.Document{"timestamp": 250.0}))
	require.NoError(t, s.Set(ctx, "raw", "c", storage.Document{"timestamp": int64(200)}))
	require.NoError(t, s.Set(ctx, "raw", "no-ts", storage.Document{"N": 1}))

	latest, err = s.Latest(ctx, "raw", "timestamp")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "b", latest.ID)
}

func TestStore_WatchDeliversInitialSnapshotThenChanges(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "raw", "b", storage.Document{"timestamp": 2}))
	require.NoError(t, s.Set(ctx, "raw", "a", storage.Document{"timestamp": 1}))

	sub, err := s.Watch(ctx, "raw")
	require.NoError(t, err)
	defer sub.Stop()

	initial := nextBatch(t, sub)
	require.Len(t, initial.Changes, 2)
	assert.Equal(t, "a", initial.Changes[0].DocumentID)
	assert.Equal(t, storage.ChangeAdded, initial.Changes[0].Kind)

	require.NoError(t, s.Set(ctx, "raw", "c", storage.Document{"timestamp": 3}))
	require.NoError(t, s.Update(ctx, "raw", "c", storage.Document{"processed": true}))
	require.NoError(t, s.Set(ctx, "other", "x", storage.Document{}))

	added := nextBatch(t, sub)
	assert.Equal(t, []storage.Change{{Kind: storage.ChangeAdded, DocumentID: "c"}}, added.Changes)
	modified := nextBatch(t, sub)
	assert.Equal(t, []storage.Change{{Kind: storage.ChangeModified, DocumentID: "c"}}, modified.Changes)
}

func TestStore_WatchEmptyCollection(t *testing.T) {
	s := New()
	sub, err := s.Watch(context.Background(), "raw")
	require.NoError(t, err)
	defer sub.Stop()

	initial := nextBatch(t, sub)
	assert.Empty(t, initial.Changes)
}

func TestStore_StopClosesBatches(t *testing.T) {
	ctx := context.Background()
	s := New()
	sub, err := s.Watch(ctx, "raw")
	require.NoError(t, err)
	nextBatch(t, sub)

	sub.Stop()
	sub.Stop()

	select {
	case _, ok := <-sub.Batches():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("batches channel not closed after Stop")
	}
	assert.ErrorIs(t, sub.Err(), storage.ErrSubscriptionClosed)

	// Writes after Stop must not block or panic.
	require.NoError(t, s.Set(ctx, "raw", "later", storage.Document{"timestamp": 1}))
}

func TestStore_ContextCancelStopsWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()
	sub, err := s.Watch(ctx, "raw")
	require.NoError(t, err)
	nextBatch(t, sub)

	cancel()

	select {
	case _, ok := <-sub.Batches():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("batches channel not closed after cancel")
	}
}

func TestStore_SlowConsumerDoesNotBlockWriters(t *testing.T) {
	ctx := context.Background()
	s := New(WithQueueSize(1))
	sub, err := s.Watch(ctx, "raw")
	require.NoError(t, err)
	defer sub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			_ = s.Set(ctx, "raw", "r", storage.Document{"timestamp": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writers blocked by slow subscriber")
	}

	// initial snapshot + 50 change batches, none dropped
	count := 0
	for count < 51 {
		nextBatch(t, sub)
		count++
	}
}
