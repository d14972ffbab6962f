package natskv

import (
	"context"
	"testing"
	"time"

	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/stretchr/testify/require"
)

func nextBatch(t *testing.T, sub storage.Subscription) storage.ChangeBatch {
	t.Helper()
	select {
	case b, ok := <-sub.Batches():
		require.True(t, ok, "subscription closed unexpectedly")
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for batch")
		return storage.ChangeBatch{}
	}
}

// collect reads batches until n changes have arrived. Entries may be
// coalesced, so batch boundaries are not asserted.
func collect(t *testing.T, sub storage.Subscription, n int) []storage.Change {
	t.Helper()
	var changes []storage.Change
	for len(changes) < n {
		changes = append(changes, nextBatch(t, sub).Changes...)
	}
	return changes
}

func TestWatch_InitialSnapshotThenChanges(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Set(ctx, "npk_readings", "b", storage.Document{"N": 1}))
	require.NoError(t, store.Set(ctx, "npk_readings", "a", storage.Document{"N": 2}))
	require.NoError(t, store.Set(ctx, "npk_readings", "gone", storage.Document{"N": 3}))
	require.NoError(t, store.Delete(ctx, "npk_readings", "gone"))

	sub, err := store.Watch(ctx, "npk_readings")
	require.NoError(t, err)
	defer sub.Stop()

	initial := nextBatch(t, sub)
	require.Equal(t, []storage.Change{
		{Kind: storage.ChangeAdded, DocumentID: "a"},
		{Kind: storage.ChangeAdded, DocumentID: "b"},
	}, initial.Changes)

	require.NoError(t, store.Set(ctx, "npk_readings", "c", storage.Document{"N": 4}))
	require.NoError(t, store.Update(ctx, "npk_readings", "a", storage.Document{"processed": true}))
	require.NoError(t, store.Delete(ctx, "npk_readings", "b"))

	require.Equal(t, []storage.Change{
		{Kind: storage.ChangeAdded, DocumentID: "c"},
		{Kind: storage.ChangeModified, DocumentID: "a"},
		{Kind: storage.ChangeRemoved, DocumentID: "b"},
	}, collect(t, sub, 3))
}

func TestWatch_EmptyCollection(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := store.Watch(ctx, "npk_readings")
	require.NoError(t, err)
	defer sub.Stop()

	require.Empty(t, nextBatch(t, sub).Changes)

	require.NoError(t, store.Set(ctx, "npk_readings", "r1", storage.Document{"N": 10}))
	require.Equal(t, []storage.Change{{Kind: storage.ChangeAdded, DocumentID: "r1"}}, collect(t, sub, 1))
}

func TestWatch_OtherCollectionsAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := store.Watch(ctx, "npk_readings")
	require.NoError(t, err)
	defer sub.Stop()
	nextBatch(t, sub)

	require.NoError(t, store.Set(ctx, "calibrated_npk_readings_sensor_1", "x", storage.Document{"N": 1}))
	require.NoError(t, store.Set(ctx, "npk_readings", "y", storage.Document{"N": 1}))

	require.Equal(t, []storage.Change{{Kind: storage.ChangeAdded, DocumentID: "y"}}, collect(t, sub, 1))
}

func TestWatch_ContextCancel(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := store.Watch(ctx, "npk_readings")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Batches():
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 5*time.Millisecond)
	require.ErrorIs(t, sub.Err(), storage.ErrSubscriptionClosed)
}

func TestWatch_StoreCloseEndsCleanly(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set(context.Background(), "npk_readings", "r1", storage.Document{"N": 10}))
	sub, err := store.Watch(context.Background(), "npk_readings")
	require.NoError(t, err)

	require.NoError(t, store.Close())

	require.Len(t, nextBatch(t, sub).Changes, 1)
	select {
	case _, ok := <-sub.Batches():
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("batches not closed")
	}
	require.NoError(t, sub.Err())
}
