package postgres

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	notes chan *pq.Notification

	mu     sync.Mutex
	closed bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notes: make(chan *pq.Notification, 16)}
}

func (f *fakeNotifier) Notifications() <-chan *pq.Notification { return f.notes }
func (f *fakeNotifier) Ping() error                            { return nil }

func (f *fakeNotifier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeNotifier) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func notification(collection, id, op string) *pq.Notification {
	return &pq.Notification{
		Channel: DefaultNotifyChannel,
		Extra:   `{"collection":"` + collection + `","id":"` + id + `","op":"` + op + `"}`,
	}
}

func nextBatch(t *testing.T, sub storage.Subscription) storage.ChangeBatch {
	t.Helper()
	select {
	case b, ok := <-sub.Batches():
		require.True(t, ok, "subscription closed unexpectedly")
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return storage.ChangeBatch{}
	}
}

func watchWithFake(t *testing.T, ctx context.Context) (*Store, storage.Subscription, *fakeNotifier, sqlmock.Sqlmock) {
	t.Helper()
	store, mock, db := newMockStore(t)
	t.Cleanup(func() { db.Close() })

	fake := newFakeNotifier()
	store.newListener = func(channel string) (notifier, error) {
		require.Equal(t, DefaultNotifyChannel, channel)
		return fake, nil
	}

	mock.ExpectQuery(regexp.QuoteMeta(queryListDocumentIDs)).
		WithArgs("npk_readings").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b")).
		RowsWillBeClosed()

	sub, err := store.Watch(ctx, "npk_readings")
	require.NoError(t, err)
	return store, sub, fake, mock
}

func TestWatch_InitialSnapshotThenNotifications(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, sub, fake, mock := watchWithFake(t, ctx)
	defer sub.Stop()

	initial := nextBatch(t, sub)
	require.Equal(t, []storage.Change{
		{Kind: storage.ChangeAdded, DocumentID: "a"},
		{Kind: storage.ChangeAdded, DocumentID: "b"},
	}, initial.Changes)
	require.NoError(t, mock.ExpectationsWereMet())

	// Other collections are filtered out and never produce an empty batch.
	fake.notes <- notification("calibrated_npk_readings_sensor_1", "c", "INSERT")
	fake.notes <- notification("npk_readings", "c", "INSERT")

	b := nextBatch(t, sub)
	require.Equal(t, []storage.Change{{Kind: storage.ChangeAdded, DocumentID: "c"}}, b.Changes)

	fake.notes <- notification("npk_readings", "c", "UPDATE")
	b = nextBatch(t, sub)
	require.Equal(t, []storage.Change{{Kind: storage.ChangeModified, DocumentID: "c"}}, b.Changes)
}

func TestWatch_ReconnectForcesResync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, sub, fake, _ := watchWithFake(t, ctx)
	defer sub.Stop()
	nextBatch(t, sub)

	fake.notes <- nil
	b := nextBatch(t, sub)
	require.Empty(t, b.Changes)
}

func TestWatch_MalformedPayloadIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, sub, fake, _ := watchWithFake(t, ctx)
	defer sub.Stop()
	nextBatch(t, sub)

	fake.notes <- &pq.Notification{Extra: "not json"}
	fake.notes <- notification("npk_readings", "d", "INSERT")

	b := nextBatch(t, sub)
	require.Equal(t, []storage.Change{{Kind: storage.ChangeAdded, DocumentID: "d"}}, b.Changes)
}

func TestWatch_ContextCancelClosesListener(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	_, sub, fake, _ := watchWithFake(t, ctx)
	cancel()

	require.Eventually(t, fake.Closed, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Batches():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	require.ErrorIs(t, sub.Err(), storage.ErrSubscriptionClosed)
}

func TestWatch_StoreCloseEndsSubscriptionCleanly(t *testing.T) {
	store, sub, fake, mock := watchWithFake(t, context.Background())
	mock.ExpectClose()

	require.NoError(t, store.Close())

	require.Len(t, nextBatch(t, sub).Changes, 2)
	select {
	case _, ok := <-sub.Batches():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("batches not closed")
	}
	require.NoError(t, sub.Err())
	require.Eventually(t, fake.Closed, 2*time.Second, 5*time.Millisecond)
}

func TestWatch_ListFailureClosesListener(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	fake := newFakeNotifier()
	store.newListener = func(string) (notifier, error) { return fake, nil }
	mock.ExpectQuery(regexp.QuoteMeta(queryListDocumentIDs)).
		WithArgs("npk_readings").
		WillReturnError(errors.New("permission denied for table documents"))

	_, err := store.Watch(context.Background(), "npk_readings")
	require.ErrorContains(t, err, "failed to list documents in npk_readings")
	require.True(t, fake.Closed())
}

func TestWatch_ListenFailure(t *testing.T) {
	store, _, db := newMockStore(t)
	defer db.Close()

	_, err := store.Watch(context.Background(), "npk_readings")
	require.ErrorContains(t, err, "no listener configured")
}
