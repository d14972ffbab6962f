package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestResolveSwapsServerTimestamp(t *testing.T) {
	out := resolve(storage.Document{
		"calibrated_N":         11.2,
		"calibrated_timestamp": storage.ServerTimestamp,
	})
	require.Equal(t, 11.2, out["calibrated_N"])
	require.Equal(t, firestore.ServerTimestamp, out["calibrated_timestamp"])
}

func TestResolveStoresGatewayNumbersAsNumbers(t *testing.T) {
	dec := json.NewDecoder(bytes.NewReader([]byte(
		`{"N":10,"P":5,"K":8,"pH":6.2,"Conductivity":300,"timestamp":1700000000,"sensorId":"sensor-1"}`)))
	dec.UseNumber()
	var doc storage.Document
	require.NoError(t, dec.Decode(&doc))

	out := resolve(doc)
	for _, field := range []string{"N", "P", "K", "pH", "Conductivity", "timestamp"} {
		require.NotEqual(t, reflect.String, reflect.ValueOf(out[field]).Kind(), field)
	}
	require.Equal(t, int64(10), out["N"])
	require.Equal(t, 6.2, out["pH"])
	require.Equal(t, int64(1700000000), out["timestamp"])
	require.Equal(t, "sensor-1", out["sensorId"])

	ups := updates(storage.Document{"attempts": json.Number("2")})
	require.Equal(t, int64(2), ups[0].Value)
}

func TestUpdatesUseSingleSegmentPaths(t *testing.T) {
	ups := updates(storage.Document{
		"processed":    true,
		"processed_at": storage.ServerTimestamp,
		"a.b":          1,
	})
	require.Equal(t, []firestore.Update{
		{FieldPath: firestore.FieldPath{"a.b"}, Value: 1},
		{FieldPath: firestore.FieldPath{"processed"}, Value: true},
		{FieldPath: firestore.FieldPath{"processed_at"}, Value: firestore.ServerTimestamp},
	}, ups)
}

func TestToBatch(t *testing.T) {
	doc := func(id string) *firestore.DocumentSnapshot {
		return &firestore.DocumentSnapshot{Ref: &firestore.DocumentRef{ID: id}}
	}
	batch := toBatch([]firestore.DocumentChange{
		{Kind: firestore.DocumentAdded, Doc: doc("a")},
		{Kind: firestore.DocumentModified, Doc: doc("b")},
		{Kind: firestore.DocumentRemoved, Doc: doc("c")},
	})
	require.Equal(t, []storage.Change{
		{Kind: storage.ChangeAdded, DocumentID: "a"},
		{Kind: storage.ChangeModified, DocumentID: "b"},
		{Kind: storage.ChangeRemoved, DocumentID: "c"},
	}, batch.Changes)

	require.Empty(t, toBatch(nil).Changes)
}

// newEmulatorStore connects to the emulator named by FIRESTORE_EMULATOR_HOST,
// which the client library picks up without credentials.
func newEmulatorStore(t *testing.T) (*Store, string) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "npkcal-test")
	require.NoError(t, err)

	store := NewStore(client, WithQueueSize(8))
	t.Cleanup(func() { store.Close() })
	return store, "npk_readings_" + uuid.NewString()[:8]
}

func TestEmulator_CRUDAndLatest(t *testing.T) {
	store, coll := newEmulatorStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, coll, "r1")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, store.Update(ctx, coll, "r1", storage.Document{"processed": true}), storage.ErrNotFound)

	require.NoError(t, store.Set(ctx, coll, "r1", storage.Document{"N": 10, "timestamp": 100}))
	require.NoError(t, store.Set(ctx, coll, "r2", storage.Document{"N": 12, "timestamp": 200}))
	require.NoError(t, store.Update(ctx, coll, "r1", storage.Document{"processed": true, "processed_at": storage.ServerTimestamp}))

	doc, err := store.Get(ctx, coll, "r1")
	require.NoError(t, err)
	require.Equal(t, true, doc["processed"])
	require.IsType(t, time.Time{}, doc["processed_at"])

	snap, err := store.Latest(ctx, coll, "timestamp")
	require.NoError(t, err)
	require.Equal(t, "r2", snap.ID)

	require.NoError(t, store.Create(ctx, coll, "r3", storage.Document{"N": json.Number("9"), "timestamp": json.Number("300")}))
	require.ErrorIs(t, store.Create(ctx, coll, "r3", storage.Document{"N": 1}), storage.ErrAlreadyExists)

	snap, err = store.Latest(ctx, coll, "timestamp")
	require.NoError(t, err)
	require.Equal(t, "r3", snap.ID)
	require.Equal(t, int64(9), snap.Data["N"])

	snap, err = store.Latest(ctx, coll+"_empty", "timestamp")
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestEmulator_Watch(t *testing.T) {
	store, coll := newEmulatorStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Set(ctx, coll, "r1", storage.Document{"N": 10}))

	sub, err := store.Watch(ctx, coll)
	require.NoError(t, err)
	defer sub.Stop()

	initial := <-sub.Batches()
	require.Equal(t, []storage.Change{{Kind: storage.ChangeAdded, DocumentID: "r1"}}, initial.Changes)

	require.NoError(t, store.Set(ctx, coll, "r2", storage.Document{"N": 11}))
	select {
	case b := <-sub.Batches():
		require.Contains(t, b.Changes, storage.Change{Kind: storage.ChangeAdded, DocumentID: "r2"})
	case <-time.After(10 * time.Second):
		t.Fatal("no change batch")
	}

	sub.Stop()
	require.ErrorIs(t, sub.Err(), storage.ErrSubscriptionClosed)
}
