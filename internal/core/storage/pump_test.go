package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(id string) ChangeBatch {
	return ChangeBatch{Changes: []Change{{Kind: ChangeAdded, DocumentID: id}}}
}

// drain reads until Batches is closed and returns what was delivered.
func drain(t *testing.T, p *Pump) []ChangeBatch {
	t.Helper()
	var got []ChangeBatch
	timeout := time.After(2 * time.Second)
	for {
		select {
		case b, ok := <-p.Batches():
			if !ok {
				return got
			}
			got = append(got, b)
		case <-timeout:
			t.Fatal("batches channel was not closed")
			return got
		}
	}
}

func TestPump_PushNeverBlocksAndKeepsOrder(t *testing.T) {
	p := NewPump(1)
	defer p.Stop()

	const n = 100
	done := make(chan struct{})
	go func() {
		for i := 0; i < n; i++ {
			p.Push(batch(fmt.Sprintf("d%03d", i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked with no consumer")
	}

	for i := 0; i < n; i++ {
		select {
		case b := <-p.Batches():
			require.Equal(t, fmt.Sprintf("d%03d", i), b.Changes[0].DocumentID)
		case <-time.After(2 * time.Second):
			t.Fatalf("batch %d not delivered", i)
		}
	}
}

func TestPump_CloseDrainsQueuedBatches(t *testing.T) {
	p := NewPump(1)
	for _, id := range []string{"a", "b", "c"} {
		p.Push(batch(id))
	}

	watchErr := errors.New("listener lost")
	p.Close(watchErr)
	p.Push(batch("late"))

	got := drain(t, p)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Changes[0].DocumentID)
	assert.Equal(t, "c", got[2].Changes[0].DocumentID)
	assert.ErrorIs(t, p.Err(), watchErr)
}

func TestPump_CloseNilEndsCleanly(t *testing.T) {
	p := NewPump(4)
	p.Close(nil)
	assert.Empty(t, drain(t, p))
	assert.NoError(t, p.Err())
}

func TestPump_StopDiscardsQueuedBatches(t *testing.T) {
	p := NewPump(1)
	for i := 0; i < 50; i++ {
		p.Push(batch(fmt.Sprintf("d%d", i)))
	}

	p.Stop()
	p.Stop()

	select {
	case <-p.Stopped():
	default:
		t.Fatal("Stopped not closed after Stop")
	}

	// At most the buffered batch and one in the forwarder's hands survive.
	assert.LessOrEqual(t, len(drain(t, p)), 2)
	assert.ErrorIs(t, p.Err(), ErrSubscriptionClosed)
}

func TestPump_PushAfterStopIsNoop(t *testing.T) {
	p := NewPump(4)
	p.Stop()

	p.Push(batch("ignored"))
	p.Close(errors.New("too late"))

	assert.Empty(t, drain(t, p))
	assert.ErrorIs(t, p.Err(), ErrSubscriptionClosed)
}
