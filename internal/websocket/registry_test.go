package websocket

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndSend(t *testing.T) {
	r := NewRegistry(2)
	assert.False(t, r.TrySend("u1", []byte("x")), "no entry")

	ob := r.Register("u1")
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.TrySend("u1", []byte("a")))
	assert.True(t, r.TrySend("u1", []byte("b")))
	assert.False(t, r.TrySend("u1", []byte("c")), "outbox full")

	assert.Equal(t, []byte("a"), <-ob.C())
	assert.Equal(t, []byte("b"), <-ob.C())
}

func TestRegistryReplaceClosesPrevious(t *testing.T) {
	r := NewRegistry(0)
	first := r.Register("u1")
	second := r.Register("u1")

	select {
	case <-first.Done():
	default:
		t.Fatal("first outbox still open")
	}
	assert.False(t, first.Offer([]byte("x")))
	assert.False(t, second.Closed())
	assert.Equal(t, 1, r.Count())
	assert.EqualValues(t, 1, r.Replaced())

	// A replaced session releasing its outbox must not evict the successor.
	assert.False(t, r.Release("u1", first))
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.TrySend("u1", []byte("y")))

	assert.True(t, r.Release("u1", second))
	assert.Zero(t, r.Count())
	assert.True(t, second.Closed())
}

func TestReplacedOutboxKeepsAcceptedMessages(t *testing.T) {
	r := NewRegistry(0)
	first := r.Register("u1")
	require.True(t, r.TrySend("u1", []byte("a")))
	require.True(t, r.TrySend("u1", []byte("b")))

	r.Register("u1")
	assert.False(t, first.Offer([]byte("late")), "closed outbox accepts nothing")
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, first.Drain())
	assert.Empty(t, first.Drain())
}

func TestOfferRacingReplaceIsNeverLost(t *testing.T) {
	for i := 0; i < 200; i++ {
		r := NewRegistry(0)
		ob := r.Register("u1")

		var accepted int
		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 50; j++ {
				if ob.Offer([]byte("m")) {
					accepted++
				}
			}
		}()
		r.Register("u1")
		<-done

		require.Len(t, ob.Drain(), accepted)
	}
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry(0)
	ob := r.Register("u1")

	r.Unregister("u1")
	r.Unregister("u1")
	r.Unregister("nobody")

	assert.True(t, ob.Closed())
	assert.Zero(t, r.Count())
	assert.False(t, r.TrySend("u1", []byte("x")))
}

func TestRegistryConcurrentUse(t *testing.T) {
	r := NewRegistry(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ob := r.Register("u1")
			r.TrySend("u1", []byte("x"))
			r.Release("u1", ob)
		}()
	}
	wg.Wait()

	require.Zero(t, r.Count())
	assert.LessOrEqual(t, r.Replaced(), int64(49))
}
