package worker

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobChannelFIFO(t *testing.T) {
	tx, rx := newJobChannel()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, tx.send(envelope{id: id}))
	}
	assert.Equal(t, 3, rx.len())

	for _, want := range []string{"a", "b", "c"} {
		e, ok := rx.recv()
		require.True(t, ok)
		assert.Equal(t, want, e.id)
	}
	assert.Equal(t, 0, rx.len())
}

func TestJobChannelRecvBlocksUntilSend(t *testing.T) {
	tx, rx := newJobChannel()
	got := make(chan string, 1)

	go func() {
		e, _ := rx.recv()
		got <- e.id
	}()

	select {
	case <-got:
		t.Fatal("recv returned before any send")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, tx.send(envelope{id: "late"}))

	select {
	case id := <-got:
		assert.Equal(t, "late", id)
	case <-time.After(time.Second):
		t.Fatal("recv did not wake up after send")
	}
}

func TestJobChannelDisconnectAfterDrain(t *testing.T) {
	tx, rx := newJobChannel()
	require.NoError(t, tx.send(envelope{id: "queued"}))

	tx.close()

	e, ok := rx.recv()
	require.True(t, ok, "queued job must still be delivered after close")
	assert.Equal(t, "queued", e.id)

	_, ok = rx.recv()
	assert.False(t, ok, "drained and closed channel reports disconnection")

	assert.ErrorIs(t, tx.send(envelope{id: "after"}), ErrPoolClosed)
}

func TestJobChannelCloseWakesWaiters(t *testing.T) {
	tx, rx := newJobChannel()
	shared := &sharedReceiver{rx: rx}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := shared.recv()
			assert.False(t, ok)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	tx.close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters were not released by close")
	}
}

func TestSharedReceiverDeliversOnce(t *testing.T) {
	tx, rx := newJobChannel()
	shared := &sharedReceiver{rx: rx}

	const total = 500
	for i := range total {
		require.NoError(t, tx.send(envelope{id: string(rune('A' + i%26)), job: func() {}}))
	}
	tx.close()

	var mu sync.Mutex
	received := 0
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, ok := shared.recv(); !ok {
					return
				}
				mu.Lock()
				received++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, total, received)
}

func TestJobChannelInterleavedKeepsOrder(t *testing.T) {
	tx, rx := newJobChannel()

	// 送受信を交互に繰り返してもFIFOが保たれる
	next, want := 0, 0
	for round := 0; round < 50; round++ {
		for i := 0; i < 7; i++ {
			require.NoError(t, tx.send(envelope{id: strconv.Itoa(next)}))
			next++
		}
		for i := 0; i < 5; i++ {
			e, ok := rx.recv()
			require.True(t, ok)
			require.Equal(t, strconv.Itoa(want), e.id)
			want++
		}
	}
	assert.Equal(t, next-want, rx.len())

	tx.close()
	for want < next {
		e, ok := rx.recv()
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(want), e.id)
		want++
	}
	_, ok := rx.recv()
	assert.False(t, ok)
}
