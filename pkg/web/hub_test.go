package web

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumora-ai/resolve/pkg/progress"
)

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch1 := h.Subscribe()
	ch2 := h.Subscribe()
	assert.Equal(t, 2, h.ClientCount())

	ev := NewResolutionEvent(progress.PhaseSkill, "served")
	h.Broadcast(ev)

	got1 := <-ch1
	got2 := <-ch2
	assert.Equal(t, ev.Text, got1.Text)
	assert.Equal(t, ev.Text, got2.Text)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch := h.Subscribe()
	h.Unsubscribe(ch)
	assert.Zero(t, h.ClientCount())

	_, open := <-ch
	assert.False(t, open, "unsubscribed channel is closed")

	// double unsubscribe is safe
	h.Unsubscribe(ch)
}

func TestHub_SlowClientDropsEvents(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch := h.Subscribe()

	// fill the buffer past its capacity; extra events are dropped, the
	// broadcast never blocks
	for i := 0; i < 300; i++ {
		h.Broadcast(NewWarnEvent("flood"))
	}

	assert.Len(t, ch, 256)
	assert.Equal(t, int64(300-256), h.Dropped())
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	h.Close()
	assert.Zero(t, h.ClientCount())

	_, open := <-ch
	assert.False(t, open)

	// broadcast after close is a no-op
	h.Broadcast(NewWarnEvent("late"))
}

func TestHub_ConcurrentUse(t *testing.T) {
	h := NewHub()
	defer h.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ch := h.Subscribe()
				h.Broadcast(NewKeyCheckEvent("check"))
				h.Unsubscribe(ch)
			}
		}()
	}
	wg.Wait()

	require.Zero(t, h.ClientCount())
}
