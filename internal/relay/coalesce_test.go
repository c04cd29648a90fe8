package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/relayline/relayline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firedEvents struct {
	mu     sync.Mutex
	events []domain.RawMessageEvent
}

func (f *firedEvents) add(ev domain.RawMessageEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *firedEvents) snapshot() []domain.RawMessageEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RawMessageEvent(nil), f.events...)
}

func TestDebouncer_CoalescesToLatest(t *testing.T) {
	var fired firedEvents
	d := NewDebouncer(50*time.Millisecond, fired.add)
	defer d.Stop()

	d.Submit(domain.RawMessageEvent{ID: "m1", Reaction: "👍", Kind: domain.EventReaction})
	d.Submit(domain.RawMessageEvent{ID: "m1", Reaction: "❤️", Kind: domain.EventReaction})
	d.Submit(domain.RawMessageEvent{ID: "m1", Reaction: "🔥", Kind: domain.EventReaction})

	require.Eventually(t, func() bool { return len(fired.snapshot()) == 1 },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, "🔥", fired.snapshot()[0].Reaction, "only the final state fires")
}

func TestDebouncer_KeysIndependent(t *testing.T) {
	var fired firedEvents
	d := NewDebouncer(30*time.Millisecond, fired.add)
	defer d.Stop()

	d.Submit(domain.RawMessageEvent{ID: "m1"})
	d.Submit(domain.RawMessageEvent{ID: "m2"})

	require.Eventually(t, func() bool { return len(fired.snapshot()) == 2 },
		time.Second, 10*time.Millisecond)
}

func TestDebouncer_NewInputResetsTimer(t *testing.T) {
	var fired firedEvents
	d := NewDebouncer(80*time.Millisecond, fired.add)
	defer d.Stop()

	d.Submit(domain.RawMessageEvent{ID: "m1"})
	time.Sleep(50 * time.Millisecond)
	d.Submit(domain.RawMessageEvent{ID: "m1"})
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, fired.snapshot(), "window restarted by the second input")

	require.Eventually(t, func() bool { return len(fired.snapshot()) == 1 },
		time.Second, 10*time.Millisecond)
}

func TestDebouncer_FlushFiresPending(t *testing.T) {
	var fired firedEvents
	d := NewDebouncer(time.Hour, fired.add)

	d.Submit(domain.RawMessageEvent{ID: "m1"})
	d.Submit(domain.RawMessageEvent{ID: "m2"})
	d.Flush()

	assert.Len(t, fired.snapshot(), 2)
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	var fired firedEvents
	d := NewDebouncer(20*time.Millisecond, fired.add)

	d.Submit(domain.RawMessageEvent{ID: "m1"})
	d.Stop()
	d.Submit(domain.RawMessageEvent{ID: "m2"})

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, fired.snapshot())
}
