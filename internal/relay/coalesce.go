package relay

import (
	"sync"
	"time"

	"github.com/relayline/relayline/internal/domain"
)

// Debouncer coalesces rapid-fire updates (reactions, edits) per
// source-message id. Each new input for a key cancels the pending timer and
// starts a fresh one, so only the final state within the window fires.
type Debouncer struct {
	window time.Duration
	fire   func(domain.RawMessageEvent)

	mu      sync.Mutex
	pending map[string]*pendingUpdate
	stopped bool
}

type pendingUpdate struct {
	timer *time.Timer
	event domain.RawMessageEvent
}

// NewDebouncer creates a debouncer that calls fire with the latest event
// for a key once the window elapses without further input.
func NewDebouncer(window time.Duration, fire func(domain.RawMessageEvent)) *Debouncer {
	return &Debouncer{
		window:  window,
		fire:    fire,
		pending: make(map[string]*pendingUpdate),
	}
}

// Submit registers an update keyed by source-message id.
func (d *Debouncer) Submit(ev domain.RawMessageEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if p, ok := d.pending[ev.ID]; ok {
		p.timer.Stop()
		p.event = ev
		p.timer = d.schedule(ev.ID)
		return
	}
	d.pending[ev.ID] = &pendingUpdate{event: ev, timer: d.schedule(ev.ID)}
}

func (d *Debouncer) schedule(key string) *time.Timer {
	return time.AfterFunc(d.window, func() {
		d.mu.Lock()
		p, ok := d.pending[key]
		if ok {
			delete(d.pending, key)
		}
		d.mu.Unlock()
		if ok {
			d.fire(p.event)
		}
	})
}

// Flush fires all pending updates immediately. Used at shutdown so queued
// updates are not lost.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	flushed := make([]domain.RawMessageEvent, 0, len(d.pending))
	for key, p := range d.pending {
		p.timer.Stop()
		flushed = append(flushed, p.event)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, ev := range flushed {
		d.fire(ev)
	}
}

// Stop cancels all pending timers without firing.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}
