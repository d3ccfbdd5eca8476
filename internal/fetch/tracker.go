// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"sync"
)

type (
	// Counters is a snapshot of the work in flight.
	Counters struct {
		Modules int
		Files   int
	}

	// Tracker counts module walks and file downloads in flight. Its idle
	// channel is closed the first time both counters are zero after having
	// been non-zero; a later increment re-arms it with a fresh channel.
	Tracker struct {
		mu       sync.Mutex
		counters Counters
		// hookMu is taken before mu is released so snapshots reach
		// onChange in update order.
		hookMu   sync.Mutex
		idle     chan struct{}
		closed   bool
		started  bool
		onChange func(Counters)
	}
)

// Idle reports whether no work is in flight.
func (c Counters) Idle() bool { return c.Modules == 0 && c.Files == 0 }

// NewTracker returns a Tracker. onChange, if set, receives every new
// snapshot in order and must not call back into the tracker.
func NewTracker(onChange func(Counters)) *Tracker {
	return &Tracker{idle: make(chan struct{}), onChange: onChange}
}

// AddModule records a module walk in flight.
func (t *Tracker) AddModule() { t.update(1, 0) }

// DoneModule records the end of a module walk.
func (t *Tracker) DoneModule() { t.update(-1, 0) }

// AddFile records a file download in flight.
func (t *Tracker) AddFile() { t.update(0, 1) }

// DoneFile records the end of a file download.
func (t *Tracker) DoneFile() { t.update(0, -1) }

// Pending returns the current counters.
func (t *Tracker) Pending() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

// Idle returns the channel for the current idle period.
func (t *Tracker) Idle() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idle
}

// Wait blocks until no work is in flight or ctx is done. It returns
// immediately when nothing was ever tracked.
func (t *Tracker) Wait(ctx context.Context) error {
	for {
		t.mu.Lock()
		if !t.started || (t.closed && t.counters.Idle()) {
			t.mu.Unlock()
			return nil
		}
		ch := t.idle
		t.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Tracker) update(modules, files int) {
	t.mu.Lock()
	next := Counters{Modules: t.counters.Modules + modules, Files: t.counters.Files + files}
	if next.Modules < 0 || next.Files < 0 {
		t.mu.Unlock()
		panic(fmt.Sprintf("fetch: tracker decremented below zero (modules=%d files=%d)", next.Modules, next.Files))
	}
	t.counters = next

	switch {
	case !next.Idle():
		t.started = true
		if t.closed {
			t.idle = make(chan struct{})
			t.closed = false
		}
	case t.started && !t.closed:
		close(t.idle)
		t.closed = true
	}
	onChange := t.onChange
	if onChange == nil {
		t.mu.Unlock()
		return
	}
	t.hookMu.Lock()
	t.mu.Unlock()

	defer t.hookMu.Unlock()
	onChange(next)
}
