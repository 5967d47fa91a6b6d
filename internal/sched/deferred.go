// Package sched provides cancellable deferred callbacks with
// last-scheduled-wins semantics. Each Deferred handle covers one concern
// (invalid-tap detection, navigation settle, animation kick-off): scheduling
// a new callback implicitly cancels any prior pending one, so at most one
// callback per handle is ever outstanding.
package sched

import (
	"sync"
	"time"
)

// Deferred is a single-concern deferred callback slot.
// The zero value is ready to use.
type Deferred struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// Schedule arranges for fn to run after delay. Any previously scheduled
// callback on this handle that has not fired yet is cancelled first.
func (d *Deferred) Schedule(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(delay, func() {
		// A timer that was stopped too late to prevent firing must not
		// run a stale callback; the generation check filters those out.
		d.mu.Lock()
		current := d.gen == gen
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Cancel stops the pending callback, if any.
func (d *Deferred) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Pending reports whether a callback is scheduled and has not fired.
func (d *Deferred) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
