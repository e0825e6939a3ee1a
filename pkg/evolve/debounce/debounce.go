// Package debounce provides a cancel-and-reschedule timer for coalescing
// rapid event bursts into a single callback after a quiet period.
package debounce

import (
	"sync"
	"time"
)

// Debouncer executes a function only after its duration has elapsed
// without any new calls.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
}

// New creates a debouncer with the specified quiescence window.
func New(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Trigger schedules fn after the quiescence window. Rapid successive
// calls reset the timer; only the last fn runs.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel discards any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Flush runs fn immediately and cancels any pending call.
func (d *Debouncer) Flush(fn func()) {
	d.Cancel()
	fn()
}
