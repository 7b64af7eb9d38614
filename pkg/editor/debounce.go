// Package editor drives live re-rendering of a single image while its
// watermark settings change.
package editor

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a live update renders.
const DefaultDebounce = 150 * time.Millisecond

// Debouncer runs only the last of a burst of triggers, once no new trigger
// has arrived for the window. Superseded triggers never start.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer returns a debouncer with the given quiet period, or
// DefaultDebounce when window is not positive.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{window: window}
}

// Trigger schedules fn, cancelling any trigger still waiting. It does nothing
// after Stop.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		current := gen == d.gen && !d.stopped
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Stop cancels the waiting trigger and disables the debouncer. A function
// that has already started is not interrupted.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
