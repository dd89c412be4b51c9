package cascade

import (
	"time"

	"github.com/msalah0e/ripple/internal/clock"
)

// DefaultDebounce coalesces bursts of live recompute requests.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer runs only the last of a burst of calls, delay after the burst
// ends.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration

	seq   uint64
	timer clock.Timer
	fn    func()
}

// NewDebouncer creates a trailing-edge debouncer. delay <= 0 uses
// DefaultDebounce.
func NewDebouncer(c clock.Clock, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{clock: c, delay: delay}
}

// Trigger (re)arms the debouncer with fn.
func (d *Debouncer) Trigger(fn func()) {
	d.Stop()
	d.seq++
	seq := d.seq
	d.fn = fn
	d.timer = d.clock.AfterFunc(d.delay, func() {
		if seq != d.seq || d.fn == nil {
			return
		}
		d.fire()
	})
}

// Flush runs a pending call now. It reports whether one was pending.
func (d *Debouncer) Flush() bool {
	if d.fn == nil {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	d.fire()
	return true
}

// Stop drops a pending call.
func (d *Debouncer) Stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.fn = nil
}

// Pending reports whether a call is armed.
func (d *Debouncer) Pending() bool { return d.fn != nil }

func (d *Debouncer) fire() {
	fn := d.fn
	d.fn = nil
	d.timer = nil
	fn()
}
