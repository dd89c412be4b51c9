// Package clock provides the deferred-callback primitive the cascade engine
// runs on: a serial event loop for real hosts and a manually advanced clock
// for tests.
package clock

import "time"

// Timer is a pending deferred callback.
type Timer interface {
	// Stop prevents the callback from running if it has not been
	// dispatched yet. It reports whether the call stopped the timer.
	Stop() bool
}

// Clock schedules callbacks. Implementations guarantee callbacks never run
// concurrently with each other or with work posted to the same clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}
