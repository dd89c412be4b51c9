package clock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when work is posted to a stopped loop.
var ErrClosed = errors.New("clock: loop closed")

// Loop is a single-goroutine event loop. Timer callbacks and posted
// functions are queued and executed one at a time by Run.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop with room for buffer queued callbacks.
func NewLoop(buffer int) *Loop {
	if buffer < 1 {
		buffer = 256
	}
	return &Loop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Now returns wall-clock time.
func (l *Loop) Now() time.Time { return time.Now() }

type loopTimer struct{ t *time.Timer }

func (lt loopTimer) Stop() bool { return lt.t.Stop() }

// AfterFunc queues fn on the loop once d has elapsed. A timer that already
// fired may still have its callback waiting in the queue; Stop cannot recall
// it.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return loopTimer{t: time.AfterFunc(d, func() { _ = l.Post(fn) })}
}

// Post queues fn for execution on the loop goroutine.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.queue <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}
}

// Run executes queued callbacks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Stop ends Run and rejects further posts. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
