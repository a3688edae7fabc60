// Package sched abstracts wall-clock timers behind a small interface so the
// turn-taking machinery can run against a simulated clock in tests. The real
// implementation is a thin wrapper over the time package; Manual advances
// time explicitly and fires due callbacks deterministically.
package sched

import "time"

// Timer is a cancellable one-shot callback handle.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from firing. Stopping an already-fired or already-stopped
	// timer is a no-op.
	Stop() bool
}

// Ticker is a cancellable repeating callback handle.
type Ticker interface {
	// Stop cancels the ticker. On the real implementation a tick already
	// drained from the underlying channel may still run its callback after
	// Stop returns, so callers must re-check their own state inside the
	// callback; on Manual no callbacks fire after Stop is called.
	Stop()
}

// Scheduler is the clock the turn-taking state machine runs on.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	Every(d time.Duration, f func()) Ticker
}

// ─── Real clock ──────────────────────────────────────────────────────────────

type realScheduler struct{}

// New returns a Scheduler backed by the system clock.
func New() Scheduler {
	return realScheduler{}
}

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (realScheduler) Every(d time.Duration, f func()) Ticker {
	t := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				f()
			case <-done:
				return
			}
		}
	}()
	return &realTicker{t: t, done: done}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool { return r.t.Stop() }

type realTicker struct {
	t    *time.Ticker
	done chan struct{}
}

func (r *realTicker) Stop() {
	r.t.Stop()
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

var (
	_ Scheduler = realScheduler{}
	_ Timer     = realTimer{}
	_ Ticker    = (*realTicker)(nil)
)
