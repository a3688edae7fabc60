package sched

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven entirely by Advance. Callbacks registered via
// AfterFunc and Every fire synchronously inside Advance, in deadline order,
// on the calling goroutine. Callbacks may register further timers; those are
// honored within the same Advance if they fall due before it ends.
type Manual struct {
	mu   sync.Mutex
	now  time.Time
	next int
	jobs []*manualJob
}

type manualJob struct {
	id      int
	due     time.Time
	period  time.Duration // zero for one-shot
	f       func()
	stopped bool
	fired   bool
}

// NewManual returns a simulated clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := &manualJob{id: m.next, due: m.now.Add(d), f: f}
	m.next++
	m.jobs = append(m.jobs, j)
	return &manualHandle{m: m, j: j}
}

func (m *Manual) Every(d time.Duration, f func()) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := &manualJob{id: m.next, due: m.now.Add(d), period: d, f: f}
	m.next++
	m.jobs = append(m.jobs, j)
	return &manualTickerHandle{manualHandle{m: m, j: j}}
}

// Advance moves the clock forward by d, firing every due callback in
// deadline order (registration order breaks ties). Ticker callbacks fire
// once per elapsed period.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)

	for {
		j := m.nextDueLocked(target)
		if j == nil {
			break
		}
		m.now = j.due
		if j.period > 0 {
			j.due = j.due.Add(j.period)
		} else {
			j.fired = true
		}
		f := j.f
		m.mu.Unlock()
		f()
		m.mu.Lock()
	}

	m.now = target
	m.compactLocked()
	m.mu.Unlock()
}

// nextDueLocked returns the live job with the earliest deadline at or before
// target, or nil when none is due.
func (m *Manual) nextDueLocked(target time.Time) *manualJob {
	live := m.jobs[:0:0]
	for _, j := range m.jobs {
		if !j.stopped && !j.fired {
			live = append(live, j)
		}
	}
	sort.SliceStable(live, func(a, b int) bool {
		if !live[a].due.Equal(live[b].due) {
			return live[a].due.Before(live[b].due)
		}
		return live[a].id < live[b].id
	})
	for _, j := range live {
		if !j.due.After(target) {
			return j
		}
	}
	return nil
}

func (m *Manual) compactLocked() {
	live := m.jobs[:0]
	for _, j := range m.jobs {
		if !j.stopped && !j.fired {
			live = append(live, j)
		}
	}
	m.jobs = live
}

// Pending returns the number of live timers and tickers, for tests that
// assert cancellation actually happened.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if !j.stopped && !j.fired {
			n++
		}
	}
	return n
}

type manualHandle struct {
	m *Manual
	j *manualJob
}

func (h *manualHandle) Stop() bool {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	if h.j.stopped || h.j.fired {
		return false
	}
	h.j.stopped = true
	return true
}

type manualTickerHandle struct {
	manualHandle
}

func (h *manualTickerHandle) Stop() { h.manualHandle.Stop() }

var (
	_ Scheduler = (*Manual)(nil)
	_ Timer     = (*manualHandle)(nil)
	_ Ticker    = (*manualTickerHandle)(nil)
)
