package sched_test

import (
	"testing"
	"time"

	"github.com/quastler/openfloor/internal/sched"
)

func TestManualAfterFuncFiresAtDeadline(t *testing.T) {
	t.Parallel()

	m := sched.NewManual(time.Unix(0, 0))
	fired := 0
	m.AfterFunc(100*time.Millisecond, func() { fired++ })

	m.Advance(99 * time.Millisecond)
	if fired != 0 {
		t.Fatal("timer fired before its deadline")
	}
	m.Advance(1 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	m.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("one-shot fired again, fired = %d", fired)
	}
}

func TestManualStopPreventsFiring(t *testing.T) {
	t.Parallel()

	m := sched.NewManual(time.Unix(0, 0))
	fired := false
	tm := m.AfterFunc(50*time.Millisecond, func() { fired = true })

	if !tm.Stop() {
		t.Fatal("Stop() = false on a pending timer")
	}
	m.Advance(time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if tm.Stop() {
		t.Fatal("Stop() = true on an already-stopped timer")
	}
	if got := m.Pending(); got != 0 {
		t.Fatalf("Pending() = %d, want 0", got)
	}
}

func TestManualEveryFiresPerPeriod(t *testing.T) {
	t.Parallel()

	m := sched.NewManual(time.Unix(0, 0))
	fired := 0
	tk := m.Every(100*time.Millisecond, func() { fired++ })

	m.Advance(350 * time.Millisecond)
	if fired != 3 {
		t.Fatalf("fired = %d, want 3", fired)
	}

	tk.Stop()
	m.Advance(time.Second)
	if fired != 3 {
		t.Fatalf("ticker fired after Stop, fired = %d", fired)
	}
}

func TestManualFiresInDeadlineOrder(t *testing.T) {
	t.Parallel()

	m := sched.NewManual(time.Unix(0, 0))
	var order []string
	m.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })
	m.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })

	m.Advance(300 * time.Millisecond)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b]", order)
	}
}

func TestManualCallbackCanSchedule(t *testing.T) {
	t.Parallel()

	m := sched.NewManual(time.Unix(0, 0))
	var order []string
	m.AfterFunc(100*time.Millisecond, func() {
		order = append(order, "first")
		m.AfterFunc(50*time.Millisecond, func() { order = append(order, "chained") })
	})

	m.Advance(200 * time.Millisecond)
	if len(order) != 2 || order[1] != "chained" {
		t.Fatalf("order = %v, want chained timer to fire within the same Advance", order)
	}
}

func TestManualNowTracksAdvance(t *testing.T) {
	t.Parallel()

	start := time.Unix(1000, 0)
	m := sched.NewManual(start)
	m.Advance(1500 * time.Millisecond)
	if got := m.Now(); !got.Equal(start.Add(1500 * time.Millisecond)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(1500*time.Millisecond))
	}
}

func TestManualNowDuringCallback(t *testing.T) {
	t.Parallel()

	m := sched.NewManual(time.Unix(0, 0))
	var at time.Time
	m.AfterFunc(100*time.Millisecond, func() { at = m.Now() })

	m.Advance(time.Second)
	if want := time.Unix(0, 0).Add(100 * time.Millisecond); !at.Equal(want) {
		t.Fatalf("Now() inside callback = %v, want %v", at, want)
	}
}
