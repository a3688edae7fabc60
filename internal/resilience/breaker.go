// Package resilience keeps a conversation usable while its speech providers
// degrade. Every pipeline stage (transcribe, reply, synthesize) runs behind
// a [Breaker] that trips after a run of failures so a dead backend is not
// hammered on every utterance, and the configured fallback backends of a
// stage are tried through a chain (see [TranscribeChain], [ReplyChain],
// [SynthChain]) when the preferred one is unavailable.
//
// A turn abandoned by the speaker — the caller's context canceled mid-call —
// says nothing about backend health and never counts against a breaker.
//
// All types are safe for concurrent use once serving begins; chains must be
// fully assembled before the first call.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the breaker is open and
// the retry window has not yet elapsed.
var ErrBreakerOpen = errors.New("resilience: breaker is open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed is the normal mode; calls go through to the backend.
	BreakerClosed BreakerState = iota

	// BreakerOpen means the backend is considered down. Calls fail fast with
	// [ErrBreakerOpen] until the retry window elapses.
	BreakerOpen

	// BreakerProbing lets a bounded number of calls through to find out
	// whether the backend has recovered.
	BreakerProbing
)

// String returns the human-readable name of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero-value fields take the defaults
// noted per field.
type BreakerConfig struct {
	// Stage labels the guarded pipeline stage in log lines, e.g.
	// "transcribe" or "reply/ollama".
	Stage string

	// TripAfter is the length of the consecutive-failure run that opens
	// the breaker. Default: 5.
	TripAfter int

	// RetryAfter is how long the breaker stays open before probing the
	// backend again. Default: 30s.
	RetryAfter time.Duration

	// ProbeQuota is how many calls may go through while probing before
	// the breaker decides to close or reopen. Default: 3.
	ProbeQuota int
}

// Breaker guards one backend of one pipeline stage. It trips open after
// TripAfter consecutive counted failures, fails fast while open, and probes
// the backend again once the retry window has passed.
type Breaker struct {
	stage      string
	tripAfter  int
	retryAfter time.Duration
	probeQuota int

	mu         sync.Mutex
	state      BreakerState
	failRun    int
	lastFail   time.Time
	probes     int
	probeFails int
}

// NewBreaker creates a [Breaker] from cfg, filling in defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 5
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 30 * time.Second
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = 3
	}
	return &Breaker{
		stage:      cfg.Stage,
		tripAfter:  cfg.TripAfter,
		retryAfter: cfg.RetryAfter,
		probeQuota: cfg.ProbeQuota,
		state:      BreakerClosed,
	}
}

// Do runs call against the backend if the breaker allows it. While open it
// returns [ErrBreakerOpen] without calling; while probing only the probe
// quota goes through.
//
// A failure caused by the caller's own context — the speaker hung up or
// barged in mid-turn — is returned as-is but never counted: an abandoned
// turn reveals nothing about backend health.
func (b *Breaker) Do(ctx context.Context, call func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if time.Since(b.lastFail) < b.retryAfter {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = BreakerProbing
		b.probes = 0
		b.probeFails = 0
		slog.Info("breaker probing backend", "stage", b.stage)

	case BreakerProbing:
		if b.probes >= b.probeQuota {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}
	probing := b.state == BreakerProbing
	if probing {
		b.probes++
	}
	b.mu.Unlock()

	err := call()

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.countSuccess(probing)
	case abandoned(ctx, err):
		if probing {
			// the probe slot was never really spent
			b.probes--
		}
	default:
		b.countFailure(probing)
	}
	return err
}

// countFailure must be called with b.mu held.
func (b *Breaker) countFailure(probing bool) {
	b.lastFail = time.Now()

	if probing {
		b.probeFails++
		// one failed probe is enough; the backend is still down
		b.state = BreakerOpen
		b.failRun = b.tripAfter
		slog.Warn("breaker reopened, probe failed", "stage", b.stage)
		return
	}

	b.failRun++
	if b.failRun >= b.tripAfter {
		b.state = BreakerOpen
		slog.Warn("breaker tripped",
			"stage", b.stage,
			"failure_run", b.failRun)
	}
}

// countSuccess must be called with b.mu held.
func (b *Breaker) countSuccess(probing bool) {
	if probing {
		if b.probes-b.probeFails >= b.probeQuota {
			b.state = BreakerClosed
			b.failRun = 0
			b.probes = 0
			b.probeFails = 0
			slog.Info("breaker closed, backend recovered", "stage", b.stage)
		}
		return
	}
	b.failRun = 0
}

// State returns the current [BreakerState]. An open breaker whose retry
// window has elapsed reports [BreakerProbing]; the actual transition happens
// on the next [Breaker.Do].
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && time.Since(b.lastFail) >= b.retryAfter {
		return BreakerProbing
	}
	return b.state
}

// Reset forces the breaker back to [BreakerClosed], clearing all failure
// accounting.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failRun = 0
	b.probes = 0
	b.probeFails = 0
	slog.Info("breaker manually reset", "stage", b.stage)
}

// abandoned reports whether err is the caller's own context giving up
// rather than the backend failing.
func abandoned(ctx context.Context, err error) bool {
	cause := ctx.Err()
	return cause != nil && errors.Is(err, cause)
}
