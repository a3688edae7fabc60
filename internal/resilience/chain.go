package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quastler/openfloor/pkg/provider/reply"
	"github.com/quastler/openfloor/pkg/provider/synth"
	"github.com/quastler/openfloor/pkg/provider/transcribe"
)

// ErrNoBackend is returned when every backend in a chain failed or had a
// tripped breaker.
var ErrNoBackend = errors.New("resilience: no backend available")

// ChainConfig configures the breaker cloned for every backend in a chain.
// The Stage label is derived from the chain's stage and the backend name.
type ChainConfig struct {
	Breaker BreakerConfig
}

// chain orders the configured backends of one pipeline stage behind
// per-backend breakers. The preferred backend is tried first, then the
// fallbacks in the order they were added.
type chain[T any] struct {
	stage string
	cfg   ChainConfig
	links []chainLink[T]
}

type chainLink[T any] struct {
	name    string
	backend T
	breaker *Breaker
}

func newChain[T any](stage, name string, preferred T, cfg ChainConfig) *chain[T] {
	c := &chain[T]{stage: stage, cfg: cfg}
	c.add(name, preferred)
	return c
}

func (c *chain[T]) add(name string, backend T) {
	bc := c.cfg.Breaker
	bc.Stage = c.stage + "/" + name
	c.links = append(c.links, chainLink[T]{
		name:    name,
		backend: backend,
		breaker: NewBreaker(bc),
	})
}

// dispatch tries call against each backend in order until one answers.
// Backends with a tripped breaker are skipped. When the turn itself is
// abandoned mid-call there is no point asking the next backend the same
// question, so the caller's context error comes back immediately.
func dispatch[T, R any](ctx context.Context, c *chain[T], call func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range c.links {
		l := &c.links[i]
		var out R
		err := l.breaker.Do(ctx, func() error {
			var callErr error
			out, callErr = call(l.backend)
			return callErr
		})
		if err == nil {
			return out, nil
		}
		if abandoned(ctx, err) {
			return zero, err
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping backend, breaker open",
				"stage", c.stage, "backend", l.name)
		} else {
			slog.Warn("backend failed, trying next",
				"stage", c.stage, "backend", l.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%s: %w: %v", c.stage, ErrNoBackend, lastErr)
}

// ─── Stage chains ────────────────────────────────────────────────────────────

// TranscribeChain is a [transcribe.Transcriber] that fails over across the
// configured transcription backends.
type TranscribeChain struct {
	c *chain[transcribe.Transcriber]
}

var _ transcribe.Transcriber = (*TranscribeChain)(nil)

// NewTranscribeChain creates a chain with preferred as its first backend.
func NewTranscribeChain(preferred transcribe.Transcriber, name string, cfg ChainConfig) *TranscribeChain {
	return &TranscribeChain{c: newChain("transcribe", name, preferred, cfg)}
}

// AddFallback registers a transcriber tried when earlier backends fail.
func (tc *TranscribeChain) AddFallback(name string, t transcribe.Transcriber) {
	tc.c.add(name, t)
}

// Transcribe runs the clip through the first healthy backend.
func (tc *TranscribeChain) Transcribe(ctx context.Context, clip transcribe.Clip) (transcribe.Result, error) {
	return dispatch(ctx, tc.c, func(t transcribe.Transcriber) (transcribe.Result, error) {
		return t.Transcribe(ctx, clip)
	})
}

// ReplyChain is a [reply.Generator] that fails over across the configured
// language-model backends.
type ReplyChain struct {
	c *chain[reply.Generator]
}

var _ reply.Generator = (*ReplyChain)(nil)

// NewReplyChain creates a chain with preferred as its first backend.
func NewReplyChain(preferred reply.Generator, name string, cfg ChainConfig) *ReplyChain {
	return &ReplyChain{c: newChain("reply", name, preferred, cfg)}
}

// AddFallback registers a generator tried when earlier backends fail.
func (rc *ReplyChain) AddFallback(name string, g reply.Generator) {
	rc.c.add(name, g)
}

// Reply generates a response using the first healthy backend.
func (rc *ReplyChain) Reply(ctx context.Context, req reply.Request) (string, error) {
	return dispatch(ctx, rc.c, func(g reply.Generator) (string, error) {
		return g.Reply(ctx, req)
	})
}

// SynthChain is a [synth.Synthesizer] that fails over across the configured
// speech-synthesis backends.
type SynthChain struct {
	c *chain[synth.Synthesizer]
}

var _ synth.Synthesizer = (*SynthChain)(nil)

// NewSynthChain creates a chain with preferred as its first backend.
func NewSynthChain(preferred synth.Synthesizer, name string, cfg ChainConfig) *SynthChain {
	return &SynthChain{c: newChain("synthesize", name, preferred, cfg)}
}

// AddFallback registers a synthesizer tried when earlier backends fail.
func (sc *SynthChain) AddFallback(name string, s synth.Synthesizer) {
	sc.c.add(name, s)
}

// Synthesize renders text to audio using the first healthy backend.
func (sc *SynthChain) Synthesize(ctx context.Context, text string, voice synth.Voice) (synth.Audio, error) {
	return dispatch(ctx, sc.c, func(s synth.Synthesizer) (synth.Audio, error) {
		return s.Synthesize(ctx, text, voice)
	})
}
