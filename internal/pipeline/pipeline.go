// Package pipeline turns a finalized utterance recording into a spoken
// reply: transcribe, filter playback echo, consult conversation history,
// generate a reply, synthesize it. Each downstream provider sits behind its
// own circuit breaker so one flaky service cannot cascade.
//
// Pipeline failures are reported through the OnError callback and never
// touch turn-taking state; the conversation core keeps monitoring while the
// pipeline recovers.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quastler/openfloor/internal/observe"
	"github.com/quastler/openfloor/internal/resilience"
	"github.com/quastler/openfloor/internal/turn"
	"github.com/quastler/openfloor/pkg/history"
	"github.com/quastler/openfloor/pkg/provider/reply"
	"github.com/quastler/openfloor/pkg/provider/synth"
	"github.com/quastler/openfloor/pkg/provider/transcribe"
)

// Config holds the per-conversation knobs of a [Pipeline].
type Config struct {
	// ConversationID keys the history store. Required.
	ConversationID string

	// SystemPrompt is passed to the reply generator on every request.
	SystemPrompt string

	// Voice selects the synthesis voice.
	Voice synth.Voice

	// HistoryLimit caps how many prior turns are replayed as context.
	// Default: 20.
	HistoryLimit int

	// Temperature and MaxTokens are forwarded to the reply generator.
	// Zero values mean provider defaults.
	Temperature float64
	MaxTokens   int

	// Breaker configures the breaker cloned for each downstream stage.
	// The Stage field is overwritten per stage.
	Breaker resilience.BreakerConfig
}

const defaultHistoryLimit = 20

// Pipeline runs the transcribe/reply/synthesize chain for one conversation.
// It is safe for concurrent use, though utterances normally arrive one at a
// time from the turn supervisor.
type Pipeline struct {
	cfg    Config
	events turn.Events
	log    *slog.Logger

	transcriber transcribe.Transcriber
	generator   reply.Generator
	synthesizer synth.Synthesizer
	store       history.Store
	guard       *EchoGuard
	metrics     *observe.Metrics

	transcribeCB *resilience.Breaker
	replyCB      *resilience.Breaker
	synthCB      *resilience.Breaker
}

// New creates a [Pipeline]. events slots may be nil; store may be nil to
// disable history. metrics falls back to [observe.DefaultMetrics] and log to
// [slog.Default] when nil.
func New(
	cfg Config,
	transcriber transcribe.Transcriber,
	generator reply.Generator,
	synthesizer synth.Synthesizer,
	store history.Store,
	events turn.Events,
	metrics *observe.Metrics,
	log *slog.Logger,
) *Pipeline {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if log == nil {
		log = slog.Default()
	}

	breaker := func(stage string) *resilience.Breaker {
		bc := cfg.Breaker
		bc.Stage = stage
		return resilience.NewBreaker(bc)
	}

	return &Pipeline{
		cfg:          cfg,
		events:       events.Normalized(),
		log:          log.With("conversation_id", cfg.ConversationID),
		transcriber:  transcriber,
		generator:    generator,
		synthesizer:  synthesizer,
		store:        store,
		guard:        NewEchoGuard(),
		metrics:      metrics,
		transcribeCB: breaker("transcribe"),
		replyCB:      breaker("reply"),
		synthCB:      breaker("synthesize"),
	}
}

// Guard exposes the pipeline's echo guard so callers that play synthesized
// audio through an external path can keep the reference current.
func (p *Pipeline) Guard() *EchoGuard {
	return p.guard
}

// Process runs one utterance through the full chain and fires the processing
// callbacks. The returned Outcome is also delivered via OnProcessingComplete;
// on failure OnError fires instead and the error is returned.
func (p *Pipeline) Process(ctx context.Context, rec turn.Recording) (turn.Outcome, error) {
	ctx, span := observe.StageSpan(ctx, "process", p.cfg.ConversationID)
	defer span.End()

	p.events.OnProcessingStart()
	start := time.Now()

	out, err := p.run(ctx, rec)
	p.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		p.log.Error("utterance pipeline failed", "error", err)
		p.events.OnError(err.Error())
		return turn.Outcome{}, err
	}

	p.events.OnProcessingComplete(out)
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, rec turn.Recording) (turn.Outcome, error) {
	text, err := p.transcribe(ctx, rec)
	if err != nil {
		return turn.Outcome{}, err
	}
	if text == "" {
		p.log.Debug("transcription empty, skipping reply")
		return turn.Outcome{NoSpeech: true}, nil
	}
	if p.guard.IsEcho(text) {
		p.metrics.EchoDiscards.Add(ctx, 1)
		p.log.Debug("discarding playback echo", "transcript", text)
		return turn.Outcome{Transcript: text, NoSpeech: true}, nil
	}

	answer, err := p.generate(ctx, text)
	if err != nil {
		return turn.Outcome{}, err
	}
	p.guard.SetReference(answer)

	audio, err := p.synthesize(ctx, answer)
	if err != nil {
		return turn.Outcome{}, err
	}

	return turn.Outcome{
		Transcript: text,
		Reply:      answer,
		Audio:      audio.Data,
		AudioType:  audio.ContentType,
	}, nil
}

func (p *Pipeline) transcribe(ctx context.Context, rec turn.Recording) (string, error) {
	ctx, span := observe.StageSpan(ctx, "transcribe", p.cfg.ConversationID)
	defer span.End()

	start := time.Now()
	var result transcribe.Result
	err := p.transcribeCB.Do(ctx, func() error {
		var innerErr error
		result, innerErr = p.transcriber.Transcribe(ctx, transcribe.Clip{
			Data:        rec.Data,
			ContentType: rec.ContentType,
		})
		return innerErr
	})
	p.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "transcriber", "transcribe")
		return "", fmt.Errorf("pipeline: transcribe: %w", err)
	}
	p.metrics.RecordProviderRequest(ctx, "transcriber", "transcribe", "ok")
	return result.Text, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := observe.StageSpan(ctx, "reply", p.cfg.ConversationID)
	defer span.End()

	req := reply.Request{
		System:      p.cfg.SystemPrompt,
		Prompt:      prompt,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	if p.store != nil {
		turns, err := p.store.RecentTurns(ctx, p.cfg.ConversationID, p.cfg.HistoryLimit)
		if err != nil {
			// History is context, not correctness. Degrade to a bare prompt.
			p.log.Warn("loading conversation history failed", "error", err)
		} else {
			req.History = toMessages(turns)
		}
	}

	start := time.Now()
	var answer string
	err := p.replyCB.Do(ctx, func() error {
		var innerErr error
		answer, innerErr = p.generator.Reply(ctx, req)
		return innerErr
	})
	p.metrics.ReplyDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "generator", "reply")
		return "", fmt.Errorf("pipeline: reply: %w", err)
	}
	p.metrics.RecordProviderRequest(ctx, "generator", "reply", "ok")

	p.appendHistory(ctx, history.RoleUser, prompt)
	p.appendHistory(ctx, history.RoleAssistant, answer)
	return answer, nil
}

func (p *Pipeline) synthesize(ctx context.Context, text string) (synth.Audio, error) {
	ctx, span := observe.StageSpan(ctx, "synthesize", p.cfg.ConversationID)
	defer span.End()

	start := time.Now()
	var audio synth.Audio
	err := p.synthCB.Do(ctx, func() error {
		var innerErr error
		audio, innerErr = p.synthesizer.Synthesize(ctx, text, p.cfg.Voice)
		return innerErr
	})
	p.metrics.SynthesizeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "synthesizer", "synthesize")
		return synth.Audio{}, fmt.Errorf("pipeline: synthesize: %w", err)
	}
	p.metrics.RecordProviderRequest(ctx, "synthesizer", "synthesize", "ok")
	return audio, nil
}

func (p *Pipeline) appendHistory(ctx context.Context, role history.Role, text string) {
	if p.store == nil {
		return
	}
	t := history.Turn{Role: role, Text: text, At: time.Now().UTC()}
	if err := p.store.AppendTurn(ctx, p.cfg.ConversationID, t); err != nil {
		p.log.Warn("appending conversation turn failed", "role", string(role), "error", err)
	}
}

// toMessages converts stored turns to generator messages.
func toMessages(turns []history.Turn) []reply.Message {
	msgs := make([]reply.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, reply.Message{Role: reply.Role(t.Role), Content: t.Text})
	}
	return msgs
}
