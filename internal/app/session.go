package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quastler/openfloor/internal/observe"
	"github.com/quastler/openfloor/internal/pipeline"
	"github.com/quastler/openfloor/internal/sched"
	"github.com/quastler/openfloor/internal/turn"
	"github.com/quastler/openfloor/pkg/audio"
	"github.com/quastler/openfloor/pkg/audio/wscapture"
	"github.com/quastler/openfloor/pkg/history"
)

// serverEvent is the JSON envelope for text messages sent to the client.
// Audio follows as a separate binary message after a "reply" event whose
// HasAudio field is true.
type serverEvent struct {
	Type         string `json:"type"`
	Interruption bool   `json:"interruption,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	Reply        string `json:"reply,omitempty"`
	AudioType    string `json:"audio_type,omitempty"`
	HasAudio     bool   `json:"has_audio,omitempty"`
	NoSpeech     bool   `json:"no_speech,omitempty"`
	Message      string `json:"message,omitempty"`
}

// controlMessage is the JSON envelope for text messages received from the
// client. Playback runs on the client, so the client reports its state.
type controlMessage struct {
	Type    string `json:"type"`
	Natural bool   `json:"natural"`
}

// Transport is the duplex connection a session runs over: a capture source
// for inbound audio plus text and binary send channels for events and reply
// audio. [wscapture.Source] is the production implementation.
type Transport interface {
	audio.CaptureSource
	SendText(ctx context.Context, data []byte) error
	SendBinary(ctx context.Context, data []byte) error
}

var _ Transport = (*wscapture.Source)(nil)

// SessionConfig carries everything a [Session] needs. All fields are
// required except Log.
type SessionConfig struct {
	ID        string
	Source    Transport
	Providers Providers
	Store     history.Store
	Clock     sched.Scheduler
	Metrics   *observe.Metrics
	Turn      turn.Config
	Pipeline  pipeline.Config
	Log       *slog.Logger
}

// Session binds one WebSocket connection to a turn supervisor and an
// utterance pipeline. Detection events and reply audio go out as messages on
// the same connection the audio arrives on; playback state comes back as
// control messages and is forwarded to the supervisor.
type Session struct {
	id      string
	log     *slog.Logger
	source  Transport
	sup     *turn.Supervisor
	pipe    *pipeline.Pipeline
	metrics *observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks in-flight pipeline runs so Close can drain them.
	wg sync.WaitGroup

	closeOnce sync.Once
}

// NewSession wires a supervisor and a pipeline over the given capture
// source. The session is inert until Start is called.
func NewSession(cfg SessionConfig) *Session {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:      cfg.ID,
		log:     log.With("session_id", cfg.ID),
		source:  cfg.Source,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
	}

	events := turn.Events{
		OnSpeechDetected: func() {
			s.sendEvent(serverEvent{Type: "speech_detected"})
		},
		OnRecordingStart: func(interruption bool) {
			s.metrics.RecordRecording(s.ctx, interruption)
			s.sendEvent(serverEvent{Type: "recording_started", Interruption: interruption})
		},
		OnSilenceDetected: func() {
			s.sendEvent(serverEvent{Type: "silence_detected"})
		},
		OnRecordingStop: s.handleRecording,
		OnInterruption: func() {
			s.sendEvent(serverEvent{Type: "interruption"})
		},
		OnProcessingStart: func() {
			s.sendEvent(serverEvent{Type: "processing_started"})
		},
		OnProcessingComplete: s.deliver,
		OnError: func(msg string) {
			s.sendEvent(serverEvent{Type: "error", Message: msg})
		},
	}

	cfg.Pipeline.ConversationID = cfg.ID
	s.pipe = pipeline.New(cfg.Pipeline,
		cfg.Providers.Transcriber,
		cfg.Providers.Generator,
		cfg.Providers.Synthesizer,
		cfg.Store, events, cfg.Metrics, s.log)
	s.sup = turn.New(cfg.Turn, cfg.Source, cfg.Clock, events, s.log)

	return s
}

// ID returns the session identifier, which doubles as the conversation ID in
// the history store.
func (s *Session) ID() string {
	return s.id
}

// Start begins capture and ambient calibration.
func (s *Session) Start(ctx context.Context) error {
	if err := s.sup.Start(ctx); err != nil {
		return fmt.Errorf("app: start session %s: %w", s.id, err)
	}
	s.log.Info("session started")
	return nil
}

// HandleControl dispatches one client control message to the supervisor.
// It runs on the connection's read loop, so it must stay non-blocking; the
// supervisor notification methods only flip timers and state under a mutex.
func (s *Session) HandleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn("discarding malformed control message", "error", err)
		return
	}
	switch msg.Type {
	case "playback_started":
		s.sup.NotifyPlaybackStarted()
	case "playback_stopped":
		s.sup.NotifyPlaybackStopped(msg.Natural)
	default:
		s.log.Debug("unknown control message", "type", msg.Type)
	}
}

// handleRecording runs the finalized utterance through the pipeline on its
// own goroutine; supervisor callbacks must not block on provider calls.
func (s *Session) handleRecording(rec turn.Recording) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Failures surface through the OnError slot.
		_, _ = s.pipe.Process(s.ctx, rec)
	}()
}

// deliver sends the pipeline outcome to the client: a reply event, then the
// synthesized audio as one binary message.
func (s *Session) deliver(out turn.Outcome) {
	s.sendEvent(serverEvent{
		Type:       "reply",
		Transcript: out.Transcript,
		Reply:      out.Reply,
		AudioType:  out.AudioType,
		HasAudio:   len(out.Audio) > 0,
		NoSpeech:   out.NoSpeech,
	})
	if len(out.Audio) == 0 {
		return
	}
	if err := s.source.SendBinary(s.ctx, out.Audio); err != nil {
		s.log.Warn("failed to deliver reply audio", "error", err)
	}
}

func (s *Session) sendEvent(ev serverEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("marshal server event", "type", ev.Type, "error", err)
		return
	}
	if err := s.source.SendText(s.ctx, data); err != nil {
		s.log.Debug("failed to send event", "type", ev.Type, "error", err)
	}
}

// Close tears the session down: the supervisor stops the capture source,
// in-flight pipeline runs are drained, outbound sends are cancelled. Safe to
// call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.sup.Close()
		s.cancel()
		s.wg.Wait()
		s.log.Info("session closed")
	})
	return err
}

// ─── Session hub ─────────────────────────────────────────────────────────────

// sessionHub tracks live sessions so shutdown can close them all. Safe for
// concurrent use.
type sessionHub struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	seq      atomic.Uint64
}

func newSessionHub() *sessionHub {
	return &sessionHub{sessions: make(map[string]*Session)}
}

// nextID returns a fresh conversation identifier.
func (h *sessionHub) nextID() string {
	return fmt.Sprintf("conv-%s-%04d",
		time.Now().UTC().Format("20060102T150405Z"),
		h.seq.Add(1))
}

// add registers a session. Returns false once the hub has been closed.
func (h *sessionHub) add(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s.id] = s
	return true
}

func (h *sessionHub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

func (h *sessionHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// closeAll closes every live session and refuses new ones.
func (h *sessionHub) closeAll() {
	h.mu.Lock()
	h.closed = true
	live := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		live = append(live, s)
	}
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range live {
		if err := s.Close(); err != nil {
			slog.Warn("app: session close error", "session_id", s.id, "err", err)
		}
	}
}
