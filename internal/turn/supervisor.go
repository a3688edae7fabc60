// Package turn drives hands-free turn-taking over a continuous capture
// stream: ambient calibration, speech-onset detection with debounce,
// utterance recording ended by sustained silence, and barge-in handling
// while synthesized playback is active.
//
// The Supervisor is the orchestrator. It runs on periodic ticks and
// cancellable one-shot timers supplied by an injected sched.Scheduler, so
// every timing behavior is deterministic under a simulated clock. All state
// is guarded by one mutex; event callbacks fire after the mutex is
// released, so handlers may call back into the Supervisor.
package turn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quastler/openfloor/internal/sched"
	"github.com/quastler/openfloor/pkg/audio"
	"github.com/quastler/openfloor/pkg/vad"
)

// Supervisor is the turn-taking state machine. Construct with New, drive
// with Start, feed playback state through NotifyPlaybackStarted and
// NotifyPlaybackStopped, and release with Close.
type Supervisor struct {
	cfg    Config
	source audio.CaptureSource
	clock  sched.Scheduler
	events Events
	log    *slog.Logger

	mu       sync.Mutex
	state    State
	playback bool

	detector *vad.Detector
	silence  *vad.SilenceTracker
	session  *RecordingSession

	// interruption flow
	interrupting   bool
	recInterrupted bool

	speechStart time.Time
	lastEnd     time.Time
	hasLastEnd  bool

	// cancellation handles; each is cleared on the transition that makes
	// it stale
	calibTicker  sched.Ticker
	calibDone    sched.Timer
	monitor      sched.Ticker
	recorder     sched.Ticker
	poller       sched.Ticker
	silenceTimer sched.Timer
	resumeTimer  sched.Timer
	pendingStart sched.Timer
	preRecord    sched.Timer

	calibrator *vad.Calibrator
	started    bool
	closed     bool
	closeOnce  sync.Once
	closeErr   error
}

// New builds a Supervisor over the given capture source and clock. Zero
// config fields take their defaults; nil event slots become no-ops.
func New(cfg Config, source audio.CaptureSource, clock sched.Scheduler, events Events, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		cfg:    cfg.withDefaults(),
		source: source,
		clock:  clock,
		events: events.Normalized(),
		log:    log,
		state:  StateIdle,
	}
}

// Start acquires the capture source and begins ambient calibration. If the
// source cannot be started the error is returned and nothing is left
// running. Calibration completes asynchronously after
// Config.CalibrationDuration; a calibration window that yields no samples
// is reported once through OnError and the Supervisor shuts down.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("turn: supervisor is closed")
	}
	if s.started {
		return fmt.Errorf("turn: supervisor already started")
	}
	if err := s.source.Start(ctx); err != nil {
		return fmt.Errorf("turn: start capture: %w", err)
	}
	s.started = true
	s.calibrator = vad.NewCalibrator()
	s.calibTicker = s.clock.Every(s.cfg.FrameInterval, s.calibrationTick)
	s.calibDone = s.clock.AfterFunc(s.cfg.CalibrationDuration, s.finishCalibration)
	s.log.Debug("calibrating ambient level", "window", s.cfg.CalibrationDuration)
	return nil
}

// State returns the current turn state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Calibrated reports whether ambient calibration has completed.
func (s *Supervisor) Calibrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detector != nil
}

// Ambient returns the calibrated ambient level, or zero before calibration.
func (s *Supervisor) Ambient() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detector == nil {
		return 0
	}
	return s.detector.Ambient()
}

// Multiplier returns the active threshold multiplier: Config.PlaybackMultiplier
// while playback is active, 1.0 otherwise.
func (s *Supervisor) Multiplier() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multiplierLocked()
}

func (s *Supervisor) multiplierLocked() float64 {
	if s.playback {
		return s.cfg.PlaybackMultiplier
	}
	return 1.0
}

// ─── Calibration ─────────────────────────────────────────────────────────────

func (s *Supervisor) calibrationTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.calibrator == nil {
		return
	}
	snap := audio.Analyze(s.source.Frame(), s.cfg.Band)
	s.calibrator.Add(snap.SpeechEnergy)
}

func (s *Supervisor) finishCalibration() {
	s.mu.Lock()
	var fire []func()
	defer func() {
		s.mu.Unlock()
		for _, f := range fire {
			f()
		}
	}()

	if s.closed || s.calibrator == nil {
		return
	}
	stopTicker(&s.calibTicker)
	s.calibDone = nil

	level, err := s.calibrator.Level()
	s.calibrator = nil
	if err != nil {
		s.log.Error("ambient calibration failed", "error", err)
		s.closeLocked()
		fire = append(fire, func() { s.events.OnError(err.Error()) })
		return
	}

	s.detector = vad.NewDetector(level, s.cfg.Thresholds)
	s.state = StateMonitoring
	s.startMonitorLocked()
	s.log.Info("ambient level calibrated",
		"ambient", level,
		"speech_threshold", s.detector.Threshold(1.0))
}

// ─── Monitoring loop ─────────────────────────────────────────────────────────

func (s *Supervisor) startMonitorLocked() {
	if s.monitor != nil || s.playback || s.closed {
		return
	}
	s.monitor = s.clock.Every(s.cfg.FrameInterval, s.monitorTick)
}

func (s *Supervisor) monitorTick() {
	s.mu.Lock()
	var fire []func()
	defer func() {
		s.mu.Unlock()
		for _, f := range fire {
			f()
		}
	}()

	if s.closed || s.detector == nil || s.monitor == nil {
		return
	}

	snap := audio.Analyze(s.source.Frame(), s.cfg.Band)
	speech := s.detector.IsSpeech(snap, s.multiplierLocked())

	switch s.state {
	case StateMonitoring:
		if speech {
			s.state = StateSpeechPending
			s.speechStart = s.clock.Now()
			s.log.Debug("speech onset", "speech_energy", snap.SpeechEnergy, "snr", snap.SNR)
			fire = append(fire, s.events.OnSpeechDetected)
		}
	case StateSpeechPending:
		if !speech {
			// false alarm inside the debounce window
			s.state = StateMonitoring
			return
		}
		if s.clock.Now().Sub(s.speechStart) > s.cfg.SpeechDebounce {
			s.beginRecordingLocked(false, &fire)
		}
	}
}

// ─── Recording ───────────────────────────────────────────────────────────────

// beginRecordingLocked opens an utterance recording, or defers it to the end
// of the cooldown window when one is still in effect.
func (s *Supervisor) beginRecordingLocked(interruption bool, fire *[]func()) {
	if s.closed || s.state == StateRecording {
		return
	}

	if s.hasLastEnd {
		if wait := s.lastEnd.Add(s.cfg.Cooldown).Sub(s.clock.Now()); wait > 0 {
			s.stopMonitorLocked()
			stopTimer(&s.pendingStart)
			s.pendingStart = s.clock.AfterFunc(wait, func() { s.deferredStart(interruption) })
			s.log.Debug("recording deferred by cooldown", "wait", wait)
			return
		}
	}

	s.stopMonitorLocked()
	stopTimer(&s.pendingStart)
	stopTimer(&s.resumeTimer)

	s.state = StateRecording
	s.recInterrupted = interruption
	s.session = NewRecordingSession(s.source.ContentType())
	s.source.Chunk() // drop audio captured before the turn began
	s.silence = vad.NewSilenceTracker(s.cfg.SilenceWindow, s.detector.Ambient(), s.cfg.SilenceGain)
	stopTimer(&s.silenceTimer)
	s.recorder = s.clock.Every(s.cfg.FrameInterval, s.recordTick)

	s.log.Info("recording started", "interruption", interruption)
	*fire = append(*fire, func() { s.events.OnRecordingStart(interruption) })
}

func (s *Supervisor) deferredStart(interruption bool) {
	s.mu.Lock()
	var fire []func()
	defer func() {
		s.mu.Unlock()
		for _, f := range fire {
			f()
		}
	}()
	s.pendingStart = nil
	s.beginRecordingLocked(interruption, &fire)
}

func (s *Supervisor) recordTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != StateRecording {
		return
	}
	if chunk := s.source.Chunk(); len(chunk) > 0 {
		s.session.Append(chunk)
	}

	snap := audio.Analyze(s.source.Frame(), s.cfg.Band)
	s.silence.Update(snap.SpeechEnergy)

	if s.silence.Silent() {
		if s.silenceTimer == nil {
			s.silenceTimer = s.clock.AfterFunc(s.cfg.SilenceDebounce, s.silenceElapsed)
		}
	} else {
		stopTimer(&s.silenceTimer)
	}
}

func (s *Supervisor) silenceElapsed() {
	s.mu.Lock()
	var fire []func()
	defer func() {
		s.mu.Unlock()
		for _, f := range fire {
			f()
		}
	}()

	s.silenceTimer = nil
	if s.closed || s.state != StateRecording {
		return
	}
	s.finishRecordingLocked(&fire)
}

func (s *Supervisor) finishRecordingLocked(fire *[]func()) {
	stopTicker(&s.recorder)
	stopTimer(&s.silenceTimer)

	if chunk := s.source.Chunk(); len(chunk) > 0 {
		s.session.Append(chunk)
	}
	buf, ok := s.session.Stop()
	rec := Recording{
		Data:         buf,
		ContentType:  s.session.ContentType(),
		Interruption: s.recInterrupted,
	}
	s.session = nil
	s.silence = nil

	s.state = StateMonitoring
	s.lastEnd = s.clock.Now()
	s.hasLastEnd = true

	stopTimer(&s.resumeTimer)
	s.resumeTimer = s.clock.AfterFunc(s.cfg.ResumeDelay, s.resumeMonitoring)

	s.log.Info("recording stopped",
		"bytes", len(rec.Data),
		"interruption", rec.Interruption)
	if ok {
		*fire = append(*fire, s.events.OnSilenceDetected)
		*fire = append(*fire, func() { s.events.OnRecordingStop(rec) })
	}
}

func (s *Supervisor) resumeMonitoring() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeTimer = nil
	if s.closed || s.playback || s.state != StateMonitoring {
		return
	}
	s.startMonitorLocked()
}

func (s *Supervisor) stopMonitorLocked() {
	stopTicker(&s.monitor)
}

// ─── Playback and interruption ───────────────────────────────────────────────

// NotifyPlaybackStarted switches the speech-monitoring loop for the
// interruption poll and raises the detection threshold for the duration of
// playback. The two loops are never active at the same time.
func (s *Supervisor) NotifyPlaybackStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.playback {
		return
	}
	s.playback = true
	s.stopMonitorLocked()
	stopTimer(&s.resumeTimer)
	stopTimer(&s.pendingStart)
	if s.state == StateSpeechPending {
		s.state = StateMonitoring
	}
	s.poller = s.clock.Every(s.cfg.InterruptionPoll, s.pollTick)
	s.log.Debug("playback started", "multiplier", s.cfg.PlaybackMultiplier)
}

// NotifyPlaybackStopped clears the interruption poll and resumes monitoring,
// after the settle delay when playback completed naturally, immediately on an
// explicit pause or an interruption-driven halt.
func (s *Supervisor) NotifyPlaybackStopped(natural bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.playback {
		return
	}
	s.playback = false
	stopTicker(&s.poller)

	if s.interrupting || s.state == StateRecording {
		// the interruption flow owns what happens next
		return
	}
	if natural {
		stopTimer(&s.resumeTimer)
		s.resumeTimer = s.clock.AfterFunc(s.cfg.SettleDelay, s.resumeMonitoring)
		return
	}
	s.startMonitorLocked()
}

func (s *Supervisor) pollTick() {
	s.mu.Lock()
	var fire []func()
	defer func() {
		s.mu.Unlock()
		for _, f := range fire {
			f()
		}
	}()

	if s.closed || !s.playback || s.interrupting || s.detector == nil {
		return
	}
	if s.state == StateRecording {
		// playback started mid-utterance; the voice is already being
		// captured, so there is nothing to interrupt
		return
	}

	snap := audio.Analyze(s.source.Frame(), s.cfg.Band)
	if snap.SpeechEnergy <= s.detector.Ambient()*s.cfg.InterruptionGain {
		return
	}

	s.interrupting = true
	stopTicker(&s.poller)
	stopTimer(&s.preRecord)
	s.preRecord = s.clock.AfterFunc(s.cfg.PreRecordDelay, s.interruptStart)
	s.log.Info("interruption detected", "speech_energy", snap.SpeechEnergy)
	fire = append(fire, s.events.OnInterruption)
}

func (s *Supervisor) interruptStart() {
	s.mu.Lock()
	var fire []func()
	defer func() {
		s.mu.Unlock()
		for _, f := range fire {
			f()
		}
	}()

	s.preRecord = nil
	s.interrupting = false
	if s.closed {
		return
	}
	// interruption implies confident detection; the speech debounce is
	// skipped
	s.beginRecordingLocked(true, &fire)
}

// ─── Lifecycle ───────────────────────────────────────────────────────────────

// Close cancels every outstanding timer and loop, discards any open
// recording, and releases the capture source. Safe to call more than once.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closeErr = s.closeLocked()
		s.mu.Unlock()
	})
	return s.closeErr
}

func (s *Supervisor) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true
	stopTicker(&s.calibTicker)
	stopTimer(&s.calibDone)
	stopTicker(&s.monitor)
	stopTicker(&s.recorder)
	stopTicker(&s.poller)
	stopTimer(&s.silenceTimer)
	stopTimer(&s.resumeTimer)
	stopTimer(&s.pendingStart)
	stopTimer(&s.preRecord)
	if s.session != nil {
		s.session.Stop()
		s.session = nil
	}
	s.state = StateIdle
	if !s.started {
		return nil
	}
	if err := s.source.Stop(); err != nil {
		return fmt.Errorf("turn: stop capture: %w", err)
	}
	return nil
}

func stopTimer(t *sched.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func stopTicker(t *sched.Ticker) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
