package turn

import (
	"time"

	"github.com/quastler/openfloor/pkg/audio"
	"github.com/quastler/openfloor/pkg/vad"
)

// State is the turn-taking state. Playback suspension is orthogonal: it
// gates which monitoring loop is active rather than replacing the state.
type State int

const (
	// StateIdle is the pre-calibration state; nothing runs yet.
	StateIdle State = iota

	// StateMonitoring watches frames for the onset of speech.
	StateMonitoring

	// StateSpeechPending means speech was observed and the confirmation
	// debounce is in progress.
	StateSpeechPending

	// StateRecording means an utterance recording is open.
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMonitoring:
		return "monitoring"
	case StateSpeechPending:
		return "speech_pending"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// Config holds every tunable of the turn-taking machinery. All durations
// and gains are overridable; zero values are replaced by the defaults in
// DefaultConfig.
type Config struct {
	// FrameInterval is the cadence of the monitoring and recording loops.
	// The capture source refreshes its analysis frame at display rate, so
	// the default matches that.
	FrameInterval time.Duration

	// CalibrationDuration is the ambient warm-up window sampled before
	// monitoring begins.
	CalibrationDuration time.Duration

	// SpeechDebounce is how long speech must persist before a recording
	// opens. A single non-speech frame inside the window resets to
	// monitoring.
	SpeechDebounce time.Duration

	// SilenceDebounce is how long sustained silence must persist before a
	// recording closes.
	SilenceDebounce time.Duration

	// Cooldown is the minimum gap after a recording ends before the next
	// may begin. Early attempts are deferred to exactly the end of the
	// window, never dropped.
	Cooldown time.Duration

	// ResumeDelay is the pause after a recording ends before monitoring
	// resumes.
	ResumeDelay time.Duration

	// SettleDelay is the pause after playback completes naturally before
	// monitoring resumes, letting the capture path drain residual output.
	SettleDelay time.Duration

	// InterruptionPoll is the cadence of the barge-in check active during
	// playback, replacing the monitoring loop.
	InterruptionPoll time.Duration

	// PreRecordDelay is the gap between detecting an interruption and
	// opening the interruption recording.
	PreRecordDelay time.Duration

	// PlaybackMultiplier scales the speech threshold while playback is
	// active, suppressing false triggers from output leaking back into the
	// capture path.
	PlaybackMultiplier float64

	// InterruptionGain scales the ambient level into the barge-in energy
	// threshold. Kept separate from Thresholds.SpeechGain; the two are
	// tuned independently.
	InterruptionGain float64

	// SilenceGain scales the ambient level into the silence threshold.
	SilenceGain float64

	// SilenceWindow is the rolling-buffer length of the silence tracker.
	SilenceWindow int

	// Thresholds are the per-frame speech classifier constants.
	Thresholds vad.Thresholds

	// Band is the frequency band treated as speech.
	Band audio.Band
}

// DefaultConfig returns the tuned production values.
func DefaultConfig() Config {
	return Config{
		FrameInterval:       16 * time.Millisecond,
		CalibrationDuration: 2000 * time.Millisecond,
		SpeechDebounce:      100 * time.Millisecond,
		SilenceDebounce:     1500 * time.Millisecond,
		Cooldown:            1000 * time.Millisecond,
		ResumeDelay:         500 * time.Millisecond,
		SettleDelay:         300 * time.Millisecond,
		InterruptionPoll:    100 * time.Millisecond,
		PreRecordDelay:      100 * time.Millisecond,
		PlaybackMultiplier:  3.0,
		InterruptionGain:    2.0,
		SilenceGain:         vad.DefaultSilenceGain,
		SilenceWindow:       vad.DefaultSilenceWindow,
		Thresholds:          vad.DefaultThresholds(),
		Band:                audio.SpeechBand,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FrameInterval <= 0 {
		c.FrameInterval = d.FrameInterval
	}
	if c.CalibrationDuration <= 0 {
		c.CalibrationDuration = d.CalibrationDuration
	}
	if c.SpeechDebounce <= 0 {
		c.SpeechDebounce = d.SpeechDebounce
	}
	if c.SilenceDebounce <= 0 {
		c.SilenceDebounce = d.SilenceDebounce
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.ResumeDelay <= 0 {
		c.ResumeDelay = d.ResumeDelay
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.InterruptionPoll <= 0 {
		c.InterruptionPoll = d.InterruptionPoll
	}
	if c.PreRecordDelay <= 0 {
		c.PreRecordDelay = d.PreRecordDelay
	}
	if c.PlaybackMultiplier <= 0 {
		c.PlaybackMultiplier = d.PlaybackMultiplier
	}
	if c.InterruptionGain <= 0 {
		c.InterruptionGain = d.InterruptionGain
	}
	if c.SilenceGain <= 0 {
		c.SilenceGain = d.SilenceGain
	}
	if c.SilenceWindow <= 0 {
		c.SilenceWindow = d.SilenceWindow
	}
	if c.Thresholds == (vad.Thresholds{}) {
		c.Thresholds = d.Thresholds
	}
	if c.Band == (audio.Band{}) {
		c.Band = d.Band
	}
	return c
}
