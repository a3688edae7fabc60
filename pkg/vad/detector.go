// Package vad implements the adaptive voice-activity decision layer: a
// per-frame speech classifier whose threshold scales with the measured
// ambient noise floor, the one-shot ambient calibrator that produces that
// floor, and the rolling silence tracker used to end an utterance.
//
// All types here are deliberately small and synchronous. The detector is
// stateless; the calibrator and tracker keep only the state their windows
// require. Turn-taking policy (debounces, cooldowns, playback handling)
// lives in internal/turn.
package vad

import "github.com/quastler/openfloor/pkg/audio"

// Thresholds holds the tunable constants of the speech classifier. The zero
// value is not useful; start from DefaultThresholds.
type Thresholds struct {
	// SpeechGain scales the ambient level into the dynamic energy threshold
	// under normal monitoring.
	SpeechGain float64

	// MinSNR is the minimum in-band to out-of-band energy ratio. Rejects
	// wideband noise bursts that carry speech-band energy incidentally.
	MinSNR float64

	// MinTimeEnergy is the absolute time-domain floor. Rejects near-silent
	// frames whose spectral ratio is noisy but whose energy is negligible.
	MinTimeEnergy float64
}

// DefaultThresholds returns the tuned production values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SpeechGain:    1.5,
		MinSNR:        1.5,
		MinTimeEnergy: 0.05,
	}
}

// Detector classifies one metrics snapshot as speech or non-speech against a
// calibrated ambient level. Detector is stateless and safe for concurrent
// use; the multiplier argument carries the only context-dependent input
// (elevated while synthesized playback is active).
type Detector struct {
	ambient float64
	th      Thresholds
}

// NewDetector creates a detector for the given ambient noise level.
func NewDetector(ambient float64, th Thresholds) *Detector {
	return &Detector{ambient: ambient, th: th}
}

// Ambient returns the calibrated ambient level the detector scales against.
func (d *Detector) Ambient() float64 { return d.ambient }

// Threshold returns the dynamic energy threshold for the given multiplier:
// ambient · SpeechGain · multiplier.
func (d *Detector) Threshold(multiplier float64) float64 {
	return d.ambient * d.th.SpeechGain * multiplier
}

// IsSpeech reports whether the snapshot classifies as speech. All three
// conjuncts must hold: in-band energy above the dynamic threshold, SNR above
// the floor, and time-domain energy above the absolute floor. Energy alone is
// insufficient under broadband noise.
func (d *Detector) IsSpeech(s audio.Snapshot, multiplier float64) bool {
	return s.SpeechEnergy > d.Threshold(multiplier) &&
		s.SNR > d.th.MinSNR &&
		s.TimeEnergy > d.th.MinTimeEnergy
}
