// Package audio defines the frame types and capture contracts that feed the
// openfloor turn-taking core, plus the pure signal-metric functions computed
// on each analysis frame.
//
// A Frame is the atomic unit of analysis: a short window of time-domain
// samples together with the magnitude spectrum of the same instant. Frames
// are produced at a fixed cadence (~60 Hz) by a CaptureSource and are never
// retained past one classification cycle.
package audio

import "context"

// Frame is a single analysis snapshot of the capture stream.
//
// Samples hold normalized time-domain amplitudes in the unit interval with a
// nominal rest point of 0.5 (the convention byte-oriented analysers emit).
// Spectrum holds one normalized magnitude per frequency bin, ordered from DC
// upward. Both views are captured at the same instant.
type Frame struct {
	// Samples is the time-domain view. May be empty when the source has not
	// produced audio yet; an empty frame carries zero energy.
	Samples []float64

	// Spectrum is the frequency-domain view, one magnitude in [0, 1] per bin.
	Spectrum []float64

	// SampleRate is the capture sample rate in Hz.
	SampleRate int
}

// BinWidth returns the frequency width in Hz covered by one Spectrum bin:
// sampleRate / (2 · bins). Returns 0 when the frame has no spectrum.
func (f Frame) BinWidth() float64 {
	if len(f.Spectrum) == 0 {
		return 0
	}
	return float64(f.SampleRate) / (2 * float64(len(f.Spectrum)))
}

// CaptureSource is the contract a capture backend (microphone bridge,
// WebSocket client stream, test double) must implement.
//
// The turn-taking supervisor polls a source once per tick from a single
// execution context; implementations must tolerate polling from one
// goroutine while ingesting audio on another.
type CaptureSource interface {
	// Start acquires the underlying capture device or stream. It is called
	// exactly once before any other method; a non-nil error is fatal to the
	// session and no polling will follow.
	Start(ctx context.Context) error

	// Stop releases the capture resources. Safe to call more than once.
	Stop() error

	// Frame returns the most recent analysis frame. Before any audio has
	// arrived it returns a zero Frame, which classifies as non-speech.
	Frame() Frame

	// Chunk drains and returns the raw encoded audio accumulated since the
	// previous call, or nil when nothing arrived. Chunk boundaries carry no
	// semantic meaning.
	Chunk() []byte

	// ContentType reports the MIME type of the bytes returned by Chunk
	// (e.g. "audio/ogg;codecs=opus", "audio/pcm;rate=48000").
	ContentType() string
}
