// Package synth defines the Synthesizer interface for text-to-speech
// backends.
//
// A synthesizer turns one reply text into one encoded audio buffer. The
// conversation core plays whole replies and watches for barge-in while they
// play, so the contract is batch-shaped rather than streaming.
//
// Implementations must be safe for concurrent use.
package synth

import "context"

// Voice selects the voice profile for synthesis.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Speed adjusts the speaking rate (1.0 = default). Zero means use the
	// provider default.
	Speed float64
}

// Audio is one synthesized reply.
type Audio struct {
	// Data is the encoded audio buffer.
	Data []byte

	// ContentType is the MIME type of Data (e.g. "audio/mpeg").
	ContentType string
}

// Synthesizer is the abstraction over any text-to-speech backend.
type Synthesizer interface {
	// Synthesize renders text as speech in the given voice. An empty text
	// returns an empty Audio without contacting the service.
	Synthesize(ctx context.Context, text string, voice Voice) (Audio, error)
}
