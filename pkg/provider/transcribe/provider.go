// Package transcribe defines the Transcriber interface for speech-to-text
// backends.
//
// A transcriber accepts one finalized utterance clip and returns its text.
// The conversation core records whole utterances rather than streaming
// partials, so the contract is deliberately batch-shaped: one clip in, one
// result out. An empty transcript is a normal outcome (silence or an
// unintelligible clip), not an error.
//
// Implementations must be safe for concurrent use.
package transcribe

import "context"

// Clip is one finalized utterance handed off for transcription.
type Clip struct {
	// Data is the encoded audio buffer.
	Data []byte

	// ContentType is the MIME type of Data (e.g. "audio/webm", "audio/pcm").
	ContentType string
}

// Result is the transcription of one clip.
type Result struct {
	// Text is the recognized speech, trimmed. Empty when the clip contained
	// no recognizable speech.
	Text string
}

// Transcriber is the abstraction over any speech-to-text backend.
type Transcriber interface {
	// Transcribe recognizes the clip's speech content. Returns an error for
	// service or decoding failures; an empty Result.Text is not an error.
	Transcribe(ctx context.Context, clip Clip) (Result, error)
}
