// Package mock provides a test double for the audio.CaptureSource interface.
//
// Source replays a scripted sequence of frames: each call to Frame advances
// the script by one entry, and the final entry repeats once the script is
// exhausted. Chunks are queued independently so tests can control exactly
// which bytes a recording collects.
package mock

import (
	"context"
	"sync"

	"github.com/quastler/openfloor/pkg/audio"
)

// Source is a mock implementation of audio.CaptureSource.
type Source struct {
	mu sync.Mutex

	// Frames is the scripted frame sequence. The last frame repeats after
	// the script runs out. When empty, Frame returns a zero Frame.
	Frames []audio.Frame

	// Chunks is the queue drained by Chunk, one element per call.
	Chunks [][]byte

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// MIME is returned by ContentType. Defaults to "audio/pcm" when empty.
	MIME string

	// StartCalls and StopCalls count lifecycle invocations.
	StartCalls int
	StopCalls  int

	pos int
}

// Compile-time assertion that Source implements audio.CaptureSource.
var _ audio.CaptureSource = (*Source)(nil)

// Start records the call and returns StartErr.
func (s *Source) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCalls++
	return s.StartErr
}

// Stop records the call.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls++
	return nil
}

// Frame returns the next scripted frame, repeating the last one when the
// script is exhausted.
func (s *Source) Frame() audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Frames) == 0 {
		return audio.Frame{}
	}
	f := s.Frames[s.pos]
	if s.pos < len(s.Frames)-1 {
		s.pos++
	}
	return f
}

// Chunk pops the next queued chunk, or nil when the queue is empty.
func (s *Source) Chunk() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Chunks) == 0 {
		return nil
	}
	c := s.Chunks[0]
	s.Chunks = s.Chunks[1:]
	return c
}

// ContentType returns MIME or "audio/pcm" when unset.
func (s *Source) ContentType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MIME == "" {
		return "audio/pcm"
	}
	return s.MIME
}

// Rewind resets the frame script to the beginning.
func (s *Source) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
}
