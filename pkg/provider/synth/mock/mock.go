// Package mock provides a test double for the synth.Synthesizer interface.
package mock

import (
	"context"
	"sync"

	"github.com/quastler/openfloor/pkg/provider/synth"
)

// SynthesizeCall records a single invocation of Synthesizer.Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice synth.Voice
}

// Synthesizer is a mock implementation of synth.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Result is returned by every Synthesize call.
	Result synth.Audio

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	// SynthesizeCalls records every call.
	SynthesizeCalls []SynthesizeCall
}

// Compile-time assertion that Synthesizer implements synth.Synthesizer.
var _ synth.Synthesizer = (*Synthesizer)(nil)

// Synthesize records the call and returns Result, Err.
func (s *Synthesizer) Synthesize(_ context.Context, text string, voice synth.Voice) (synth.Audio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if s.Err != nil {
		return synth.Audio{}, s.Err
	}
	return s.Result, nil
}
