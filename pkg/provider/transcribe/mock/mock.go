// Package mock provides a test double for the transcribe.Transcriber
// interface. Results are served from a queue so tests can script successive
// transcriptions; the last result repeats once the queue is exhausted.
package mock

import (
	"context"
	"sync"

	"github.com/quastler/openfloor/pkg/provider/transcribe"
)

// Transcriber is a mock implementation of transcribe.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Results is the scripted result queue. The final entry repeats after
	// the queue runs out; an empty queue yields a zero Result.
	Results []transcribe.Result

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// TranscribeCalls records the clip passed to each call.
	TranscribeCalls []transcribe.Clip

	pos int
}

// Compile-time assertion that Transcriber implements transcribe.Transcriber.
var _ transcribe.Transcriber = (*Transcriber)(nil)

// Transcribe records the call and returns the next scripted result.
func (t *Transcriber) Transcribe(_ context.Context, clip transcribe.Clip) (transcribe.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = append(t.TranscribeCalls, clip)
	if t.Err != nil {
		return transcribe.Result{}, t.Err
	}
	if len(t.Results) == 0 {
		return transcribe.Result{}, nil
	}
	r := t.Results[t.pos]
	if t.pos < len(t.Results)-1 {
		t.pos++
	}
	return r, nil
}
