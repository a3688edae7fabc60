// Package whisper provides a local transcriber backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// whisper.cpp is a batch engine and expects 16 kHz mono float32 input. The
// transcriber accepts raw 16-bit little-endian PCM clips, downmixes and
// resamples as needed, and runs one inference per clip. The model is loaded
// once and shared; each Transcribe call creates its own whisper context, so
// concurrent calls do not interfere.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/quastler/openfloor/pkg/audio"
	"github.com/quastler/openfloor/pkg/provider/transcribe"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 48000
	defaultChannels   = 1

	// whisperSampleRate is the input rate whisper.cpp requires.
	whisperSampleRate = 16000
)

// Transcriber implements transcribe.Transcriber using whisper.cpp.
type Transcriber struct {
	model      whisperlib.Model
	language   string
	sampleRate int
	channels   int
}

// Option is a functional option for Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the language code for transcription (e.g. "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithSampleRate sets the sample rate of incoming PCM clips. Defaults
// to 48000.
func WithSampleRate(rate int) Option {
	return func(t *Transcriber) { t.sampleRate = rate }
}

// WithChannels sets the channel count of incoming PCM clips. Defaults to 1;
// multi-channel input is downmixed by averaging.
func WithChannels(ch int) Option {
	return func(t *Transcriber) { t.channels = ch }
}

// New creates a Transcriber that loads the whisper.cpp model from the given
// file path. The caller must call Close when the transcriber is no longer
// needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &Transcriber{
		model:      model,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		channels:   defaultChannels,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close releases the whisper model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Transcribe implements transcribe.Transcriber. The clip must contain raw
// 16-bit little-endian signed PCM at the configured sample rate and channel
// count.
func (t *Transcriber) Transcribe(ctx context.Context, clip transcribe.Clip) (transcribe.Result, error) {
	if err := ctx.Err(); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: %w", err)
	}
	if len(clip.Data) == 0 {
		return transcribe.Result{}, nil
	}

	samples := audio.Float32FromPCM16(clip.Data, t.channels)
	if t.sampleRate != whisperSampleRate {
		samples = resampleFloat32(samples, t.sampleRate, whisperSampleRate)
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(t.language); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: set language %q: %w", t.language, err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return transcribe.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return transcribe.Result{Text: strings.Join(parts, " ")}, nil
}

// resampleFloat32 converts between sample rates by linear interpolation.
// Adequate for speech being handed to a recognizer; not a general-purpose
// resampler.
func resampleFloat32(in []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(in) == 0 {
		return in
	}
	ratio := float64(from) / float64(to)
	n := int(float64(len(in))/ratio + 0.5)
	if n <= 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}

// Compile-time assertion that Transcriber implements transcribe.Transcriber.
var _ transcribe.Transcriber = (*Transcriber)(nil)
