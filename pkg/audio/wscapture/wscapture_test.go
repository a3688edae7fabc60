package wscapture

import (
	"bytes"
	"math"
	"testing"

	"github.com/quastler/openfloor/pkg/audio"
)

func newPCMSource(t *testing.T) *Source {
	t.Helper()
	s, err := New(nil, WithCodec(CodecPCM))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew_UnsupportedCodec(t *testing.T) {
	t.Parallel()
	if _, err := New(nil, WithCodec("mp3")); err == nil {
		t.Fatal("expected error for unsupported codec")
	}
}

func TestFrame_BeforeAudio(t *testing.T) {
	t.Parallel()
	s := newPCMSource(t)

	f := s.Frame()
	if len(f.Samples) != 0 || len(f.Spectrum) != 0 {
		t.Errorf("zero frame expected, got %d samples, %d bins", len(f.Samples), len(f.Spectrum))
	}
	if f.SampleRate != sampleRate {
		t.Errorf("SampleRate = %d, want %d", f.SampleRate, sampleRate)
	}
}

func TestIngest_FrameCarriesSpectrum(t *testing.T) {
	t.Parallel()
	s := newPCMSource(t)

	// 1500 Hz full-scale sine, enough samples to fill the analysis window.
	n := defaultFFTSize
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(30000 * math.Sin(2*math.Pi*1500*float64(i)/sampleRate))
	}
	s.ingest(audio.Int16sToBytes(samples))

	f := s.Frame()
	if len(f.Samples) != defaultFFTSize {
		t.Fatalf("window length = %d, want %d", len(f.Samples), defaultFFTSize)
	}
	if len(f.Spectrum) != defaultFFTSize/2 {
		t.Fatalf("spectrum bins = %d, want %d", len(f.Spectrum), defaultFFTSize/2)
	}

	// The peak bin must sit at 1500 Hz.
	peak := 0
	for i, m := range f.Spectrum {
		if m > f.Spectrum[peak] {
			peak = i
		}
	}
	wantBin := int(math.Round(1500 / f.BinWidth()))
	if peak != wantBin {
		t.Errorf("spectral peak at bin %d (%.0f Hz), want bin %d", peak, float64(peak)*f.BinWidth(), wantBin)
	}
}

func TestIngest_WindowIsBounded(t *testing.T) {
	t.Parallel()
	s := newPCMSource(t)

	chunk := make([]byte, 4000)
	for range 10 {
		s.ingest(chunk)
	}

	s.mu.Lock()
	got := len(s.window)
	s.mu.Unlock()
	if got != defaultFFTSize {
		t.Errorf("window length = %d, want %d", got, defaultFFTSize)
	}
}

func TestChunk_DrainsAccumulatedPCM(t *testing.T) {
	t.Parallel()
	s := newPCMSource(t)

	s.ingest([]byte{1, 2, 3, 4})
	s.ingest([]byte{5, 6})

	if got := s.Chunk(); !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Chunk = %v", got)
	}
	if got := s.Chunk(); got != nil {
		t.Errorf("second Chunk = %v, want nil", got)
	}
}

func TestContentType(t *testing.T) {
	t.Parallel()
	s := newPCMSource(t)
	if got := s.ContentType(); got != "audio/pcm;rate=48000" {
		t.Errorf("ContentType = %q", got)
	}
}
