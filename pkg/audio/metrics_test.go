package audio_test

import (
	"math"
	"testing"

	"github.com/quastler/openfloor/pkg/audio"
)

// flatFrame builds a frame whose spectrum has magnitude inBand inside the
// speech band and outBand everywhere else, at 48 kHz with 512 bins
// (bin width 46.875 Hz → band bins 7..64).
func flatFrame(inBand, outBand float64) audio.Frame {
	spectrum := make([]float64, 512)
	for i := range spectrum {
		if i >= 7 && i <= 64 {
			spectrum[i] = inBand
		} else {
			spectrum[i] = outBand
		}
	}
	return audio.Frame{Spectrum: spectrum, SampleRate: 48000}
}

func TestAnalyze_BandEnergies(t *testing.T) {
	t.Parallel()

	snap := audio.Analyze(flatFrame(0.5, 0.1), audio.SpeechBand)

	if math.Abs(snap.SpeechEnergy-0.5) > 1e-9 {
		t.Errorf("SpeechEnergy: want 0.5, got %v", snap.SpeechEnergy)
	}
	if math.Abs(snap.NoiseEnergy-0.1) > 1e-9 {
		t.Errorf("NoiseEnergy: want 0.1, got %v", snap.NoiseEnergy)
	}
	if math.Abs(snap.SNR-5) > 1e-9 {
		t.Errorf("SNR: want 5, got %v", snap.SNR)
	}
}

func TestAnalyze_SNRFallbackOnZeroNoise(t *testing.T) {
	t.Parallel()

	snap := audio.Analyze(flatFrame(0.3, 0), audio.SpeechBand)

	if snap.NoiseEnergy != 0 {
		t.Fatalf("NoiseEnergy: want 0, got %v", snap.NoiseEnergy)
	}
	if math.Abs(snap.SNR-snap.SpeechEnergy) > 1e-9 {
		t.Errorf("SNR fallback: want SpeechEnergy %v, got %v", snap.SpeechEnergy, snap.SNR)
	}
}

func TestAnalyze_EmptyFrameIsZeroEnergy(t *testing.T) {
	t.Parallel()

	snap := audio.Analyze(audio.Frame{}, audio.SpeechBand)

	if snap != (audio.Snapshot{}) {
		t.Errorf("empty frame: want zero snapshot, got %+v", snap)
	}
}

func TestAnalyze_TimeEnergy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{
			name:    "flat rest point carries no energy",
			samples: []float64{0.5, 0.5, 0.5, 0.5},
			want:    0,
		},
		{
			// Alternating ±0.2 around the rest point → RMS 0.2, scaled by
			// the 0.5 half-range → 0.4.
			name:    "square swing",
			samples: []float64{0.3, 0.7, 0.3, 0.7},
			want:    0.4,
		},
		{
			// DC offset is removed by recentring: a constant 0.8 stream is
			// still zero energy.
			name:    "dc offset removed",
			samples: []float64{0.8, 0.8, 0.8, 0.8},
			want:    0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			snap := audio.Analyze(audio.Frame{Samples: tc.samples, SampleRate: 48000}, audio.SpeechBand)
			if math.Abs(snap.TimeEnergy-tc.want) > 1e-9 {
				t.Errorf("TimeEnergy: want %v, got %v", tc.want, snap.TimeEnergy)
			}
		})
	}
}

func TestFrame_BinWidth(t *testing.T) {
	t.Parallel()

	f := audio.Frame{Spectrum: make([]float64, 512), SampleRate: 48000}
	if got, want := f.BinWidth(), 46.875; got != want {
		t.Errorf("BinWidth: want %v, got %v", want, got)
	}
	if got := (audio.Frame{}).BinWidth(); got != 0 {
		t.Errorf("BinWidth of empty frame: want 0, got %v", got)
	}
}
