package audio

import (
	"fmt"
	"math"
)

// SpectrumAnalyzer converts a window of time-domain samples into the
// normalized magnitude spectrum a Frame carries. One analyzer is created per
// capture stream; the scratch buffers are reused between calls, so an
// analyzer must not be shared across goroutines.
type SpectrumAnalyzer struct {
	fftSize int
	window  []float64
	re, im  []float64
}

// NewSpectrumAnalyzer creates an analyzer with the given FFT size, which must
// be a power of two ≥ 2. The resulting spectra have fftSize/2 bins.
func NewSpectrumAnalyzer(fftSize int) (*SpectrumAnalyzer, error) {
	if fftSize < 2 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("audio: fft size %d is not a power of two", fftSize)
	}
	w := make([]float64, fftSize)
	for i := range w {
		// Hann window to limit spectral leakage between bins.
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}
	return &SpectrumAnalyzer{
		fftSize: fftSize,
		window:  w,
		re:      make([]float64, fftSize),
		im:      make([]float64, fftSize),
	}, nil
}

// Bins returns the number of frequency bins per spectrum (fftSize / 2).
func (a *SpectrumAnalyzer) Bins() int { return a.fftSize / 2 }

// Magnitudes computes the normalized magnitude spectrum of the most recent
// fftSize samples. Samples are expected in the unit interval with a rest
// point of 0.5; shorter inputs are zero-padded at the front. Each returned
// magnitude is clamped to [0, 1].
func (a *SpectrumAnalyzer) Magnitudes(samples []float64) []float64 {
	n := a.fftSize
	start := len(samples) - n
	for i := 0; i < n; i++ {
		v := 0.0
		if idx := start + i; idx >= 0 && idx < len(samples) {
			v = samples[idx] - 0.5
		}
		a.re[i] = v * a.window[i]
		a.im[i] = 0
	}

	fft(a.re, a.im)

	out := make([]float64, n/2)
	// Normalize so a full-scale sine lands near 1.0: window coherent gain is
	// 0.5 and the half-range amplitude is 0.5, giving n/8 as the scale.
	scale := float64(n) / 8
	for i := range out {
		mag := math.Hypot(a.re[i], a.im[i]) / scale
		if mag > 1 {
			mag = 1
		}
		out[i] = mag
	}
	return out
}

// fft performs an in-place radix-2 Cooley-Tukey FFT.
// re and im must have the same power-of-2 length.
func fft(re, im []float64) {
	n := len(re)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation
	j := 0
	for i := 0; i < n-1; i++ {
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
		k := n >> 1
		for k <= j {
			j -= k
			k >>= 1
		}
		j += k
	}

	// Cooley-Tukey butterfly
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		angle := -2.0 * math.Pi / float64(size)
		wR := math.Cos(angle)
		wI := math.Sin(angle)

		for start := 0; start < n; start += size {
			tR, tI := 1.0, 0.0
			for k := 0; k < half; k++ {
				u := start + k
				v := u + half

				tmpR := tR*re[v] - tI*im[v]
				tmpI := tR*im[v] + tI*re[v]

				re[v] = re[u] - tmpR
				im[v] = im[u] - tmpI
				re[u] += tmpR
				im[u] += tmpI

				tR, tI = tR*wR-tI*wI, tR*wI+tI*wR
			}
		}
	}
}
