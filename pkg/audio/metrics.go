package audio

import "math"

// Band is an inclusive frequency range in Hz. The default speech band covers
// the energy-carrying range of human voice.
type Band struct {
	Low  float64
	High float64
}

// SpeechBand is the default analysis band for voiced speech.
var SpeechBand = Band{Low: 300, High: 3000}

// Snapshot holds the scalar features derived from one Frame. All fields are
// non-negative; a zero Snapshot is what an empty frame produces.
type Snapshot struct {
	// TimeEnergy is the RMS of the time-domain samples after recentring
	// around the stream's rest point, normalized to the amplitude range.
	TimeEnergy float64

	// SpeechEnergy is the RMS of spectrum magnitudes inside the band.
	SpeechEnergy float64

	// NoiseEnergy is the RMS of spectrum magnitudes outside the band.
	NoiseEnergy float64

	// SNR is SpeechEnergy / NoiseEnergy. When NoiseEnergy is zero it falls
	// back to SpeechEnergy so a silent noise floor never divides by zero.
	SNR float64
}

// Analyze computes the Snapshot for one frame. It is pure and has no failure
// modes: malformed or empty frames yield zero energies.
func Analyze(f Frame, band Band) Snapshot {
	var s Snapshot
	s.TimeEnergy = timeEnergy(f.Samples)
	s.SpeechEnergy, s.NoiseEnergy = bandEnergies(f, band)
	if s.NoiseEnergy > 0 {
		s.SNR = s.SpeechEnergy / s.NoiseEnergy
	} else {
		s.SNR = s.SpeechEnergy
	}
	return s
}

// timeEnergy recentres the samples around their mean (removing DC offset and
// the 0.5 rest point in one step) and returns the RMS scaled to [0, 1] by the
// half-range of the unit interval.
func timeEnergy(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var mean float64
	for _, v := range samples {
		mean += v
	}
	mean /= float64(len(samples))

	var sum float64
	for _, v := range samples {
		d := v - mean
		sum += d * d
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	// Half the unit interval is the full swing around the rest point.
	return math.Min(rms/0.5, 1)
}

// bandEnergies returns the in-band and out-of-band RMS of the spectrum.
func bandEnergies(f Frame, band Band) (speech, noise float64) {
	bw := f.BinWidth()
	if bw <= 0 {
		return 0, 0
	}
	lo := int(math.Ceil(band.Low / bw))
	hi := int(math.Floor(band.High / bw))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(f.Spectrum) {
		hi = len(f.Spectrum) - 1
	}

	var inSum, outSum float64
	var inN, outN int
	for i, m := range f.Spectrum {
		if i >= lo && i <= hi {
			inSum += m * m
			inN++
		} else {
			outSum += m * m
			outN++
		}
	}
	if inN > 0 {
		speech = math.Sqrt(inSum / float64(inN))
	}
	if outN > 0 {
		noise = math.Sqrt(outSum / float64(outN))
	}
	return speech, noise
}
