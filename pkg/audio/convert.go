package audio

import "math"

// UnitSamplesFromPCM16 converts little-endian 16-bit signed PCM bytes into
// unit-interval samples with a rest point of 0.5, downmixing interleaved
// channels by averaging. Trailing odd bytes are dropped.
func UnitSamplesFromPCM16(pcm []byte, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	samples := len(pcm) / 2
	frames := samples / channels
	out := make([]float64, 0, frames)
	for f := 0; f < frames; f++ {
		var acc float64
		for c := 0; c < channels; c++ {
			i := (f*channels + c) * 2
			s := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
			acc += float64(s) / 32768.0
		}
		// Map [-1, 1] onto the unit interval around 0.5.
		out = append(out, acc/float64(channels)/2+0.5)
	}
	return out
}

// Float32FromPCM16 converts little-endian 16-bit signed PCM bytes into
// [-1, 1] float32 mono samples, downmixing interleaved channels by averaging.
// This is the input format batch speech models expect.
func Float32FromPCM16(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	samples := len(pcm) / 2
	frames := samples / channels
	out := make([]float32, 0, frames)
	for f := 0; f < frames; f++ {
		var acc float64
		for c := 0; c < channels; c++ {
			i := (f*channels + c) * 2
			s := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
			acc += float64(s) / 32768.0
		}
		out = append(out, float32(acc/float64(channels)))
	}
	return out
}

// Int16sToBytes packs int16 samples into little-endian bytes.
func Int16sToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(uint16(s))
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// Resample performs naive linear-interpolation resampling of mono unit
// samples from one rate to another. Adequate for analysis-path rate changes;
// the recorded chunks are never resampled.
func Resample(samples []float64, from, to int) []float64 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	ratio := float64(len(samples)-1) / float64(maxInt(n-1, 1))
	for i := range out {
		pos := float64(i) * ratio
		lo := int(pos)
		hi := lo + 1
		if hi >= len(samples) {
			hi = len(samples) - 1
		}
		frac := pos - float64(lo)
		out[i] = samples[lo]*(1-frac) + samples[hi]*frac
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
