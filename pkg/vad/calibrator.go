package vad

import (
	"errors"
	"sort"
)

// ErrNoSamples is returned by Calibrator.Level when no samples were added.
var ErrNoSamples = errors.New("vad: calibration produced no samples")

// Calibrator accumulates in-band energy samples from frames observed while
// the user is presumed not to be speaking and reduces them to a single
// ambient level. It is not safe for concurrent use; the caller feeds it from
// one goroutine during the calibration window.
type Calibrator struct {
	samples []float64
}

// NewCalibrator returns an empty calibrator.
func NewCalibrator() *Calibrator {
	return &Calibrator{}
}

// Add records one in-band energy sample.
func (c *Calibrator) Add(speechEnergy float64) {
	c.samples = append(c.samples, speechEnergy)
}

// Count returns the number of samples recorded so far.
func (c *Calibrator) Count() int { return len(c.samples) }

// Level reduces the collected samples to the ambient level. The median is
// used rather than the mean so that a door slam or cough during calibration
// does not inflate the floor for the rest of the session.
func (c *Calibrator) Level() (float64, error) {
	if len(c.samples) == 0 {
		return 0, ErrNoSamples
	}
	sorted := make([]float64, len(c.samples))
	copy(sorted, c.samples)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2], nil
}
