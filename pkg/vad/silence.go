package vad

// DefaultSilenceWindow is the number of recent frames the silence tracker
// averages over, roughly half a second at the default frame cadence.
const DefaultSilenceWindow = 30

// DefaultSilenceGain scales the ambient level into the silence threshold.
// It sits below the speech threshold so that trailing low-energy speech
// still counts as activity while genuine room tone does not.
const DefaultSilenceGain = 1.2

// SilenceTracker keeps a fixed ring of recent in-band energy samples and
// reports silence when their mean falls under a scaled ambient level. The
// ring starts zero-filled, so a freshly created tracker reports silent until
// enough energetic frames arrive to lift the mean. Not safe for concurrent
// use.
type SilenceTracker struct {
	ring      []float64
	next      int
	sum       float64
	threshold float64
}

// NewSilenceTracker creates a tracker over a window of size samples that
// reports silence when the window mean drops below ambient · gain.
func NewSilenceTracker(size int, ambient, gain float64) *SilenceTracker {
	if size <= 0 {
		size = DefaultSilenceWindow
	}
	return &SilenceTracker{
		ring:      make([]float64, size),
		threshold: ambient * gain,
	}
}

// Update pushes one in-band energy sample, evicting the oldest.
func (t *SilenceTracker) Update(speechEnergy float64) {
	t.sum += speechEnergy - t.ring[t.next]
	t.ring[t.next] = speechEnergy
	t.next = (t.next + 1) % len(t.ring)
}

// Silent reports whether the window mean is below the silence threshold.
func (t *SilenceTracker) Silent() bool {
	return t.sum/float64(len(t.ring)) < t.threshold
}

// Mean returns the current window mean, mostly for logging.
func (t *SilenceTracker) Mean() float64 {
	return t.sum / float64(len(t.ring))
}
