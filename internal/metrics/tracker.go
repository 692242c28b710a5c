// Package metrics holds the moving-average rate trackers and the per-tick
// performance counters the pipeline reports instead of logging.
package metrics

// RateTracker smooths the growth rate of a cumulative series (total damage
// dealt, total resource gathered) over a bounded window. Samples are
// cumulative totals, not deltas; Rate is the averaged per-tick slope.
type RateTracker struct {
	maxSamples  int
	maxInterval int

	samples  []sample
	duration int
	distance float64
}

type sample struct {
	value float64
	tick  int
}

// NewRateTracker bounds the window by sample count (at least 2) and by tick
// span. Either bound evicts the oldest samples.
func NewRateTracker(maxSamples, maxInterval int) *RateTracker {
	if maxSamples < 2 {
		maxSamples = 2
	}
	return &RateTracker{maxSamples: maxSamples, maxInterval: maxInterval}
}

func (t *RateTracker) Add(value float64, tick int) {
	for len(t.samples) >= t.maxSamples || (len(t.samples) >= 2 && t.duration >= t.maxInterval) {
		removed := t.samples[0]
		t.samples = t.samples[1:]
		if len(t.samples) > 0 {
			first := t.samples[0]
			t.distance -= first.value - removed.value
			t.duration -= first.tick - removed.tick
		}
	}
	if n := len(t.samples); n > 0 {
		last := t.samples[n-1]
		t.distance += value - last.value
		t.duration += tick - last.tick
	}
	t.samples = append(t.samples, sample{value: value, tick: tick})
}

// Rate returns the smoothed per-tick slope, or 0 before two samples exist.
func (t *RateTracker) Rate() float64 {
	if len(t.samples) < 2 || t.duration == 0 {
		return 0
	}
	return t.distance / float64(t.duration)
}

func (t *RateTracker) Len() int { return len(t.samples) }

// Trackers bundles the smoothed indicators consumed by role hysteresis and
// score normalization.
type Trackers struct {
	DamageDone     *RateTracker
	DamageReceived *RateTracker
	Yield          *RateTracker
	Threat         *RateTracker
}

func NewTrackers(maxSamples, maxInterval int) *Trackers {
	return &Trackers{
		DamageDone:     NewRateTracker(maxSamples, maxInterval),
		DamageReceived: NewRateTracker(maxSamples, maxInterval),
		Yield:          NewRateTracker(maxSamples, maxInterval),
		Threat:         NewRateTracker(maxSamples, maxInterval),
	}
}
