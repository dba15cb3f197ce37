// Package rate turns cumulative counter readings into per-second rates.
package rate

import "time"

// MinInterval is the smallest gap between two readings that produces a new
// rate. Shorter gaps are reported as "no update".
const MinInterval = 500 * time.Millisecond

// Compute returns the per-second rate between two cumulative readings.
// ok is false when the interval is non-positive or below MinInterval; the
// caller should keep publishing its previous rate in that case. A counter
// that went backwards (wraparound or reset) yields 0, never a negative rate.
func Compute(prev uint64, prevTime time.Time, cur uint64, curTime time.Time) (bps float64, ok bool) {
	elapsed := curTime.Sub(prevTime)
	if elapsed <= 0 || elapsed < MinInterval {
		return 0, false
	}
	if cur < prev {
		return 0, true
	}
	return float64(cur-prev) / elapsed.Seconds(), true
}

// Tracker remembers the last reading of one counter and the last rate it
// produced. It is not safe for concurrent use.
type Tracker struct {
	value    uint64
	at       time.Time
	last     float64
	hasValue bool
}

// Observe records a reading and returns the rate to publish. The first
// reading returns 0. Readings that arrive too soon keep the previous rate
// and do not replace the stored reading.
func (t *Tracker) Observe(value uint64, at time.Time) float64 {
	if !t.hasValue {
		t.value, t.at, t.hasValue = value, at, true
		return 0
	}
	bps, ok := Compute(t.value, t.at, value, at)
	if !ok {
		return t.last
	}
	t.value, t.at, t.last = value, at, bps
	return bps
}

// Last returns the most recently published rate.
func (t *Tracker) Last() float64 {
	return t.last
}

// Reset forgets the stored reading
func (t *Tracker) Reset() {
	*t = Tracker{}
}
