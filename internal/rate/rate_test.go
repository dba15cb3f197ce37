package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		prev   uint64
		cur    uint64
		gap    time.Duration
		want   float64
		wantOK bool
	}{
		{"steady", 1000, 3000, 2 * time.Second, 1000, true},
		{"counter reset", 5000, 100, time.Second, 0, true},
		{"too soon", 0, 1000, 100 * time.Millisecond, 0, false},
		{"same instant", 0, 1000, 0, 0, false},
		{"clock went backwards", 0, 1000, -time.Second, 0, false},
		{"exactly min interval", 0, 500, MinInterval, 1000, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Compute(tc.prev, base, tc.cur, base.Add(tc.gap))
			assert.Equal(t, tc.wantOK, ok)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestComputeNeverNegative(t *testing.T) {
	base := time.Now()
	values := []uint64{0, 1, 10, 1 << 20, 1 << 40, ^uint64(0)}
	for _, prev := range values {
		for _, cur := range values {
			got, _ := Compute(prev, base, cur, base.Add(3*time.Second))
			require.GreaterOrEqual(t, got, 0.0, "prev=%d cur=%d", prev, cur)
		}
	}
}

func TestTrackerReusesLastRate(t *testing.T) {
	var tr Tracker
	base := time.Now()

	assert.Equal(t, 0.0, tr.Observe(100, base))
	assert.InDelta(t, 50.0, tr.Observe(200, base.Add(2*time.Second)), 1e-9)

	// too close to the previous reading: keep publishing 50
	assert.InDelta(t, 50.0, tr.Observe(10_000, base.Add(2100*time.Millisecond)), 1e-9)

	// the skipped reading was not stored, so the delta spans from t=2s
	assert.InDelta(t, 100.0, tr.Observe(400, base.Add(4*time.Second)), 1e-9)

	assert.Equal(t, 0.0, tr.Observe(10, base.Add(6*time.Second)))
	assert.Equal(t, 0.0, tr.Last())

	tr.Reset()
	assert.Equal(t, 0.0, tr.Observe(999, base.Add(8*time.Second)))
}
