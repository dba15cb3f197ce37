package services

import (
	"testing"
	"time"

	"hostpulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func bandwidthAt(i int, bytesIn float64) models.BandwidthSample {
	return models.BandwidthSample{
		Timestamp: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 5 * time.Second),
		BytesIn:   bytesIn,
	}
}

func TestAnomalyGating(t *testing.T) {
	d := NewAnomalyDetector(1000, zaptest.NewLogger(t))
	for i := 0; i < 100; i++ {
		v := 100.0
		if i%2 == 0 {
			v = 1e9
		}
		_, fired := d.Observe(bandwidthAt(i, v))
		assert.False(t, fired, "sample %d", i)
	}
	assert.Len(t, d.Samples(), 100)
}

func TestAnomalyFlagsSpike(t *testing.T) {
	d := NewAnomalyDetector(1000, zaptest.NewLogger(t))
	for i := 0; i < 100; i++ {
		v := 1000.0
		if i%2 == 0 {
			v = 1100.0
		}
		_, fired := d.Observe(bandwidthAt(i, v))
		require.False(t, fired)
	}

	alert, fired := d.Observe(bandwidthAt(100, 50_000))
	require.True(t, fired)
	assert.Equal(t, models.SeverityWarning, alert.Severity)
	assert.Equal(t, models.CategoryAnomaly, alert.Category)
	assert.NotEmpty(t, alert.ID)
	assert.Contains(t, alert.Description, AnomalyReason)

	samples := d.Samples()
	latest := samples[len(samples)-1]
	assert.True(t, latest.IsAnomaly)
	assert.Greater(t, latest.AnomalyScore, AnomalyThreshold)
	assert.Equal(t, AnomalyReason, latest.AnomalyReason)
	assert.False(t, samples[0].IsAnomaly)
}

func TestAnomalyFlatBaseline(t *testing.T) {
	d := NewAnomalyDetector(1000, zaptest.NewLogger(t))
	for i := 0; i < 150; i++ {
		_, fired := d.Observe(bandwidthAt(i, 500))
		assert.False(t, fired)
	}
}

func TestAnomalyNormalSampleNotFlagged(t *testing.T) {
	d := NewAnomalyDetector(1000, zaptest.NewLogger(t))
	for i := 0; i < 101; i++ {
		v := 1000.0
		if i%2 == 0 {
			v = 1100.0
		}
		_, fired := d.Observe(bandwidthAt(i, v))
		assert.False(t, fired)
	}
}
