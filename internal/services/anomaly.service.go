package services

import (
	"fmt"
	"math"
	"sync"

	"hostpulse/internal/history"
	"hostpulse/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// AnomalyWindow is the number of recent samples forming the baseline.
	AnomalyWindow = history.AnomalyWindow
	// AnomalyThreshold is the z-score above which a sample is anomalous.
	AnomalyThreshold = 3.0
	// AnomalyReason is stamped on anomalous samples.
	AnomalyReason = "Unusual inbound traffic volume"
)

// AnomalyDetector keeps the long-horizon bandwidth series and flags
// inbound volume outliers against a rolling three-sigma baseline.
type AnomalyDetector struct {
	mu      sync.RWMutex
	samples *history.Buffer[models.BandwidthSample]
	logger  *zap.Logger
	newID   func() string
}

func NewAnomalyDetector(capacity int, logger *zap.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		samples: history.New[models.BandwidthSample](capacity),
		logger:  logger.Named("anomaly"),
		newID:   uuid.NewString,
	}
}

// Observe appends sample and scores it once more than AnomalyWindow samples
// are held. The baseline covers the last AnomalyWindow samples including
// this one. It returns the alert raised, if any.
func (d *AnomalyDetector) Observe(sample models.BandwidthSample) (models.Alert, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.samples.Push(sample)
	if d.samples.Len() <= AnomalyWindow {
		return models.Alert{}, false
	}

	window := d.samples.Slice(AnomalyWindow)
	mean, stddev := meanStddev(window)
	if stddev == 0 {
		return models.Alert{}, false
	}
	z := math.Abs(sample.BytesIn-mean) / stddev
	if z <= AnomalyThreshold {
		return models.Alert{}, false
	}

	d.samples.Update(func(s *models.BandwidthSample) {
		s.IsAnomaly = true
		s.AnomalyScore = z
		s.AnomalyReason = AnomalyReason
	})
	d.logger.Info("bandwidth anomaly",
		zap.Float64("bytes_in", sample.BytesIn),
		zap.Float64("mean", mean),
		zap.Float64("z", z))

	return models.Alert{
		ID:        d.newID(),
		Timestamp: sample.Timestamp,
		Severity:  models.SeverityWarning,
		Category:  models.CategoryAnomaly,
		Title:     "Bandwidth anomaly",
		Description: fmt.Sprintf("%s: %s against a baseline of %s (z=%.2f)",
			AnomalyReason, FormatBytesPerSecond(sample.BytesIn), FormatBytesPerSecond(mean), z),
	}, true
}

// meanStddev returns the mean and population standard deviation of BytesIn.
func meanStddev(samples []models.BandwidthSample) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.BytesIn
	}
	mean := sum / float64(len(samples))
	var sq float64
	for _, s := range samples {
		d := s.BytesIn - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(samples)))
}

// Samples returns a copy of the series, oldest first.
func (d *AnomalyDetector) Samples() []models.BandwidthSample {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.samples.Slice(0)
}

func (d *AnomalyDetector) Resize(capacity int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples.Resize(capacity)
}
