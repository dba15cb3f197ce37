package services

import (
	"fmt"
	"testing"
	"time"

	"hostpulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestEngine(t *testing.T, rules ...models.AlertRule) *AlertEngine {
	e := NewAlertEngine(rules, zaptest.NewLogger(t))
	n := 0
	e.newID = func() string {
		n++
		return fmt.Sprintf("alert-%d", n)
	}
	return e
}

func snapshotReading(s models.SystemSnapshot) MetricReading {
	return MetricReading{Snapshot: &s}
}

func TestEvaluateDebounce(t *testing.T) {
	rule := models.AlertRule{
		ID: "bw", Name: "Bandwidth", Enabled: true,
		Metric: models.MetricTotalBandwidth, Operator: models.OpGreaterThan,
		Threshold: 1000, Duration: 60 * time.Second, Severity: models.SeverityWarning,
	}
	e := newTestEngine(t, rule)
	reading := snapshotReading(models.SystemSnapshot{NetworkDownloadBps: 1000, NetworkUploadBps: 500})

	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var counts []int
	for i := 0; i < 3; i++ {
		counts = append(counts, len(e.Evaluate(start.Add(time.Duration(i)*20*time.Second), reading)))
	}
	assert.Equal(t, []int{1, 0, 0}, counts)

	// cooldown elapsed at exactly Duration
	assert.Len(t, e.Evaluate(start.Add(60*time.Second), reading), 1)
	assert.Len(t, e.Alerts(), 2)

	stamped := e.Rules()[0].LastTriggeredAt
	require.NotNil(t, stamped)
	assert.Equal(t, start.Add(60*time.Second), *stamped)
}

func TestEvaluateAlertContent(t *testing.T) {
	e := newTestEngine(t, models.AlertRule{
		ID: "cpu", Name: "High CPU", Enabled: true,
		Metric: models.MetricCPUUsage, Operator: models.OpGreaterThan,
		Threshold: 90, Severity: models.SeverityCritical,
	})
	now := time.Now()
	fired := e.Evaluate(now, snapshotReading(models.SystemSnapshot{CPUUsagePercent: 97.5}))
	require.Len(t, fired, 1)

	a := fired[0]
	assert.Equal(t, "alert-1", a.ID)
	assert.Equal(t, "cpu", a.RuleID)
	assert.Equal(t, "High CPU", a.Title)
	assert.Equal(t, models.SeverityCritical, a.Severity)
	assert.Equal(t, models.CategoryPerformance, a.Category)
	assert.Equal(t, now, a.Timestamp)
	assert.Contains(t, a.Description, "97.5%")
	assert.False(t, a.Acknowledged)
}

func TestEvaluateSkipsDisabledAndUnsupported(t *testing.T) {
	e := newTestEngine(t,
		models.AlertRule{ID: "off", Metric: models.MetricCPUUsage, Operator: models.OpGreaterThan, Threshold: 0},
		models.AlertRule{ID: "lat", Enabled: true, Metric: models.MetricLatency, Operator: models.OpGreaterThan, Threshold: -1},
		models.AlertRule{ID: "loss", Enabled: true, Metric: models.MetricPacketLoss, Operator: models.OpGreaterThan, Threshold: -1},
		models.AlertRule{ID: "conns", Enabled: true, Metric: models.MetricConnectionCount, Operator: models.OpGreaterThan, Threshold: -1},
	)
	fired := e.Evaluate(time.Now(), snapshotReading(models.SystemSnapshot{CPUUsagePercent: 50}))
	assert.Empty(t, fired)

	for _, r := range e.Rules() {
		assert.Nil(t, r.LastTriggeredAt, r.ID)
	}
}

func TestEvaluateConnectionCount(t *testing.T) {
	e := newTestEngine(t, models.AlertRule{
		ID: "conns", Enabled: true, Metric: models.MetricConnectionCount,
		Operator: models.OpGreaterThan, Threshold: 2, Severity: models.SeverityInfo,
	})
	fired := e.Evaluate(time.Now(), MetricReading{Connections: &models.ConnectionStats{ActiveConnections: 3}})
	require.Len(t, fired, 1)
	assert.Equal(t, models.CategoryConnectivity, fired[0].Category)
}

func TestCompareEpsilon(t *testing.T) {
	assert.True(t, Compare(models.OpEquals, 50.0004, 50.0))
	assert.False(t, Compare(models.OpEquals, 50.002, 50.0))
	assert.False(t, Compare(models.OpNotEquals, 50.0004, 50.0))
	assert.True(t, Compare(models.OpNotEquals, 50.002, 50.0))
	assert.True(t, Compare(models.OpLessThan, 1, 2))
	assert.False(t, Compare(models.OpGreaterThan, 2, 2))
	assert.False(t, Compare("between", 1, 1))
}

func TestSetRulesKeepsCooldown(t *testing.T) {
	rule := models.AlertRule{
		ID: "mem", Enabled: true, Metric: models.MetricMemoryUsage,
		Operator: models.OpGreaterThan, Threshold: 80, Duration: time.Hour, Severity: models.SeverityWarning,
	}
	e := newTestEngine(t, rule)
	now := time.Now()
	reading := snapshotReading(models.SystemSnapshot{MemoryUsagePercent: 95})
	require.Len(t, e.Evaluate(now, reading), 1)

	rule.Threshold = 85
	fresh := rule
	fresh.ID = "mem2"
	e.SetRules([]models.AlertRule{rule, fresh})

	fired := e.Evaluate(now.Add(time.Minute), reading)
	require.Len(t, fired, 1)
	assert.Equal(t, "mem2", fired[0].RuleID)
}

func TestAcknowledge(t *testing.T) {
	e := newTestEngine(t)
	e.Record(models.Alert{ID: "a1"}, models.Alert{ID: "a2"})
	assert.Equal(t, 2, e.UnacknowledgedCount())

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, e.Acknowledge("a1", first))
	assert.True(t, e.Acknowledge("a1", first.Add(time.Hour)))
	assert.False(t, e.Acknowledge("missing", first))

	alerts := e.Alerts()
	require.Len(t, alerts, 2)
	assert.True(t, alerts[0].Acknowledged)
	assert.Equal(t, first, *alerts[0].AcknowledgedAt)
	assert.Equal(t, 1, e.UnacknowledgedCount())
}

func TestFormatBytesPerSecond(t *testing.T) {
	assert.Equal(t, "512.0 B/s", FormatBytesPerSecond(512))
	assert.Equal(t, "1.5 KB/s", FormatBytesPerSecond(1536))
	assert.Equal(t, "2.0 MB/s", FormatBytesPerSecond(2*1024*1024))
}
