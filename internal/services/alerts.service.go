package services

import (
	"fmt"
	"math"
	"sync"
	"time"

	"hostpulse/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EqualityEpsilon is the tolerance of the equals and notEquals operators.
const EqualityEpsilon = 0.001

// MetricReading is the latest published state a rule set is evaluated
// against. Either part may be missing before its first poll completes.
type MetricReading struct {
	Snapshot    *models.SystemSnapshot
	Connections *models.ConnectionStats
}

// Value resolves a metric. ok is false for metrics the host cannot measure
// (latency, packet loss) and for readings not yet available.
func (r MetricReading) Value(m models.Metric) (float64, bool) {
	if m == models.MetricConnectionCount {
		if r.Connections == nil {
			return 0, false
		}
		return float64(r.Connections.ActiveConnections), true
	}
	if r.Snapshot == nil {
		return 0, false
	}
	s := r.Snapshot
	switch m {
	case models.MetricBandwidthIn:
		return s.NetworkDownloadBps, true
	case models.MetricBandwidthOut:
		return s.NetworkUploadBps, true
	case models.MetricTotalBandwidth:
		return s.TotalBandwidthBps(), true
	case models.MetricCPUUsage:
		return s.CPUUsagePercent, true
	case models.MetricMemoryUsage:
		return s.MemoryUsagePercent, true
	case models.MetricErrorRate:
		return s.NetworkErrorsPerSec, true
	}
	return 0, false
}

// Compare applies op to value and threshold.
func Compare(op models.Operator, value, threshold float64) bool {
	switch op {
	case models.OpGreaterThan:
		return value > threshold
	case models.OpLessThan:
		return value < threshold
	case models.OpEquals:
		return math.Abs(value-threshold) < EqualityEpsilon
	case models.OpNotEquals:
		return math.Abs(value-threshold) >= EqualityEpsilon
	}
	return false
}

// AlertEngine evaluates threshold rules and keeps the alert list.
//
// A rule fires when its condition holds and it is armed: it never fired, or
// its cooldown (Duration) has elapsed since LastTriggeredAt. Firing stamps
// LastTriggeredAt. No event is emitted when a condition stops holding.
type AlertEngine struct {
	mu     sync.RWMutex
	rules  []models.AlertRule
	alerts []models.Alert
	logger *zap.Logger
	newID  func() string
}

func NewAlertEngine(rules []models.AlertRule, logger *zap.Logger) *AlertEngine {
	e := &AlertEngine{logger: logger.Named("alerts"), newID: uuid.NewString}
	e.SetRules(rules)
	return e
}

// Evaluate runs every enabled rule against reading and returns the alerts
// it emitted, which are also appended to the alert list.
func (e *AlertEngine) Evaluate(now time.Time, reading MetricReading) []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fired []models.Alert
	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Enabled {
			continue
		}
		value, ok := reading.Value(rule.Metric)
		if !ok {
			continue
		}
		if !Compare(rule.Operator, value, rule.Threshold) {
			continue
		}
		if rule.LastTriggeredAt != nil && now.Sub(*rule.LastTriggeredAt) < rule.Duration {
			continue
		}

		stamp := now
		rule.LastTriggeredAt = &stamp
		alert := e.ruleAlert(*rule, value, now)
		fired = append(fired, alert)
		e.logger.Info("rule fired",
			zap.String("rule", rule.ID),
			zap.String("metric", string(rule.Metric)),
			zap.Float64("value", value),
			zap.Float64("threshold", rule.Threshold))
	}
	e.alerts = append(e.alerts, fired...)
	return fired
}

func (e *AlertEngine) ruleAlert(rule models.AlertRule, value float64, now time.Time) models.Alert {
	title := rule.Name
	if title == "" {
		title = string(rule.Metric)
	}
	return models.Alert{
		ID:        e.newID(),
		Timestamp: now,
		Severity:  rule.Severity,
		Category:  metricCategory(rule.Metric),
		Title:     title,
		Description: fmt.Sprintf("%s is %s (%s %s)",
			rule.Metric, formatMetric(rule.Metric, value), rule.Operator, formatMetric(rule.Metric, rule.Threshold)),
		RuleID: rule.ID,
	}
}

func metricCategory(m models.Metric) models.Category {
	switch m {
	case models.MetricConnectionCount, models.MetricErrorRate, models.MetricLatency, models.MetricPacketLoss:
		return models.CategoryConnectivity
	}
	return models.CategoryPerformance
}

func formatMetric(m models.Metric, v float64) string {
	switch m {
	case models.MetricBandwidthIn, models.MetricBandwidthOut, models.MetricTotalBandwidth:
		return FormatBytesPerSecond(v)
	case models.MetricCPUUsage, models.MetricMemoryUsage:
		return fmt.Sprintf("%.1f%%", v)
	case models.MetricConnectionCount:
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatBytesPerSecond renders a rate with a binary unit.
func FormatBytesPerSecond(bps float64) string {
	units := []string{"B/s", "KB/s", "MB/s", "GB/s"}
	i := 0
	for bps >= 1024 && i < len(units)-1 {
		bps /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", bps, units[i])
}

// Record appends externally produced alerts, such as anomalies.
func (e *AlertEngine) Record(alerts ...models.Alert) {
	if len(alerts) == 0 {
		return
	}
	e.mu.Lock()
	e.alerts = append(e.alerts, alerts...)
	e.mu.Unlock()
}

// SetRules replaces the rule set. Rules whose id already existed keep their
// cooldown stamp, so editing a threshold does not re-arm a cooling rule.
func (e *AlertEngine) SetRules(rules []models.AlertRule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := make(map[string]models.AlertRule, len(e.rules))
	for _, r := range e.rules {
		old[r.ID] = r
	}
	next := make([]models.AlertRule, len(rules))
	for i, r := range rules {
		r.LastTriggeredAt = copyTime(r.LastTriggeredAt)
		if prev, ok := old[r.ID]; ok && r.LastTriggeredAt == nil {
			r.LastTriggeredAt = copyTime(prev.LastTriggeredAt)
		}
		next[i] = r
	}
	e.rules = next
}

// Rules returns a copy of the rule set including cooldown stamps.
func (e *AlertEngine) Rules() []models.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.AlertRule, len(e.rules))
	for i, r := range e.rules {
		r.LastTriggeredAt = copyTime(r.LastTriggeredAt)
		out[i] = r
	}
	return out
}

// Acknowledge marks the alert with id as seen. It reports false for unknown
// ids; acknowledging twice keeps the first timestamp.
func (e *AlertEngine) Acknowledge(id string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.alerts {
		a := &e.alerts[i]
		if a.ID != id {
			continue
		}
		if !a.Acknowledged {
			stamp := now
			a.Acknowledged = true
			a.AcknowledgedAt = &stamp
		}
		return true
	}
	return false
}

// Alerts returns a copy of the alert list, oldest first.
func (e *AlertEngine) Alerts() []models.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Alert, len(e.alerts))
	copy(out, e.alerts)
	return out
}

func (e *AlertEngine) UnacknowledgedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, a := range e.alerts {
		if !a.Acknowledged {
			n++
		}
	}
	return n
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
