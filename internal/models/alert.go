package models

import "time"

// Metric names a value an AlertRule can watch.
type Metric string

const (
	MetricBandwidthIn     Metric = "bandwidthIn"
	MetricBandwidthOut    Metric = "bandwidthOut"
	MetricTotalBandwidth  Metric = "totalBandwidth"
	MetricLatency         Metric = "latency"
	MetricPacketLoss      Metric = "packetLoss"
	MetricCPUUsage        Metric = "cpuUsage"
	MetricMemoryUsage     Metric = "memoryUsage"
	MetricConnectionCount Metric = "connectionCount"
	MetricErrorRate       Metric = "errorRate"
)

// Metrics lists every known metric.
var Metrics = []Metric{
	MetricBandwidthIn, MetricBandwidthOut, MetricTotalBandwidth, MetricLatency, MetricPacketLoss,
	MetricCPUUsage, MetricMemoryUsage, MetricConnectionCount, MetricErrorRate,
}

// Operator is a rule comparator.
type Operator string

const (
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
)

// Severity of an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Category groups alerts for display.
type Category string

const (
	CategoryPerformance  Category = "performance"
	CategorySecurity     Category = "security"
	CategoryConnectivity Category = "connectivity"
	CategoryAnomaly      Category = "anomaly"
	CategorySystem       Category = "system"
)

// AlertRule is a configured threshold check. Duration is the cooldown
// between two firings of the same rule.
type AlertRule struct {
	ID              string        `json:"id" yaml:"id" mapstructure:"id"`
	Name            string        `json:"name" yaml:"name" mapstructure:"name"`
	Enabled         bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Metric          Metric        `json:"metric" yaml:"metric" mapstructure:"metric"`
	Operator        Operator      `json:"operator" yaml:"operator" mapstructure:"operator"`
	Threshold       float64       `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	Duration        time.Duration `json:"duration" yaml:"duration" mapstructure:"duration"`
	Severity        Severity      `json:"severity" yaml:"severity" mapstructure:"severity"`
	LastTriggeredAt *time.Time    `json:"last_triggered_at,omitempty" yaml:"-" mapstructure:"-"`
}

// Alert is an event emitted by the rule engine or the anomaly detector.
// Only the acknowledgment fields change after creation.
type Alert struct {
	ID             string     `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Severity       Severity   `json:"severity"`
	Category       Category   `json:"category"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	AffectedDevice *string    `json:"affected_device,omitempty"`
	RuleID         string     `json:"rule_id,omitempty"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}
