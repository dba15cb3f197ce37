package models

import "time"

// MetricSnapshot represents a single point in time for a chart series
type MetricSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// BandwidthSample is one element of the long-horizon bandwidth series used
// for anomaly detection and export.
type BandwidthSample struct {
	Timestamp     time.Time `json:"timestamp"`
	BytesIn       float64   `json:"bytes_in"`
	BytesOut      float64   `json:"bytes_out"`
	IsAnomaly     bool      `json:"is_anomaly"`
	AnomalyScore  float64   `json:"anomaly_score,omitempty"`
	AnomalyReason string    `json:"anomaly_reason,omitempty"`
}

// ChartHistory holds the chart series kept by the resource sampler
type ChartHistory struct {
	CPU     []MetricSnapshot `json:"cpu"`
	Memory  []MetricSnapshot `json:"memory"`
	Network []MetricSnapshot `json:"network"`
}
