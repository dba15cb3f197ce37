package services

import (
	"encoding/json"
	"time"

	"hostpulse/internal/models"
)

const emptyExport = "[]"

// ExportHistory renders the bandwidth series as a pretty-printed JSON array
// with RFC3339 timestamps. Empty input or an encoding failure yields "[]".
func ExportHistory(samples []models.BandwidthSample) string {
	if len(samples) == 0 {
		return emptyExport
	}
	out := make([]models.BandwidthSample, len(samples))
	for i, s := range samples {
		s.Timestamp = wholeSeconds(s.Timestamp)
		out[i] = s
	}
	return marshalExport(out)
}

// ExportAlerts renders the alert list the same way as ExportHistory.
func ExportAlerts(alerts []models.Alert) string {
	if len(alerts) == 0 {
		return emptyExport
	}
	out := make([]models.Alert, len(alerts))
	for i, a := range alerts {
		a.Timestamp = wholeSeconds(a.Timestamp)
		if a.AcknowledgedAt != nil {
			t := wholeSeconds(*a.AcknowledgedAt)
			a.AcknowledgedAt = &t
		}
		out[i] = a
	}
	return marshalExport(out)
}

func marshalExport(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return emptyExport
	}
	return string(data)
}

// wholeSeconds drops sub-second precision so timestamps encode as plain RFC3339.
func wholeSeconds(t time.Time) time.Time {
	return t.Truncate(time.Second)
}
