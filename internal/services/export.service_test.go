package services

import (
	"encoding/json"
	"testing"
	"time"

	"hostpulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportEmpty(t *testing.T) {
	assert.Equal(t, "[]", ExportAlerts(nil))
	assert.Equal(t, "[]", ExportAlerts([]models.Alert{}))
	assert.Equal(t, "[]", ExportHistory(nil))
}

func TestExportAlertsFormat(t *testing.T) {
	ts := time.Date(2026, 4, 2, 10, 30, 15, 123456789, time.UTC)
	ack := ts.Add(time.Minute)
	out := ExportAlerts([]models.Alert{{
		ID: "a1", Timestamp: ts, Severity: models.SeverityInfo, Category: models.CategorySystem,
		Title: "t", Acknowledged: true, AcknowledgedAt: &ack,
	}})

	assert.Contains(t, out, "\n  {")
	assert.Contains(t, out, `"timestamp": "2026-04-02T10:30:15Z"`)
	assert.Contains(t, out, `"acknowledged_at": "2026-04-02T10:31:15Z"`)

	var decoded []models.Alert
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "a1", decoded[0].ID)
}

func TestExportHistoryKeepsAnomalyFields(t *testing.T) {
	ts := time.Date(2026, 4, 2, 10, 30, 15, 0, time.UTC)
	out := ExportHistory([]models.BandwidthSample{
		{Timestamp: ts, BytesIn: 10, BytesOut: 5},
		{Timestamp: ts.Add(5 * time.Second), BytesIn: 9000, IsAnomaly: true, AnomalyScore: 4.2, AnomalyReason: AnomalyReason},
	})

	assert.Contains(t, out, `"timestamp": "2026-04-02T10:30:20Z"`)
	assert.Contains(t, out, `"is_anomaly": true`)
	assert.Contains(t, out, AnomalyReason)
}
