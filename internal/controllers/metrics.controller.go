package controllers

import (
	"net/http"
	"strconv"

	"hostpulse/internal/models"

	"github.com/gin-gonic/gin"
)

// StateReader is the read side of the published monitoring state.
type StateReader interface {
	Snapshot() (models.SystemSnapshot, bool)
	Histories() models.ChartHistory
	BandwidthHistory(n int) []models.BandwidthSample
	Connections() models.ConnectionSet
	ConnectionStats() (models.ConnectionStats, bool)
	Alerts() []models.Alert
	Running() bool
}

type MetricsController struct {
	state StateReader
}

func NewMetricsController(state StateReader) *MetricsController {
	return &MetricsController{state: state}
}

// GetSnapshot returns the latest resource reading.
func (mc *MetricsController) GetSnapshot(c *gin.Context) {
	snap, ok := mc.state.Snapshot()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "no snapshot yet",
			"running": mc.state.Running(),
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetHistory returns the chart series.
// Query params: n=<last n points> (default: all)
func (mc *MetricsController) GetHistory(c *gin.Context) {
	n, ok := limitParam(c)
	if !ok {
		return
	}
	h := mc.state.Histories()
	c.JSON(http.StatusOK, models.ChartHistory{
		CPU:     lastN(h.CPU, n),
		Memory:  lastN(h.Memory, n),
		Network: lastN(h.Network, n),
	})
}

// GetBandwidth returns the long-horizon bandwidth series with anomaly marks.
// Query params: n=<last n samples> (default: all)
func (mc *MetricsController) GetBandwidth(c *gin.Context) {
	n, ok := limitParam(c)
	if !ok {
		return
	}
	samples := mc.state.BandwidthHistory(n)
	c.JSON(http.StatusOK, gin.H{
		"count":   len(samples),
		"samples": samples,
	})
}

// limitParam parses ?n=, writing a 400 when it is malformed.
func limitParam(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("n", "0")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid n"})
		return 0, false
	}
	return n, true
}

func lastN[T any](s []T, n int) []T {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
