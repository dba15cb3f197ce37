package controllers

import (
	"net/http"
	"time"

	"hostpulse/internal/models"
	"hostpulse/internal/services"

	"github.com/gin-gonic/gin"
)

// Acknowledger marks alerts as seen.
type Acknowledger interface {
	Acknowledge(id string) bool
}

type AlertsController struct {
	state StateReader
	acks  Acknowledger
}

func NewAlertsController(state StateReader, acks Acknowledger) *AlertsController {
	return &AlertsController{state: state, acks: acks}
}

// GetAlerts returns the alert list, newest last.
// Query params: unacknowledged=true to hide acknowledged alerts
func (ac *AlertsController) GetAlerts(c *gin.Context) {
	alerts := ac.state.Alerts()
	unacked := 0
	for _, a := range alerts {
		if !a.Acknowledged {
			unacked++
		}
	}
	if c.Query("unacknowledged") == "true" {
		open := make([]models.Alert, 0, unacked)
		for _, a := range alerts {
			if !a.Acknowledged {
				open = append(open, a)
			}
		}
		alerts = open
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts":         alerts,
		"unacknowledged": unacked,
	})
}

func (ac *AlertsController) AcknowledgeAlert(c *gin.Context) {
	id := c.Param("id")
	if !ac.acks.Acknowledge(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "acknowledged": true})
}

// ExportHistory downloads the bandwidth series as JSON.
func (ac *AlertsController) ExportHistory(c *gin.Context) {
	sendExport(c, "bandwidth-history", services.ExportHistory(ac.state.BandwidthHistory(0)))
}

// ExportAlerts downloads the alert list as JSON.
func (ac *AlertsController) ExportAlerts(c *gin.Context) {
	sendExport(c, "alerts", services.ExportAlerts(ac.state.Alerts()))
}

func sendExport(c *gin.Context, name, body string) {
	filename := name + "-" + time.Now().UTC().Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(body))
}
