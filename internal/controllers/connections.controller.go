package controllers

import (
	"net/http"
	"strings"

	"hostpulse/internal/models"

	"github.com/gin-gonic/gin"
)

type ConnectionsController struct {
	state StateReader
}

func NewConnectionsController(state StateReader) *ConnectionsController {
	return &ConnectionsController{state: state}
}

// GetConnections returns the latest connection set.
// Query params: protocol=TCP|UDP, state=ESTABLISHED|LISTEN|..., process=<name substring>
func (cc *ConnectionsController) GetConnections(c *gin.Context) {
	set := cc.state.Connections()
	protocol := strings.ToUpper(c.Query("protocol"))
	state := strings.ToUpper(c.Query("state"))
	process := strings.ToLower(c.Query("process"))

	if protocol != "" || state != "" || process != "" {
		filtered := make([]models.Connection, 0, len(set.Connections))
		for _, conn := range set.Connections {
			if protocol != "" && string(conn.Protocol) != protocol {
				continue
			}
			if state != "" && string(conn.State) != state {
				continue
			}
			if process != "" && !strings.Contains(strings.ToLower(conn.ProcessName), process) {
				continue
			}
			filtered = append(filtered, conn)
		}
		set.Connections = filtered
	}
	c.JSON(http.StatusOK, set)
}

// GetConnectionStats returns the aggregate of the latest set.
func (cc *ConnectionsController) GetConnectionStats(c *gin.Context) {
	stats, ok := cc.state.ConnectionStats()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no connection data yet"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
