package routes

import (
	"hostpulse/internal/config"
	"hostpulse/internal/controllers"
	"hostpulse/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Deps are the handlers and guards the router is assembled from.
type Deps struct {
	Metrics     *controllers.MetricsController
	Connections *controllers.ConnectionsController
	Alerts      *controllers.AlertsController
	WebSocket   *controllers.WebSocketController
	Security    *middleware.SecurityLogger
	Limiter     *middleware.RateLimiter
}

// NewRouter builds the read-only HTTP surface.
func NewRouter(cfg config.Server, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.IPWhitelistMiddleware(middleware.NewIPWhitelist(cfg.AllowedIPs), d.Security))
	r.Use(middleware.RateLimitMiddleware(d.Limiter, d.Security))

	RegisterMonitorRoutes(r, d.Metrics)
	RegisterConnectionRoutes(r, d.Connections)
	RegisterAlertRoutes(r, d.Alerts)
	if d.WebSocket != nil {
		RegisterAuthRoutes(r, d.WebSocket)
	}
	return r
}
