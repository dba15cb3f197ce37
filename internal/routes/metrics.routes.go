package routes

import (
	"hostpulse/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterMonitorRoutes(r *gin.Engine, mc *controllers.MetricsController) {
	metrics := r.Group("/metrics")
	{
		metrics.GET("/", mc.GetSnapshot)
		metrics.GET("/history", mc.GetHistory)
		metrics.GET("/bandwidth", mc.GetBandwidth)
	}
}
