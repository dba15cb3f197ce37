package routes

import (
	"hostpulse/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterAlertRoutes(r *gin.Engine, ac *controllers.AlertsController) {
	alerts := r.Group("/alerts")
	{
		alerts.GET("/", ac.GetAlerts)
		alerts.POST("/:id/ack", ac.AcknowledgeAlert)
	}

	export := r.Group("/export")
	{
		export.GET("/history", ac.ExportHistory)
		export.GET("/alerts", ac.ExportAlerts)
	}
}
