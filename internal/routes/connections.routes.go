package routes

import (
	"hostpulse/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterConnectionRoutes(r *gin.Engine, cc *controllers.ConnectionsController) {
	connections := r.Group("/connections")
	{
		connections.GET("/", cc.GetConnections)
		connections.GET("/stats", cc.GetConnectionStats)
	}
}
