package routes

import (
	"hostpulse/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes registers the WebSocket stream only.
// Tokens are issued from the CLI (hostpulse -token <name>), never over HTTP.
func RegisterAuthRoutes(r *gin.Engine, ws *controllers.WebSocketController) {
	r.GET("/ws", ws.HandleWebSocket)
}
