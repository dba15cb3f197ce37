package controllers

import (
	"net/http"
	"time"

	"hostpulse/internal/middleware"
	"hostpulse/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMsgSize = 4096
)

// TokenValidator checks stream access tokens.
type TokenValidator interface {
	Validate(token string) (*services.TokenClaims, error)
}

type WebSocketController struct {
	hub       *services.WebSocketHub
	tokens    TokenValidator
	security  *middleware.SecurityLogger
	validator *middleware.InputValidator
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

func NewWebSocketController(hub *services.WebSocketHub, tokens TokenValidator, security *middleware.SecurityLogger, logger *zap.Logger) *WebSocketController {
	return &WebSocketController{
		hub:       hub,
		tokens:    tokens,
		security:  security,
		validator: middleware.NewInputValidator(),
		logger:    logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// token auth gates the stream; origins are checked by the CORS layer
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket upgrades an authenticated request into an event stream.
// The token comes from ?token= or an Authorization: Bearer header.
func (wc *WebSocketController) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if h := c.GetHeader("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
			token = h[7:]
		}
	}
	if token == "" {
		wc.security.LogFailedAuth(c.ClientIP(), "missing token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	if !wc.validator.ValidateToken(token) {
		wc.security.LogFailedAuth(c.ClientIP(), "malformed token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	claims, err := wc.tokens.Validate(token)
	if err != nil {
		wc.security.LogFailedAuth(c.ClientIP(), err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ws, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wc.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	wc.security.LogWebSocketConnected(c.ClientIP(), claims.ClientName)

	client := services.NewClientConnection(claims.ClientName+"-"+uuid.NewString(), ws)
	if !wc.hub.Register(client) {
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		ws.Close()
		return
	}

	go wc.writePump(client)
	go wc.readPump(client, c.ClientIP())
}

// readPump drains client frames and answers pings until the socket closes.
func (wc *WebSocketController) readPump(client *services.ClientConnection, ip string) {
	defer func() {
		wc.hub.Unregister(client.ID)
		wc.security.LogWebSocketDisconnected(ip, client.ID)
	}()

	client.Conn.SetReadLimit(maxMsgSize)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg services.WebSocketMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wc.logger.Debug("read error", zap.String("client", client.ID), zap.Error(err))
			}
			return
		}
		_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "ping", "pong":
			// any frame keeps the connection alive
		case "unsubscribe":
			return
		default:
			wc.logger.Debug("unknown message type", zap.String("client", client.ID), zap.String("type", msg.Type))
		}
	}
}

// writePump is the only writer of the connection. It also sends control
// pings so idle clients keep the read deadline moving.
func (wc *WebSocketController) writePump(client *services.ClientConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				wc.logger.Debug("write error", zap.String("client", client.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
