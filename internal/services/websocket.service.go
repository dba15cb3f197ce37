package services

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketMessage is one frame exchanged with a stream client.
type WebSocketMessage struct {
	Type      string    `json:"type"` // snapshot, connections, alert, status
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// ClientConnection is a connected stream client.
type ClientConnection struct {
	ID   string
	Conn *websocket.Conn
	Send chan WebSocketMessage
}

const clientSendBuffer = 256

// NewClientConnection wraps an upgraded connection.
func NewClientConnection(id string, conn *websocket.Conn) *ClientConnection {
	return &ClientConnection{ID: id, Conn: conn, Send: make(chan WebSocketMessage, clientSendBuffer)}
}

// WebSocketHub fans published State events out to stream clients. Slow
// clients miss frames instead of stalling the hub.
type WebSocketHub struct {
	state      *State
	logger     *zap.Logger
	clients    map[string]*ClientConnection
	register   chan *ClientConnection
	unregister chan string
	done       chan struct{}
	mu         sync.RWMutex
}

func NewWebSocketHub(state *State, logger *zap.Logger) *WebSocketHub {
	return &WebSocketHub{
		state:      state,
		logger:     logger.Named("ws"),
		clients:    make(map[string]*ClientConnection),
		register:   make(chan *ClientConnection),
		unregister: make(chan string),
		done:       make(chan struct{}),
	}
}

// Run subscribes to the state and serves clients until ctx is done.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	events, cancel := h.state.Subscribe(DefaultSubscriberBuffer)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, exists := h.clients[client.ID]; exists {
				close(old.Send)
			}
			h.clients[client.ID] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", zap.String("client", client.ID), zap.Int("total", total))
			h.sendTo(client, h.currentSnapshot())

		case id := <-h.unregister:
			h.mu.Lock()
			if client, exists := h.clients[id]; exists {
				delete(h.clients, id)
				close(client.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", zap.String("client", id), zap.Int("total", total))

		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(WebSocketMessage{Type: string(ev.Type), Timestamp: ev.Timestamp, Data: ev.Data})
		}
	}
}

func (h *WebSocketHub) currentSnapshot() WebSocketMessage {
	snap, ok := h.state.Snapshot()
	if !ok {
		return WebSocketMessage{Type: string(EventStatus), Timestamp: time.Now(), Data: StatusPayload{Running: h.state.Running()}}
	}
	return WebSocketMessage{Type: string(EventSnapshot), Timestamp: snap.Timestamp, Data: snap}
}

func (h *WebSocketHub) broadcast(msg WebSocketMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.sendTo(client, msg)
	}
}

func (h *WebSocketHub) sendTo(client *ClientConnection, msg WebSocketMessage) {
	select {
	case client.Send <- msg:
	default:
		h.logger.Debug("client send buffer full, frame dropped", zap.String("client", client.ID))
	}
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *WebSocketHub) Register(client *ClientConnection) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *WebSocketHub) Unregister(clientID string) {
	select {
	case h.unregister <- clientID:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
