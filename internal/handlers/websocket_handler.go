package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/timelapser/server/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now - can be restricted in production
		return true
	},
}

// WebSocketHandler handles WebSocket connections for dashboard push updates
type WebSocketHandler struct {
	hub *services.WebSocketHub
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleConnection upgrades HTTP to WebSocket and manages the connection.
// Clients start subscribed to the all-cameras topic and can narrow or widen
// their subscriptions with subscribe/unsubscribe messages.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	clientID := uuid.New().String()
	client := h.hub.NewClient(clientID, conn)

	h.hub.Register(client)
	h.hub.Subscribe(client, services.TopicCameras)

	// Start the write pump in a goroutine
	go client.WritePump()

	// Run the read pump (blocks until connection closes)
	client.ReadPump(h.handleMessage)
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg services.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Type {
	case services.WSTypeSubscribe:
		if topic, ok := msg.Payload.(string); ok && topic != "" {
			h.hub.Subscribe(client, topic)
		}
	case services.WSTypeUnsubscribe:
		if topic, ok := msg.Payload.(string); ok && topic != "" {
			h.hub.Unsubscribe(client, topic)
		}
	case services.WSTypePing:
		reply, err := json.Marshal(services.WSMessage{Type: services.WSTypePong})
		if err != nil {
			return
		}
		select {
		case client.Send <- reply:
		default:
		}
	}
}
