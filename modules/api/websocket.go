package api

import (
	"context"

	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/chat"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// handleWebSocket handles WebSocket connections at /ws. Frames from the
// client are dispatched to the session in arrival order; failures are
// logged and never reported back over the socket.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	username := c.Query("username")
	client := broadcast.NewClient(uuid.New().String(), username, c, m.config.QueueSize)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := client.WritePump(); err != nil {
			m.logger.Debug("WebSocket write failed", "clientID", client.ID(), "error", err)
		}
	}()
	// c is recycled once the handler returns; nothing may touch it after that.
	defer func() {
		client.Close()
		<-pumpDone
	}()

	ctx := context.Background()
	session, err := m.coordinator.Connect(ctx, username, client)
	if err != nil {
		m.logger.Error("WebSocket connect failed", "username", username, "error", err)
		return
	}
	defer session.Close()
	m.logger.Debug("WebSocket session opened", "clientID", client.ID(), "userID", session.User().ID)

	for {
		_, frame, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "clientID", client.ID(), "error", err)
			}
			return
		}

		env, err := chat.DecodeEnvelope(frame)
		if err != nil {
			m.logger.Warn("Ignoring malformed frame", "clientID", client.ID(), "error", err)
			continue
		}

		if err := session.Dispatch(ctx, env); err != nil {
			m.logger.Error("Event failed", "clientID", client.ID(), "event", env.Event, "error", err)
		}
	}
}
