package handler

import (
	"log"
	"net/http"
	"time"

	"supportdesk/backend/internal/chathub"
	"supportdesk/backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ServeWebSocket authenticates the request, upgrades it and hands the
// connection to the hub. A failed handshake never reaches presence or rooms.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	p, err := h.Auth.Verify(tokenFromRequest(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Printf("WARNING: WebSocket upgrade failed for %s: %v", p.ID, err)
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn)
	if err := client.Authenticate(p); err != nil {
		conn.Close()
		return
	}
	if !h.Hub.Register(client) {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(config.WriteWait))
		conn.Close()
		return
	}
	client.Run()
}
