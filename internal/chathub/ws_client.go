package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnState is the lifecycle of a websocket connection.
type ConnState int32

const (
	StateHandshaking ConnState = iota
	StateAuthenticated
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var ErrNotHandshaking = errors.New("connection is not in the handshaking state")

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	ConnID    string
	Principal models.Principal
	Conn      *websocket.Conn
	Hub       *ManagerService
	Send      chan models.Frame

	state     atomic.Int32
	closeCode atomic.Int32
	closeOnce sync.Once
}

// NewWebSocketClient wraps an upgraded connection. It starts in StateHandshaking
// and must be authenticated before it is registered with the hub.
func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		ConnID: uuid.NewString(),
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.Frame, config.SendBufferSize),
	}
}

// Authenticate binds the connection to p and moves it to StateAuthenticated.
func (c *WebSocketClient) Authenticate(p models.Principal) error {
	if !c.state.CompareAndSwap(int32(StateHandshaking), int32(StateAuthenticated)) {
		return ErrNotHandshaking
	}
	c.Principal = p
	return nil
}

func (c *WebSocketClient) State() ConnState { return ConnState(c.state.Load()) }

func (c *WebSocketClient) GetUserID() string                   { return c.Principal.ID }
func (c *WebSocketClient) GetPrincipal() models.Principal      { return c.Principal }
func (c *WebSocketClient) GetConnID() string                   { return c.ConnID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Frame { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which makes writePump send a close frame with code.
func (c *WebSocketClient) Close(code int) {
	c.closeOnce.Do(func() {
		c.closeCode.Store(int32(code))
		c.state.Store(int32(StateClosed))
		close(c.Send)
	})
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WARNING: Read error on %s (%s): %v", c.GetUserID(), c.ConnID, err)
			}
			return
		}
		if c.State() != StateAuthenticated {
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
			c.Hub.reject(c, "bad_frame", "frames must be {\"event\", \"data\"} objects")
			continue
		}
		c.Hub.Dispatch(context.Background(), c, frame)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				code := int(c.closeCode.Load())
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, closeReason(code)))
				return
			}
			if err := c.Conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func closeReason(code int) string {
	switch code {
	case config.ReplacedCode:
		return "replaced by a newer connection"
	case websocket.CloseGoingAway:
		return "server shutting down"
	}
	return ""
}
