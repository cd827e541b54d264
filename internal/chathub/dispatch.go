package chathub

import (
	"context"
	"encoding/json"
	"log"

	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/models"
)

// Dispatch handles one frame received from c. It is the only entry point for
// client events; unknown events are answered with an error frame.
func (m *ManagerService) Dispatch(ctx context.Context, c Client, frame models.Frame) {
	switch frame.Event {
	case models.EventJoinChat:
		m.handleJoinChat(ctx, c, frame.Data)
	case models.EventJoinAgentRoom:
		m.handleJoinAgentRoom(c, frame.Data)
	case models.EventTyping:
		m.handleTyping(c, frame.Data)
	case models.EventSendMessage:
		m.handleSendMessage(c, frame.Data)
	default:
		m.reject(c, "unknown_event", "unsupported event "+frame.Event)
	}
}

func (m *ManagerService) handleJoinChat(ctx context.Context, c Client, data json.RawMessage) {
	var req models.JoinRequest
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == 0 {
		m.reject(c, "bad_request", models.ErrBadSessionRef.Error())
		return
	}
	sessionID := uint(req.SessionID)

	if m.Access != nil {
		ctx, cancel := context.WithTimeout(ctx, config.InflightTimeout)
		defer cancel()
		if err := m.Access.CanJoin(ctx, sessionID, c.GetPrincipal()); err != nil {
			log.Printf("WARNING: %s may not join session %d: %v", c.GetUserID(), sessionID, err)
			m.reject(c, "join_refused", err.Error())
			return
		}
	}
	m.join(c, models.SessionRoom(sessionID))
}

func (m *ManagerService) handleJoinAgentRoom(c Client, data json.RawMessage) {
	var req models.AgentRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.AgentID == "" {
		m.reject(c, "bad_request", "agent id is required")
		return
	}
	p := c.GetPrincipal()
	if p.Role != models.RoleAgent || req.AgentID != p.ID {
		m.reject(c, "join_refused", "agents may only join their own room")
		return
	}
	m.join(c, models.AgentRoom(p.ID))
}

func (m *ManagerService) handleTyping(c Client, data json.RawMessage) {
	var req models.TypingRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Session() == 0 {
		m.reject(c, "bad_request", models.ErrBadSessionRef.Error())
		return
	}
	sessionID := req.Session()

	frame, err := models.NewFrame(models.EventTypingStatus, models.TypingStatus{
		UserID:        c.GetUserID(),
		IsTyping:      req.IsTyping,
		SessionID:     sessionID,
		ChatSessionID: sessionID,
	})
	if err != nil {
		log.Printf("ERROR: Failed to encode typing status: %v", err)
		return
	}
	m.relay(c, models.SessionRoom(sessionID), frame)
}

func (m *ManagerService) handleSendMessage(c Client, data json.RawMessage) {
	var req models.RelayRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Session() == 0 {
		m.reject(c, "bad_request", models.ErrBadSessionRef.Error())
		return
	}
	if len(req.Message) == 0 || string(req.Message) == "null" {
		m.reject(c, "bad_request", "message is required")
		return
	}
	m.relay(c, models.SessionRoom(req.Session()), models.Frame{Event: models.EventNewMessage, Data: req.Message})
}

// reject answers c with an error frame.
func (m *ManagerService) reject(c Client, code, message string) {
	frame, err := models.NewFrame(models.EventError, models.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	m.reply(c, frame)
}
