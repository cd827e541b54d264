package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Realtime event names. Client→server: join_chat, join_agent_room, typing, send_message.
// Server→client: everything else.
const (
	EventJoinChat       = "join_chat"
	EventJoinAgentRoom  = "join_agent_room"
	EventTyping         = "typing"
	EventSendMessage    = "send_message"
	EventNewMessage     = "new_message"
	EventTypingStatus   = "typing_status"
	EventNewChatSession = "new_chat_session"
	EventQueryActive    = "query_active"
	EventQueryResolved  = "query_resolved"
	EventOnlineUsers    = "getOnlineUsers"
	EventError          = "error"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame encodes payload as the data of a frame.
func NewFrame(event string, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Frame{Event: event, Data: data}, nil
}

// SessionRoom is the broadcast group of one chat session.
func SessionRoom(sessionID uint) string {
	return fmt.Sprintf("session:%d", sessionID)
}

// AgentRoom is the broadcast group an agent listens on for new sessions.
func AgentRoom(agentID string) string {
	return "agent:" + agentID
}

// ErrBadSessionRef is returned when a session id cannot be decoded.
var ErrBadSessionRef = errors.New("session id must be a positive integer")

// SessionRef is a session id as sent by clients, either 42 or "42".
type SessionRef uint

func (r *SessionRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ErrBadSessionRef
		}
		b = []byte(s)
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil || id == 0 {
		return ErrBadSessionRef
	}
	*r = SessionRef(id)
	return nil
}

// JoinRequest is the data of a "join_chat" frame: a bare session id, or an
// object carrying sessionId or chatSessionId.
type JoinRequest struct {
	SessionID SessionRef
}

func (r *JoinRequest) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			SessionID     SessionRef `json:"sessionId"`
			ChatSessionID SessionRef `json:"chatSessionId"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		r.SessionID = obj.SessionID
		if r.SessionID == 0 {
			r.SessionID = obj.ChatSessionID
		}
		return nil
	}
	return r.SessionID.UnmarshalJSON(b)
}

// AgentRoomRequest is the data of a "join_agent_room" frame: the agent id as a
// bare string or {"agentId": "..."}.
type AgentRoomRequest struct {
	AgentID string
}

func (r *AgentRoomRequest) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			AgentID string `json:"agentId"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		r.AgentID = obj.AgentID
		return nil
	}
	return json.Unmarshal(b, &r.AgentID)
}

// TypingRequest is the data of a client "typing" frame. Older clients send
// chatSessionId instead of sessionId; either is accepted.
type TypingRequest struct {
	SessionID     SessionRef `json:"sessionId"`
	ChatSessionID SessionRef `json:"chatSessionId"`
	IsTyping      bool       `json:"isTyping"`
}

func (r TypingRequest) Session() uint {
	if r.SessionID != 0 {
		return uint(r.SessionID)
	}
	return uint(r.ChatSessionID)
}

// RelayRequest is the data of a client "send_message" frame. Message is relayed as-is.
type RelayRequest struct {
	SessionID     SessionRef      `json:"sessionId"`
	ChatSessionID SessionRef      `json:"chatSessionId"`
	Message       json.RawMessage `json:"message"`
}

func (r RelayRequest) Session() uint {
	if r.SessionID != 0 {
		return uint(r.SessionID)
	}
	return uint(r.ChatSessionID)
}

// TypingStatus is relayed to the other members of a session room.
type TypingStatus struct {
	UserID        string `json:"userId"`
	IsTyping      bool   `json:"isTyping"`
	SessionID     uint   `json:"sessionId"`
	ChatSessionID uint   `json:"chatSessionId"`
}

// NewChatSession is sent to the agent room when a customer opens a session.
type NewChatSession struct {
	ChatSessionID uint   `json:"chatSessionId"`
	CustomerID    string `json:"customerId"`
}

// SessionStatusChanged is the payload of query_active and query_resolved.
type SessionStatusChanged struct {
	ChatSessionID uint `json:"chatSessionId"`
}

// ErrorPayload is sent back to a client whose frame was rejected.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
