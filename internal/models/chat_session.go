package models

import "time"

// SessionStatus is the lifecycle state of a ChatSession.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionResolved SessionStatus = "resolved"
	// SessionUnknown is only reported by the admin listing for ids with no session row.
	SessionUnknown SessionStatus = "unknown"
)

// ChatSession is a persistent conversation between one customer and one agent.
// The unique index on (customer_id, agent_id) keeps a single session per pair.
type ChatSession struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	CustomerID string        `gorm:"type:text;not null;uniqueIndex:idx_session_pair,priority:1" json:"customer_id"`
	AgentID    string        `gorm:"type:text;not null;uniqueIndex:idx_session_pair,priority:2;index" json:"agent_id"`
	Status     SessionStatus `gorm:"type:text;not null;default:active" json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// HasParticipant reports whether userID is the customer or the agent of the session.
func (s *ChatSession) HasParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return s.CustomerID == userID || s.AgentID == userID
}

// Message is one immutable chat line. Replay order is (sent_at, id) ascending.
type Message struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ChatSessionID uint      `gorm:"not null;index:idx_message_replay,priority:1" json:"chat_session_id"`
	SenderID      string    `gorm:"type:text;not null" json:"sender_id"`
	Body          string    `gorm:"column:message;type:text;not null" json:"message"`
	SentAt        time.Time `gorm:"not null;index:idx_message_replay,priority:2" json:"sent_at"`
}

// Agent is the customer-facing projection of an agent account.
type Agent struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ProductName string   `json:"product_name"`
	Products    []string `json:"products"`
}

// CustomerQuery is one row of an agent's inbox.
type CustomerQuery struct {
	ChatSessionID uint          `json:"chat_session_id"`
	CustomerID    string        `json:"customer_id"`
	CustomerName  string        `json:"customer_name"`
	Status        SessionStatus `json:"status"`
}

// SessionOverview is one row of the admin session listing.
type SessionOverview struct {
	ID               uint          `json:"id"`
	Status           SessionStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	CustomerID       string        `json:"customer_id"`
	CustomerName     string        `json:"customer_name"`
	AgentID          string        `json:"agent_id"`
	AgentName        string        `json:"agent_name"`
	AgentProductName string        `json:"agent_product_name"`
}
