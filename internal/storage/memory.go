package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"supportdesk/backend/internal/models"
)

// MemoryStore is a process-local Storage used for development (STORAGE_DRIVER=memory)
// and by tests that need real store semantics without Postgres.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   uint
	nextMsg  uint
	sessions map[uint]*models.ChatSession
	messages map[uint][]models.Message
	users    map[string]models.User
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uint]*models.ChatSession),
		messages: make(map[uint][]models.Message),
		users:    make(map[string]models.User),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ Storage = (*MemoryStore)(nil)

// SaveUser adds or replaces a user row.
func (m *MemoryStore) SaveUser(user models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		_ = user.BeforeCreate(nil)
	}
	m.users[user.ID] = user
}

func (m *MemoryStore) FindSession(_ context.Context, customerID, agentID string) (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.findLocked(customerID, agentID); s != nil {
		copied := *s
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateSession(_ context.Context, customerID, agentID string) (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findLocked(customerID, agentID) != nil {
		return nil, ErrAlreadyExists
	}

	m.nextID++
	now := m.now()
	s := &models.ChatSession{
		ID:         m.nextID,
		CustomerID: customerID,
		AgentID:    agentID,
		Status:     models.SessionActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.sessions[s.ID] = s
	copied := *s
	return &copied, nil
}

func (m *MemoryStore) GetSession(_ context.Context, id uint) (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *MemoryStore) GetSessionStatus(_ context.Context, id uint) (models.SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return "", ErrNotFound
	}
	return s.Status, nil
}

func (m *MemoryStore) SetSessionStatus(_ context.Context, id uint, status models.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) InsertMessage(_ context.Context, sessionID uint, senderID, body string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	m.nextMsg++
	msg := models.Message{
		ID:            m.nextMsg,
		ChatSessionID: sessionID,
		SenderID:      senderID,
		Body:          body,
		SentAt:        m.now(),
	}
	m.messages[sessionID] = append(m.messages[sessionID], msg)
	return &msg, nil
}

func (m *MemoryStore) ListMessages(_ context.Context, sessionID uint) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Message{}, m.messages[sessionID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return out, nil
}

func (m *MemoryStore) ListAgents(_ context.Context) ([]models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agents := []models.Agent{}
	for _, u := range m.users {
		if u.Role != models.RoleAgent {
			continue
		}
		agents = append(agents, models.Agent{
			ID:          u.ID,
			Name:        u.Name,
			ProductName: u.ProductName,
			Products:    []string(u.Products),
		})
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

func (m *MemoryStore) ListCustomerSessions(_ context.Context, agentID string) ([]models.CustomerQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queries := []models.CustomerQuery{}
	for _, s := range m.newestFirstLocked() {
		if s.AgentID != agentID {
			continue
		}
		queries = append(queries, models.CustomerQuery{
			ChatSessionID: s.ID,
			CustomerID:    s.CustomerID,
			CustomerName:  m.users[s.CustomerID].Name,
			Status:        s.Status,
		})
	}
	return queries, nil
}

func (m *MemoryStore) ListAllSessions(_ context.Context) ([]models.SessionOverview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.SessionOverview{}
	for _, s := range m.newestFirstLocked() {
		agent := m.users[s.AgentID]
		out = append(out, models.SessionOverview{
			ID:               s.ID,
			Status:           s.Status,
			CreatedAt:        s.CreatedAt,
			CustomerID:       s.CustomerID,
			CustomerName:     m.users[s.CustomerID].Name,
			AgentID:          s.AgentID,
			AgentName:        agent.Name,
			AgentProductName: agent.ProductName,
		})
	}
	return out, nil
}

// WithTx runs fn directly; each MemoryStore call is already atomic.
func (m *MemoryStore) WithTx(_ context.Context, fn func(Storage) error) error {
	return fn(m)
}

func (m *MemoryStore) findLocked(customerID, agentID string) *models.ChatSession {
	for _, s := range m.sessions {
		if s.CustomerID == customerID && s.AgentID == agentID {
			return s
		}
	}
	return nil
}

func (m *MemoryStore) newestFirstLocked() []models.ChatSession {
	out := make([]models.ChatSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}
