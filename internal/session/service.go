// Package session owns the chat session lifecycle and message persistence.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/notify"
	"supportdesk/backend/internal/storage"
)

// Service is the session manager. Every state change is persisted first and
// only then handed to the notifier. Both steps run under a per-session lock,
// so broadcasts in one room follow commit order.
type Service struct {
	Storage  storage.Storage
	Notifier notify.Notifier

	locks keyedMutex
}

func NewService(s storage.Storage, n notify.Notifier) *Service {
	return &Service{Storage: s, Notifier: n}
}

// MessageHistory is the result of a message listing.
type MessageHistory struct {
	Status   models.SessionStatus
	Messages []models.Message
}

// InitiateSession returns the session of the pair, creating it if needed.
// created reports whether this call created it; only then is the agent notified.
func (s *Service) InitiateSession(ctx context.Context, customerID, agentID string) (*models.ChatSession, bool, error) {
	if customerID == "" {
		return nil, false, ErrUnauthenticated
	}
	if strings.TrimSpace(agentID) == "" {
		return nil, false, fmt.Errorf("%w: agentId is required", ErrInvalidInput)
	}

	unlock := s.locks.Lock("pair:" + customerID + ":" + agentID)
	defer unlock()

	existing, err := s.Storage.FindSession(ctx, customerID, agentID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	created, err := s.Storage.CreateSession(ctx, customerID, agentID)
	if errors.Is(err, storage.ErrAlreadyExists) {
		// Lost the race against another instance; the winner already notified.
		existing, err = s.Storage.FindSession(ctx, customerID, agentID)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	log.Printf("INFO: Chat session %d opened by %s with agent %s", created.ID, customerID, agentID)
	s.Notifier.Notify(models.AgentRoom(agentID), models.EventNewChatSession, models.NewChatSession{
		ChatSessionID: created.ID,
		CustomerID:    customerID,
	})
	return created, true, nil
}

// SendMessage persists a message and reactivates the session. The body itself
// is not broadcast; clients relay it over the realtime channel.
// Admins may post into any session; customers and agents only into their own.
func (s *Service) SendMessage(ctx context.Context, sessionID uint, sender models.Principal, body string) (*models.Message, error) {
	if sender.ID == "" {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sender.Role != models.RoleAdmin && !session.HasParticipant(sender.ID) {
		return nil, ErrForbidden
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	var msg *models.Message
	err = s.Storage.WithTx(ctx, func(tx storage.Storage) error {
		var err error
		if msg, err = tx.InsertMessage(ctx, sessionID, sender.ID, body); err != nil {
			return err
		}
		return tx.SetSessionStatus(ctx, sessionID, models.SessionActive)
	})
	if err != nil {
		return nil, s.storageErr(err)
	}

	s.Notifier.Notify(models.SessionRoom(sessionID), models.EventQueryActive, models.SessionStatusChanged{ChatSessionID: sessionID})
	return msg, nil
}

// ListMessages returns the history of a session to one of its participants.
func (s *Service) ListMessages(ctx context.Context, sessionID uint, requesterID string) (*MessageHistory, error) {
	if requesterID == "" {
		return nil, ErrUnauthenticated
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(requesterID) {
		return nil, ErrForbidden
	}

	messages, err := s.Storage.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &MessageHistory{Status: session.Status, Messages: messages}, nil
}

// ListMessagesForAdmin skips the participant check. An unknown session yields
// status "unknown" and no messages rather than an error.
func (s *Service) ListMessagesForAdmin(ctx context.Context, sessionID uint) (*MessageHistory, error) {
	status, err := s.Storage.GetSessionStatus(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return &MessageHistory{Status: models.SessionUnknown, Messages: []models.Message{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	messages, err := s.Storage.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &MessageHistory{Status: status, Messages: messages}, nil
}

// ResolveSession marks the session resolved. Resolving twice is allowed and
// notifies both times.
func (s *Service) ResolveSession(ctx context.Context, sessionID uint, requesterID string) error {
	if requesterID == "" {
		return ErrUnauthenticated
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.CustomerID != requesterID {
		return ErrForbidden
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	if err := s.Storage.SetSessionStatus(ctx, sessionID, models.SessionResolved); err != nil {
		return s.storageErr(err)
	}

	log.Printf("INFO: Chat session %d resolved by %s", sessionID, requesterID)
	s.Notifier.Notify(models.SessionRoom(sessionID), models.EventQueryResolved, models.SessionStatusChanged{ChatSessionID: sessionID})
	return nil
}

func (s *Service) ListAgents(ctx context.Context) ([]models.Agent, error) {
	agents, err := s.Storage.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return agents, nil
}

func (s *Service) ListCustomerQueries(ctx context.Context, agentID string) ([]models.CustomerQuery, error) {
	if agentID == "" {
		return nil, ErrUnauthenticated
	}
	queries, err := s.Storage.ListCustomerSessions(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return queries, nil
}

func (s *Service) ListAllSessions(ctx context.Context) ([]models.SessionOverview, error) {
	sessions, err := s.Storage.ListAllSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return sessions, nil
}

// CanJoin reports whether p may join the realtime room of a session.
// Participants and admins may; everybody else gets ErrForbidden.
func (s *Service) CanJoin(ctx context.Context, sessionID uint, p models.Principal) error {
	if p.ID == "" {
		return ErrUnauthenticated
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if p.Role == models.RoleAdmin || session.HasParticipant(p.ID) {
		return nil
	}
	return ErrForbidden
}

func (s *Service) lockSession(sessionID uint) func() {
	return s.locks.Lock("session:" + strconv.FormatUint(uint64(sessionID), 10))
}

func (s *Service) getSession(ctx context.Context, sessionID uint) (*models.ChatSession, error) {
	if sessionID == 0 {
		return nil, ErrNotFound
	}
	session, err := s.Storage.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return session, nil
}

func (s *Service) storageErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
