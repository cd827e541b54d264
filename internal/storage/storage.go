package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"supportdesk/backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a session for the same pair was created concurrently.
	ErrAlreadyExists = errors.New("record already exists")
)

// Storage is the durable session and message store.
type Storage interface {
	FindSession(ctx context.Context, customerID, agentID string) (*models.ChatSession, error)
	CreateSession(ctx context.Context, customerID, agentID string) (*models.ChatSession, error)
	GetSession(ctx context.Context, id uint) (*models.ChatSession, error)
	GetSessionStatus(ctx context.Context, id uint) (models.SessionStatus, error)
	SetSessionStatus(ctx context.Context, id uint, status models.SessionStatus) error

	InsertMessage(ctx context.Context, sessionID uint, senderID, body string) (*models.Message, error)
	ListMessages(ctx context.Context, sessionID uint) ([]models.Message, error)

	ListAgents(ctx context.Context) ([]models.Agent, error)
	ListCustomerSessions(ctx context.Context, agentID string) ([]models.CustomerQuery, error)
	ListAllSessions(ctx context.Context) ([]models.SessionOverview, error)

	// WithTx runs fn against a Storage bound to one transaction.
	WithTx(ctx context.Context, fn func(Storage) error) error
}

// Service is the gorm/Postgres Storage.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Migrate creates or updates the tables owned by the support desk.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.ChatSession{},
		&models.Message{},
	)
}

var _ Storage = (*Service)(nil)

// FindSession returns the session of a customer/agent pair.
func (s *Service) FindSession(ctx context.Context, customerID, agentID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.DB.WithContext(ctx).
		Where("customer_id = ? AND agent_id = ?", customerID, agentID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to find session for %s/%s: %v", customerID, agentID, err)
		return nil, err
	}
	return &session, nil
}

// CreateSession inserts an active session. A concurrent insert for the same
// pair loses on the unique index and gets ErrAlreadyExists.
func (s *Service) CreateSession(ctx context.Context, customerID, agentID string) (*models.ChatSession, error) {
	session := models.ChatSession{
		CustomerID: customerID,
		AgentID:    agentID,
		Status:     models.SessionActive,
	}
	if err := s.DB.WithContext(ctx).Create(&session).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		log.Printf("ERROR: Failed to create session for %s/%s: %v", customerID, agentID, err)
		return nil, err
	}
	return &session, nil
}

func (s *Service) GetSession(ctx context.Context, id uint) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.DB.WithContext(ctx).First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get session %d: %v", id, err)
		return nil, err
	}
	return &session, nil
}

func (s *Service) GetSessionStatus(ctx context.Context, id uint) (models.SessionStatus, error) {
	var statuses []models.SessionStatus
	if err := s.DB.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", id).
		Pluck("status", &statuses).Error; err != nil {
		log.Printf("ERROR: Failed to get status of session %d: %v", id, err)
		return "", err
	}
	if len(statuses) == 0 {
		return "", ErrNotFound
	}
	return statuses[0], nil
}

// SetSessionStatus overwrites the status. Setting the current value again is not an error.
func (s *Service) SetSessionStatus(ctx context.Context, id uint, status models.SessionStatus) error {
	result := s.DB.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		log.Printf("ERROR: Failed to set status of session %d: %v", id, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertMessage persists a message; sent_at is assigned here.
func (s *Service) InsertMessage(ctx context.Context, sessionID uint, senderID, body string) (*models.Message, error) {
	msg := models.Message{
		ChatSessionID: sessionID,
		SenderID:      senderID,
		Body:          body,
		SentAt:        time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for session %d: %v", sessionID, err)
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns the history of a session, oldest first.
func (s *Service) ListMessages(ctx context.Context, sessionID uint) ([]models.Message, error) {
	messages := []models.Message{}
	if err := s.DB.WithContext(ctx).
		Where("chat_session_id = ?", sessionID).
		Order("sent_at asc, id asc").
		Find(&messages).Error; err != nil {
		log.Printf("ERROR: Failed to get messages for session %d: %v", sessionID, err)
		return nil, err
	}
	return messages, nil
}

func (s *Service) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).
		Where("role = ?", models.RoleAgent).
		Order("name asc").
		Find(&users).Error; err != nil {
		log.Printf("ERROR: Failed to list agents: %v", err)
		return nil, err
	}

	agents := make([]models.Agent, 0, len(users))
	for _, u := range users {
		agents = append(agents, models.Agent{
			ID:          u.ID,
			Name:        u.Name,
			ProductName: u.ProductName,
			Products:    []string(u.Products),
		})
	}
	return agents, nil
}

// ListCustomerSessions returns an agent's sessions, newest first.
func (s *Service) ListCustomerSessions(ctx context.Context, agentID string) ([]models.CustomerQuery, error) {
	queries := []models.CustomerQuery{}
	err := s.DB.WithContext(ctx).
		Table("chat_sessions AS cs").
		Select("cs.id AS chat_session_id, cs.customer_id, COALESCE(u.name, '') AS customer_name, cs.status").
		Joins("LEFT JOIN users u ON u.id = cs.customer_id").
		Where("cs.agent_id = ?", agentID).
		Order("cs.created_at desc").
		Scan(&queries).Error
	if err != nil {
		log.Printf("ERROR: Failed to list sessions of agent %s: %v", agentID, err)
		return nil, err
	}
	return queries, nil
}

// ListAllSessions returns every session with participant names, newest first.
func (s *Service) ListAllSessions(ctx context.Context) ([]models.SessionOverview, error) {
	sessions := []models.SessionOverview{}
	err := s.DB.WithContext(ctx).
		Table("chat_sessions AS cs").
		Select(`cs.id, cs.status, cs.created_at,
			cs.customer_id, COALESCE(c.name, '') AS customer_name,
			cs.agent_id, COALESCE(a.name, '') AS agent_name, COALESCE(a.product_name, '') AS agent_product_name`).
		Joins("LEFT JOIN users c ON c.id = cs.customer_id").
		Joins("LEFT JOIN users a ON a.id = cs.agent_id").
		Order("cs.created_at desc").
		Scan(&sessions).Error
	if err != nil {
		log.Printf("ERROR: Failed to list all sessions: %v", err)
		return nil, err
	}
	return sessions, nil
}

func (s *Service) WithTx(ctx context.Context, fn func(Storage) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx})
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
