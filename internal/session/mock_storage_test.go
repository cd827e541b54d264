package session_test

import (
	"context"

	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/storage"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify/mock implementation of storage.Storage.
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) FindSession(ctx context.Context, customerID, agentID string) (*models.ChatSession, error) {
	args := m.Called(ctx, customerID, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockStorage) CreateSession(ctx context.Context, customerID, agentID string) (*models.ChatSession, error) {
	args := m.Called(ctx, customerID, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockStorage) GetSession(ctx context.Context, id uint) (*models.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockStorage) GetSessionStatus(ctx context.Context, id uint) (models.SessionStatus, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.SessionStatus), args.Error(1)
}

func (m *MockStorage) SetSessionStatus(ctx context.Context, id uint, status models.SessionStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockStorage) InsertMessage(ctx context.Context, sessionID uint, senderID, body string) (*models.Message, error) {
	args := m.Called(ctx, sessionID, senderID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) ListMessages(ctx context.Context, sessionID uint) ([]models.Message, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) ListAgents(ctx context.Context) ([]models.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Agent), args.Error(1)
}

func (m *MockStorage) ListCustomerSessions(ctx context.Context, agentID string) ([]models.CustomerQuery, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CustomerQuery), args.Error(1)
}

func (m *MockStorage) ListAllSessions(ctx context.Context) ([]models.SessionOverview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SessionOverview), args.Error(1)
}

// WithTx runs fn against the mock itself so expectations still apply.
func (m *MockStorage) WithTx(_ context.Context, fn func(storage.Storage) error) error {
	return fn(m)
}
