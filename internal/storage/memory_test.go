package storage_test

import (
	"context"
	"sync"
	"testing"

	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_OneSessionPerPair(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first, err := store.CreateSession(ctx, "c1", "a1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, first.Status)

	_, err = store.CreateSession(ctx, "c1", "a1")
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	found, err := store.FindSession(ctx, "c1", "a1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = store.FindSession(ctx, "c1", "a2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemoryStore_StatusAndMissingSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s, err := store.CreateSession(ctx, "c1", "a1")
	require.NoError(t, err)

	require.NoError(t, store.SetSessionStatus(ctx, s.ID, models.SessionResolved))
	status, err := store.GetSessionStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionResolved, status)

	assert.ErrorIs(t, store.SetSessionStatus(ctx, 999, models.SessionActive), storage.ErrNotFound)
	_, err = store.GetSession(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.InsertMessage(ctx, 999, "c1", "hi")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemoryStore_MessagesOrderedUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s, err := store.CreateSession(ctx, "c1", "a1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "c1"
			if i%2 == 0 {
				sender = "a1"
			}
			_, err := store.InsertMessage(ctx, s.ID, sender, "msg")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	messages, err := store.ListMessages(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, messages, 50)
	for i := 1; i < len(messages); i++ {
		prev, cur := messages[i-1], messages[i]
		assert.False(t, cur.SentAt.Before(prev.SentAt), "messages must be ordered by sent_at")
		if cur.SentAt.Equal(prev.SentAt) {
			assert.Greater(t, cur.ID, prev.ID)
		}
	}
}

func TestMemoryStore_Projections(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.SaveUser(models.User{ID: "a1", Name: "Agent One", Role: models.RoleAgent, ProductName: "Tasks"})
	store.SaveUser(models.User{ID: "c1", Name: "Customer One", Role: models.RoleCustomer})
	store.SaveUser(models.User{ID: "c2", Name: "Customer Two", Role: models.RoleCustomer})

	older, err := store.CreateSession(ctx, "c1", "a1")
	require.NoError(t, err)
	newer, err := store.CreateSession(ctx, "c2", "a1")
	require.NoError(t, err)

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "Agent One", agents[0].Name)

	queries, err := store.ListCustomerSessions(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, newer.ID, queries[0].ChatSessionID)
	assert.Equal(t, "Customer Two", queries[0].CustomerName)
	assert.Equal(t, older.ID, queries[1].ChatSessionID)

	all, err := store.ListAllSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Tasks", all[0].AgentProductName)
}
