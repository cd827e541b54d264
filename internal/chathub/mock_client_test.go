package chathub_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"supportdesk/backend/internal/models"

	"github.com/stretchr/testify/require"
)

var connSeq atomic.Int64

// MockClient records frames delivered by the hub. Like the real client its
// send channel is closed on Close, so a send after close panics the test.
type MockClient struct {
	principal models.Principal
	connID    string
	send      chan models.Frame

	mu        sync.Mutex
	closed    bool
	closeCode int
	closeOnce sync.Once
}

func newMockClient(userID string, role models.Role) *MockClient {
	return newMockClientWithBuffer(userID, role, 32)
}

func newMockClientWithBuffer(userID string, role models.Role, size int) *MockClient {
	return &MockClient{
		principal: models.Principal{ID: userID, Role: role},
		connID:    fmt.Sprintf("%s-%d", userID, connSeq.Add(1)),
		send:      make(chan models.Frame, size),
	}
}

func (c *MockClient) GetUserID() string                   { return c.principal.ID }
func (c *MockClient) GetPrincipal() models.Principal      { return c.principal }
func (c *MockClient) GetConnID() string                   { return c.connID }
func (c *MockClient) GetSendChannel() chan<- models.Frame { return c.send }
func (c *MockClient) Run()                                {}

func (c *MockClient) Close(code int) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.closeCode = code
		c.mu.Unlock()
		close(c.send)
	})
}

func (c *MockClient) Closed() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}

// waitFor drains frames until one with event arrives.
func (c *MockClient) waitFor(t *testing.T, event string) models.Frame {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case f, ok := <-c.send:
			require.True(t, ok, "%s: channel closed while waiting for %s", c.principal.ID, event)
			if f.Event == event {
				return f
			}
		case <-timeout:
			t.Fatalf("%s: no %s frame within 1s", c.principal.ID, event)
			return models.Frame{}
		}
	}
}

// expectNone asserts no frame with event arrives within a short window.
func (c *MockClient) expectNone(t *testing.T, event string) {
	t.Helper()
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				return
			}
			require.NotEqual(t, event, f.Event, "%s: unexpected %s frame", c.principal.ID, event)
		case <-timeout:
			return
		}
	}
}

// drain discards whatever is queued right now.
func (c *MockClient) drain() {
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func decodeOnline(t *testing.T, f models.Frame) []string {
	t.Helper()
	var ids []string
	require.NoError(t, json.Unmarshal(f.Data, &ids))
	return ids
}
