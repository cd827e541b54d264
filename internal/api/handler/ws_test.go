package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"supportdesk/backend/internal/api/handler"
	"supportdesk/backend/internal/auth"
	"supportdesk/backend/internal/chathub"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/notify"
	"supportdesk/backend/internal/session"
	"supportdesk/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveEnv struct {
	server   *httptest.Server
	hub      *chathub.ManagerService
	sessions *session.Service
	verifier *auth.JWTVerifier
}

// newLiveEnv wires the real hub behind the dispatcher, as the server binary does.
func newLiveEnv(t *testing.T) *liveEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	sessions := session.NewService(store, nil)
	hub := chathub.NewManagerService(nil, sessions)
	sessions.Notifier = notify.NewDispatcher(hub)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	verifier := auth.NewJWTVerifier(testSecret, "")
	r := gin.New()
	handler.NewHandler(hub, sessions, verifier, nil, config.AppConfig{}).RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return &liveEnv{server: server, hub: hub, sessions: sessions, verifier: verifier}
}

func (e *liveEnv) dial(t *testing.T, id string, role models.Role) *websocket.Conn {
	t.Helper()
	tok, err := e.verifier.Issue(models.Principal{ID: id, Role: role}, time.Hour)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	f, err := models.NewFrame(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(f))
}

// join sends join_chat followed by an unknown event. A connection's frames are
// handled in order, so the error reply proves the join has been applied.
func join(t *testing.T, conn *websocket.Conn, sessionID uint) {
	t.Helper()
	send(t, conn, models.EventJoinChat, sessionID)
	send(t, conn, "sync", nil)
	var rejected models.ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, models.EventError).Data, &rejected))
	require.Equal(t, "unknown_event", rejected.Code)
}

// readUntil reads frames until one with event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) models.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f models.Frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", event)
		if f.Event == event {
			return f
		}
	}
}

func TestServeWebSocket_RejectsBadToken(t *testing.T) {
	env := newLiveEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=nope"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, env.hub.Online())
}

func TestServeWebSocket_PresenceAndRelay(t *testing.T) {
	env := newLiveEnv(t)
	ctx := context.Background()
	s, _, err := env.sessions.InitiateSession(ctx, "c1", "a1")
	require.NoError(t, err)

	customer := env.dial(t, "c1", models.RoleCustomer)
	readUntil(t, customer, models.EventOnlineUsers)
	agent := env.dial(t, "a1", models.RoleAgent)

	var online []string
	require.NoError(t, json.Unmarshal(readUntil(t, customer, models.EventOnlineUsers).Data, &online))
	assert.Equal(t, []string{"a1", "c1"}, online)

	join(t, customer, s.ID)
	join(t, agent, s.ID)

	send(t, customer, models.EventTyping, map[string]any{"chatSessionId": s.ID, "isTyping": true})
	var status models.TypingStatus
	require.NoError(t, json.Unmarshal(readUntil(t, agent, models.EventTypingStatus).Data, &status))
	assert.Equal(t, "c1", status.UserID)
	assert.True(t, status.IsTyping)

	send(t, agent, models.EventSendMessage, map[string]any{"chatSessionId": s.ID, "message": map[string]any{"id": 1, "message": "hi"}})
	got := readUntil(t, customer, models.EventNewMessage)
	assert.JSONEq(t, `{"id":1,"message":"hi"}`, string(got.Data))
}

func TestServeWebSocket_DurableEventsReachRoom(t *testing.T) {
	env := newLiveEnv(t)
	ctx := context.Background()

	agent := env.dial(t, "a1", models.RoleAgent)
	readUntil(t, agent, models.EventOnlineUsers)

	s, created, err := env.sessions.InitiateSession(ctx, "c1", "a1")
	require.NoError(t, err)
	require.True(t, created)
	var opened models.NewChatSession
	require.NoError(t, json.Unmarshal(readUntil(t, agent, models.EventNewChatSession).Data, &opened))
	assert.Equal(t, models.NewChatSession{ChatSessionID: s.ID, CustomerID: "c1"}, opened)

	join(t, agent, s.ID)

	require.NoError(t, env.sessions.ResolveSession(ctx, s.ID, "c1"))
	readUntil(t, agent, models.EventQueryResolved)

	_, err = env.sessions.SendMessage(ctx, s.ID, models.Principal{ID: "a1", Role: models.RoleAgent}, "still there?")
	require.NoError(t, err)
	var active models.SessionStatusChanged
	require.NoError(t, json.Unmarshal(readUntil(t, agent, models.EventQueryActive).Data, &active))
	assert.Equal(t, s.ID, active.ChatSessionID)
}

func TestServeWebSocket_NewerConnectionReplacesOlder(t *testing.T) {
	env := newLiveEnv(t)

	first := env.dial(t, "c1", models.RoleCustomer)
	readUntil(t, first, models.EventOnlineUsers)
	second := env.dial(t, "c1", models.RoleCustomer)
	readUntil(t, second, models.EventOnlineUsers)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	var err error
	for err == nil {
		_, _, err = first.ReadMessage()
	}
	assert.True(t, websocket.IsCloseError(err, config.ReplacedCode), "got %v", err)

	assert.Equal(t, []string{"c1"}, env.hub.Online())
}

func TestServeWebSocket_Disconnect(t *testing.T) {
	env := newLiveEnv(t)

	watcher := env.dial(t, "a1", models.RoleAgent)
	readUntil(t, watcher, models.EventOnlineUsers)
	leaving := env.dial(t, "c1", models.RoleCustomer)
	readUntil(t, leaving, models.EventOnlineUsers)

	require.NoError(t, leaving.Close())

	assert.Eventually(t, func() bool {
		online := env.hub.Online()
		return len(online) == 1 && online[0] == "a1"
	}, 3*time.Second, 20*time.Millisecond)
}
