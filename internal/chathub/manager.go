package chathub

import (
	"context"
	"log"

	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/presence"

	"github.com/gorilla/websocket"
)

// RoomAuthorizer decides whether a principal may join a session room.
type RoomAuthorizer interface {
	CanJoin(ctx context.Context, sessionID uint, p models.Principal) error
}

type opKind int

const (
	opJoin opKind = iota
	opBroadcast
	opRelay
	opReply
)

// hubOp is one unit of work for the Run loop. Joins and deliveries share a
// queue so a connection's join is always applied before its next relay.
type hubOp struct {
	kind   opKind
	client Client
	room   string
	frame  models.Frame
}

// ManagerService is the realtime gateway hub. Room membership lives only in
// the Run goroutine; presence is shared through the registry.
type ManagerService struct {
	Presence *presence.Registry[Client]
	Access   RoomAuthorizer

	RegisterCh   chan Client
	UnregisterCh chan Client

	ops  chan hubOp
	done chan struct{}

	rooms       map[string]map[Client]struct{}
	memberships map[Client]map[string]struct{}
	slow        map[Client]struct{}
}

func NewManagerService(registry *presence.Registry[Client], access RoomAuthorizer) *ManagerService {
	if registry == nil {
		registry = presence.NewRegistry[Client](nil)
	}
	return &ManagerService{
		Presence:     registry,
		Access:       access,
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		ops:          make(chan hubOp, config.HubQueueSize),
		done:         make(chan struct{}),
		rooms:        make(map[string]map[Client]struct{}),
		memberships:  make(map[Client]map[string]struct{}),
		slow:         make(map[Client]struct{}),
	}
}

// Run processes hub events until ctx is cancelled, then closes every live connection.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)
	log.Println("INFO: Realtime hub started")

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case c := <-m.RegisterCh:
			m.register(c)
		case c := <-m.UnregisterCh:
			m.unregister(c)
		case op := <-m.ops:
			m.apply(op)
		}
		m.evictSlow()
	}
}

// Register hands an authenticated connection to the hub.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister is called once a connection's read side has ended.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Broadcast delivers event to every member of room. It is the primitive the
// notification dispatcher forwards durable session events to.
func (m *ManagerService) Broadcast(room, event string, payload any) {
	frame, err := models.NewFrame(event, payload)
	if err != nil {
		log.Printf("ERROR: Failed to encode %s for %s: %v", event, room, err)
		return
	}
	m.enqueue(hubOp{kind: opBroadcast, room: room, frame: frame})
}

// Online returns the ids of principals with a live connection.
func (m *ManagerService) Online() []string {
	return m.Presence.Snapshot()
}

func (m *ManagerService) join(c Client, room string) {
	m.enqueue(hubOp{kind: opJoin, client: c, room: room})
}

func (m *ManagerService) relay(from Client, room string, frame models.Frame) {
	m.enqueue(hubOp{kind: opRelay, client: from, room: room, frame: frame})
}

func (m *ManagerService) reply(c Client, frame models.Frame) {
	m.enqueue(hubOp{kind: opReply, client: c, frame: frame})
}

func (m *ManagerService) enqueue(op hubOp) {
	select {
	case m.ops <- op:
	case <-m.done:
	}
}

func (m *ManagerService) register(c Client) {
	userID := c.GetUserID()
	previous, replaced := m.Presence.Register(userID, c)
	if replaced {
		log.Printf("INFO: Connection %s of %s replaced by %s", previous.GetConnID(), userID, c.GetConnID())
		m.dropMemberships(previous)
		delete(m.slow, previous)
		previous.Close(config.ReplacedCode)
	}

	if c.GetPrincipal().Role == models.RoleAgent {
		m.addMember(models.AgentRoom(userID), c)
	}
	log.Printf("INFO: %s connected (%s)", userID, c.GetConnID())
	m.broadcastOnline()
}

func (m *ManagerService) unregister(c Client) {
	m.dropMemberships(c)
	delete(m.slow, c)
	current := m.Presence.Unregister(c.GetUserID(), c)
	c.Close(websocket.CloseNormalClosure)
	if !current {
		// A replaced connection going away does not change who is online.
		return
	}
	log.Printf("INFO: %s disconnected (%s)", c.GetUserID(), c.GetConnID())
	m.broadcastOnline()
}

func (m *ManagerService) apply(op hubOp) {
	switch op.kind {
	case opJoin:
		if !m.Presence.IsCurrent(op.client.GetUserID(), op.client) {
			return
		}
		m.addMember(op.room, op.client)

	case opBroadcast:
		for c := range m.rooms[op.room] {
			m.send(c, op.frame)
		}

	case opRelay:
		if _, ok := m.rooms[op.room][op.client]; !ok {
			m.replyError(op.client, "not_joined", "join the session before sending to it")
			return
		}
		for c := range m.rooms[op.room] {
			if c != op.client {
				m.send(c, op.frame)
			}
		}

	case opReply:
		if m.Presence.IsCurrent(op.client.GetUserID(), op.client) {
			m.send(op.client, op.frame)
		}
	}
}

func (m *ManagerService) broadcastOnline() {
	frame, err := models.NewFrame(models.EventOnlineUsers, m.Presence.Snapshot())
	if err != nil {
		log.Printf("ERROR: Failed to encode online users: %v", err)
		return
	}
	for _, c := range m.Presence.Handles() {
		m.send(c, frame)
	}
}

func (m *ManagerService) replyError(c Client, code, message string) {
	if !m.Presence.IsCurrent(c.GetUserID(), c) {
		return
	}
	frame, err := models.NewFrame(models.EventError, models.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	m.send(c, frame)
}

// send never blocks the loop. A client whose buffer is full is marked slow
// and disconnected once the current event has been handled.
func (m *ManagerService) send(c Client, frame models.Frame) {
	if _, ok := m.slow[c]; ok {
		return
	}
	select {
	case c.GetSendChannel() <- frame:
	default:
		log.Printf("WARNING: Send buffer of %s (%s) is full, dropping connection", c.GetUserID(), c.GetConnID())
		m.slow[c] = struct{}{}
	}
}

func (m *ManagerService) evictSlow() {
	for len(m.slow) > 0 {
		for c := range m.slow {
			m.unregister(c)
			break
		}
	}
}

func (m *ManagerService) addMember(room string, c Client) {
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[Client]struct{})
		m.rooms[room] = members
	}
	members[c] = struct{}{}

	joined, ok := m.memberships[c]
	if !ok {
		joined = make(map[string]struct{})
		m.memberships[c] = joined
	}
	joined[room] = struct{}{}
}

func (m *ManagerService) dropMemberships(c Client) {
	for room := range m.memberships[c] {
		delete(m.rooms[room], c)
		if len(m.rooms[room]) == 0 {
			delete(m.rooms, room)
		}
	}
	delete(m.memberships, c)
}

func (m *ManagerService) shutdown() {
	for _, c := range m.Presence.Handles() {
		m.dropMemberships(c)
		m.Presence.Unregister(c.GetUserID(), c)
		c.Close(websocket.CloseGoingAway)
	}
	log.Println("INFO: Realtime hub stopped")
}
