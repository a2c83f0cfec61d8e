package ws

import (
	"context"
	"strings"
	"sync"

	"github.com/bloghub/internal/logger"
)

// Hub is the live-update broker. It accepts connections, tracks room
// membership through the Registry, relays client-originated chat events and
// delivers server-originated events into rooms.
//
// Delivery is best-effort and at-most-once per connection: an emit into an
// empty room is dropped silently, because the durable record was already
// written by the store and the push channel is a latency optimization, not
// the system of record.
type Hub struct {
	mu       sync.RWMutex
	all      map[*Client]struct{}
	maxConns int

	registry *Registry

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(registry *Registry, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		all:        make(map[*Client]struct{}),
		maxConns:   maxConns,
		registry:   registry,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, len(h.all))
	for c := range h.all {
		allClients = append(allClients, c)
	}
	h.all = make(map[*Client]struct{})
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		h.registry.Leave(c)
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if len(h.all) >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	h.all[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.all, c)
	h.mu.Unlock()

	// Leave must run on every termination path or room membership leaks.
	// This holds even for clients rejected at the connection cap: their
	// readPump may have processed join_room before the rejection, so the
	// registry entry exists while the client was never tracked here.
	h.registry.Leave(c)

	// Network I/O outside the lock.
	c.Close()
}

// HandleEvent dispatches incoming WebSocket events.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, ev IncomingEvent) {
	switch ev.Type {
	case EventJoinRoom:
		h.handleJoinRoom(c, ev)
	case EventSendMessage:
		h.handleSendMessage(c, ev)
	default:
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: "unknown event type"})
	}
}

// handleJoinRoom attaches the connection to its user's room. A connection may
// only join the room of the identity it authenticated as.
func (h *Hub) handleJoinRoom(c *Client, ev IncomingEvent) {
	room := strings.TrimSpace(ev.Room)
	if room == "" {
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: "room required"})
		return
	}
	if room != c.userID {
		logger.Errorf("ws join_room refused user=%s room=%s", c.userID, room)
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: "cannot join another user's room"})
		return
	}
	h.registry.Join(c, c.userID)
}

// handleSendMessage relays a chat event verbatim to the receiver's room as
// receive_message. This is the fast, unreliable path; the authoritative write
// goes through POST /api/messages, and the two are reconciled client-side.
func (h *Hub) handleSendMessage(c *Client, ev IncomingEvent) {
	if _, joined := h.registry.RoomOf(c); !joined {
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: "join_room first"})
		return
	}
	if ev.ReceiverID == "" || strings.TrimSpace(ev.Text) == "" {
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: "receiver_id and text required"})
		return
	}
	out := OutgoingEvent{Type: EventReceiveMessage, Payload: RelayPayload{
		SenderID:   c.userID,
		ReceiverID: ev.ReceiverID,
		Text:       ev.Text,
	}}
	h.EmitToUser(ev.ReceiverID, out)
}

// EmitToUser delivers an event to every connection in the user's room and
// returns how many connections it was handed to. Zero means the room was
// empty and the event was dropped; callers must treat that as success since
// the durable record is the source of truth.
//
// Events emitted to the same room from one goroutine keep their emission
// order: each connection's send channel is FIFO and writePump drains it
// serially.
func (h *Hub) EmitToUser(userID string, ev OutgoingEvent) int {
	targets := h.registry.Resolve(userID)
	for _, c := range targets {
		h.sendToClient(c, ev)
	}
	return len(targets)
}

func (h *Hub) sendToClient(c *Client, ev OutgoingEvent) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
