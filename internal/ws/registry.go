package ws

import "sync"

// Registry maps a user identity to the set of live connections currently in
// that user's room. It is the single piece of shared mutable state touched by
// every connection lifecycle, so all access goes through the lock.
//
// Membership is indexed both ways (room -> connections, connection -> room)
// so Leave needs only the connection and is reachable from every disconnect
// path, including abnormal transport closure.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	conns map[*Client]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[*Client]struct{}),
		conns: make(map[*Client]string),
	}
}

// Join associates a connection with a user's room. A connection belongs to at
// most one room; re-joining moves it. Rooms are created implicitly.
func (r *Registry) Join(c *Client, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.conns[c]; ok {
		r.removeLocked(c, prev)
	}
	room, ok := r.rooms[userID]
	if !ok {
		room = make(map[*Client]struct{})
		r.rooms[userID] = room
	}
	room[c] = struct{}{}
	r.conns[c] = userID
}

// Leave removes the connection from its room, dropping the room once empty.
// Safe to call for connections that never joined.
func (r *Registry) Leave(c *Client) (userID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok = r.conns[c]
	if !ok {
		return "", false
	}
	r.removeLocked(c, userID)
	return userID, true
}

func (r *Registry) removeLocked(c *Client, userID string) {
	delete(r.conns, c)
	if room, ok := r.rooms[userID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(r.rooms, userID)
		}
	}
}

// Resolve returns a snapshot of the connections currently in the user's
// room; empty when nobody is connected.
func (r *Registry) Resolve(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[userID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(room))
	for c := range room {
		out = append(out, c)
	}
	return out
}

// RoomOf returns the room the connection has joined, if any.
func (r *Registry) RoomOf(c *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.conns[c]
	return userID, ok
}

// Connections returns the number of joined connections across all rooms.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
