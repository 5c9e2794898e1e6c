package chat

import "sync"

// roomTable maps conversation channels and private per-user channels to the
// connections subscribed to them. Keyed by connection, not user: every
// device of a multi-device user holds its own subscriptions. Mutations are
// atomic with respect to broadcasts, which iterate a snapshot.
type roomTable struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool // conversation id -> connections
	users map[string]map[*Client]bool // user id -> connections (private channel)
}

func newRoomTable() *roomTable {
	return &roomTable{
		rooms: map[string]map[*Client]bool{},
		users: map[string]map[*Client]bool{},
	}
}

func (t *roomTable) addUserConn(c *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.users[c.UserID] == nil {
		t.users[c.UserID] = map[*Client]bool{}
	}
	t.users[c.UserID][c] = true
}

func (t *roomTable) subscribe(c *Client, conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rooms[conversationID] == nil {
		t.rooms[conversationID] = map[*Client]bool{}
	}
	t.rooms[conversationID][c] = true
}

// dropConn removes the connection from every channel it is subscribed to.
// Reports whether the connection was still registered, so a duplicate
// unregister cannot double-count a presence transition.
func (t *roomTable) dropConn(c *Client) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for room, conns := range t.rooms {
		delete(conns, c)
		if len(conns) == 0 {
			delete(t.rooms, room)
		}
	}
	conns, ok := t.users[c.UserID]
	if !ok || !conns[c] {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(t.users, c.UserID)
	}
	return true
}

// roomConns snapshots a conversation channel's subscribers, optionally
// excluding one user's connections.
func (t *roomTable) roomConns(conversationID, excludeUser string) []*Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Client, 0, len(t.rooms[conversationID]))
	for c := range t.rooms[conversationID] {
		if excludeUser != "" && c.UserID == excludeUser {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (t *roomTable) userConns(userID string) []*Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Client, 0, len(t.users[userID]))
	for c := range t.users[userID] {
		out = append(out, c)
	}
	return out
}

// allConns snapshots every connection, optionally excluding one user's.
func (t *roomTable) allConns(excludeUser string) []*Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Client
	for userID, conns := range t.users {
		if excludeUser != "" && userID == excludeUser {
			continue
		}
		for c := range conns {
			out = append(out, c)
		}
	}
	return out
}
