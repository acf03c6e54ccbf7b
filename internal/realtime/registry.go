package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/events"
)

// BroadcastRoom addresses every connected session.
const BroadcastRoom = "*"

// SessionRoom addresses a single session. Replies such as message:sent
// travel through it so all delivery shares the dispatcher's ordering.
func SessionRoom(sessionID string) string {
	return "session:" + sessionID
}

// Registry tracks live sessions, the users behind them and the rooms
// they joined. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	users    map[uuid.UUID]map[string]*Session
	rooms    map[string]map[string]*Session
	joined   map[string]map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		users:    make(map[uuid.UUID]map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
		joined:   make(map[string]map[string]bool),
	}
}

// Add registers s and joins its personal rooms. It reports whether s is
// the user's first live session.
func (r *Registry) Add(s *Session) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return false
	}
	r.sessions[s.ID] = s
	byUser, ok := r.users[s.UserID]
	if !ok {
		byUser = make(map[string]*Session)
		r.users[s.UserID] = byUser
	}
	byUser[s.ID] = s
	r.joinLocked(s, SessionRoom(s.ID))
	r.joinLocked(s, events.UserRoom(s.UserID))
	return len(byUser) == 1
}

// Remove drops s from every room. removed is false when s was already
// gone; last reports that the user has no sessions left.
func (r *Registry) Remove(s *Session) (removed, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; !exists {
		return false, false
	}
	delete(r.sessions, s.ID)
	for room := range r.joined[s.ID] {
		r.leaveLocked(s, room)
	}
	delete(r.joined, s.ID)

	byUser := r.users[s.UserID]
	delete(byUser, s.ID)
	if len(byUser) == 0 {
		delete(r.users, s.UserID)
		return true, true
	}
	return true, false
}

// Join subscribes a registered session to room.
func (r *Registry) Join(s *Session, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; !exists {
		return false
	}
	r.joinLocked(s, room)
	return true
}

func (r *Registry) Leave(s *Session, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(s, room)
}

func (r *Registry) joinLocked(s *Session, room string) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		r.rooms[room] = members
	}
	members[s.ID] = s

	rooms, ok := r.joined[s.ID]
	if !ok {
		rooms = make(map[string]bool)
		r.joined[s.ID] = rooms
	}
	rooms[room] = true
}

func (r *Registry) leaveLocked(s *Session, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.joined[s.ID], room)
}

// Members returns the sessions currently in room.
func (r *Registry) Members(room string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if room == BroadcastRoom {
		out := make([]*Session, 0, len(r.sessions))
		for _, s := range r.sessions {
			out = append(out, s)
		}
		return out
	}
	members := r.rooms[room]
	out := make([]*Session, 0, len(members))
	for _, s := range members {
		out = append(out, s)
	}
	return out
}

// InRoom reports whether s has joined room.
func (r *Registry) InRoom(s *Session, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.joined[s.ID][room]
}

// Online reports whether userID has at least one live session.
func (r *Registry) Online(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// OnlineUsers lists every user with a live session.
func (r *Registry) OnlineUsers() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(r.users))
	for id := range r.users {
		out = append(out, id)
	}
	return out
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
