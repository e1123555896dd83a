package domain

import "sync"

// RoomRegistry tracks which sessions are members of which room. Membership is
// ephemeral: created on join, destroyed on leave, disconnect or process
// restart. A session belongs to at most one room at a time.
type RoomRegistry struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]*Session
	current map[string]string // session ID -> room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:   make(map[string]map[string]*Session),
		current: make(map[string]string),
	}
}

// Join adds the session to room and returns the room it previously occupied,
// if any. The caller is responsible for announcing the implicit leave.
func (r *RoomRegistry) Join(s *Session, room string) (previous string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous = r.current[s.ID]
	if previous == room {
		return ""
	}
	if previous != "" {
		r.removeLocked(s.ID, previous)
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		r.rooms[room] = members
	}
	members[s.ID] = s
	r.current[s.ID] = room
	return previous
}

// Leave removes the session from room only if that is the room it is
// currently tracked in. Returns false (not an error) otherwise.
func (r *RoomRegistry) Leave(s *Session, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current[s.ID] != room {
		return false
	}
	r.removeLocked(s.ID, room)
	delete(r.current, s.ID)
	return true
}

// LeaveCurrent removes the session from whatever room it occupies.
func (r *RoomRegistry) LeaveCurrent(s *Session) (room string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok = r.current[s.ID]
	if !ok {
		return "", false
	}
	r.removeLocked(s.ID, room)
	delete(r.current, s.ID)
	return room, true
}

func (r *RoomRegistry) removeLocked(sessionID, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

func (r *RoomRegistry) Members(room string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Session, 0, len(r.rooms[room]))
	for _, s := range r.rooms[room] {
		members = append(members, s)
	}
	return members
}

// Count returns the live occupancy of room, zero if the room is unknown.
func (r *RoomRegistry) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[room])
}

func (r *RoomRegistry) CurrentRoom(s *Session) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.current[s.ID]
	return room, ok
}

func (r *RoomRegistry) ActiveRooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.rooms))
	for room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (r *RoomRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[string]map[string]*Session)
	r.current = make(map[string]string)
}
