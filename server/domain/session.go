package domain

import "time"

// Conn is a live connection handle. Send must not block the caller; slow
// consumers drop events rather than stall a broadcast.
type Conn interface {
	Send(event Event) error
	Close() error
}

// Session ties a connection to the user and room it currently serves.
// Username and Room are written only from the connection's own read loop;
// registries keep their own indexes and never mutate the session.
type Session struct {
	ID       string
	Username string
	Room     string
	Conn     Conn
	JoinedAt time.Time
	Remote   string
}

func NewSession(id, remote string, conn Conn) *Session {
	return &Session{
		ID:       id,
		Conn:     conn,
		JoinedAt: time.Now().UTC(),
		Remote:   remote,
	}
}

func (s *Session) String() string {
	if s.Username == "" {
		return "anonymous#" + s.ID
	}
	return s.Username + "#" + s.ID
}
