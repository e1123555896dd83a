package usecase

import (
	"fmt"

	"github.com/zmahdi/wasla/server/domain"
)

// JoinRoom makes the session the live connection for username, moves it into
// room, replays history to the joiner only, announces the join to the rest of
// the room and tells the user's friends they came online.
func (u *Usecase) JoinRoom(s *domain.Session, username, room string) error {
	if username == "" || room == "" {
		return fmt.Errorf("%w: username and room are required", domain.ErrInvalidArgument)
	}
	u.releaseIdentity(s, username)
	s.Username = username

	if displaced := u.presence.Register(username, s); displaced != nil {
		if prevRoom, ok := u.rooms.LeaveCurrent(displaced); ok {
			u.announceOccupancy(prevRoom)
		}
		if err := displaced.Conn.Close(); err != nil {
			u.logger.Warn("failed to close displaced connection", "user", username, "err", err)
		}
		u.logger.Info("replaced live connection", "user", username, "session", s.ID)
	}

	previous := u.rooms.Join(s, room)
	s.Room = room
	if previous != "" {
		u.broadcastRoom(previous, domain.NewEvent(domain.EventMessage,
			domain.NewSystemMessage(previous, username+" has left the room")), "")
		u.announceOccupancy(previous)
	}

	history, err := u.History(room, 0)
	if err != nil {
		u.logger.Error("failed to fetch history on join", "room", room, "err", err)
		history = []domain.Message{}
	}
	if err := s.Conn.Send(domain.NewEvent(domain.EventPreviousMessages, history)); err != nil {
		u.logger.Warn("failed to replay history", "room", room, "session", s.ID, "err", err)
	}

	u.broadcastRoom(room, domain.NewEvent(domain.EventMessage,
		domain.NewSystemMessage(room, username+" has joined the room")), s.ID)
	u.announceOccupancy(room)

	u.markOnline(username, true)
	return nil
}

// LeaveRoom removes the session from room only if that is its current room.
// Leaving a room the session is not in is a no-op, not an error.
func (u *Usecase) LeaveRoom(s *domain.Session, room string) error {
	if room == "" {
		return fmt.Errorf("%w: room is required", domain.ErrInvalidArgument)
	}
	if !u.rooms.Leave(s, room) {
		return nil
	}
	s.Room = ""
	if s.Username != "" {
		u.broadcastRoom(room, domain.NewEvent(domain.EventMessage,
			domain.NewSystemMessage(room, s.Username+" has left the room")), "")
	}
	u.announceOccupancy(room)
	return nil
}

// Disconnect handles a connection closing without an explicit leave: implicit
// leave from the current room plus an offline transition for friends. Safe to
// call for sessions that never joined anything.
func (u *Usecase) Disconnect(s *domain.Session) {
	if room, ok := u.rooms.LeaveCurrent(s); ok {
		if s.Username != "" {
			u.broadcastRoom(room, domain.NewEvent(domain.EventMessage,
				domain.NewSystemMessage(room, s.Username+" has disconnected")), "")
		}
		u.announceOccupancy(room)
	}
	s.Room = ""

	// Only the authoritative handle flips the user offline; a connection
	// that was replaced must not mask its successor.
	if u.presence.Unregister(s) {
		u.markOnline(s.Username, false)
	}
}

// Online marks the session as the live connection for username without a
// room join, so friends see the user come online from the lobby.
func (u *Usecase) Online(s *domain.Session, username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrInvalidArgument)
	}
	u.releaseIdentity(s, username)
	s.Username = username
	if displaced := u.presence.Register(username, s); displaced != nil {
		if prevRoom, ok := u.rooms.LeaveCurrent(displaced); ok {
			u.announceOccupancy(prevRoom)
		}
		_ = displaced.Conn.Close()
	}
	u.markOnline(username, true)
	return nil
}

// Offline is the explicit variant of Disconnect's presence transition.
func (u *Usecase) Offline(s *domain.Session) {
	if u.presence.Unregister(s) {
		u.markOnline(s.Username, false)
	}
}

// releaseIdentity drops the session's presence entry for its previous
// username when it re-authenticates as someone else. Without this the old
// username's registry entry would keep pointing at this session, leaving a
// ghost that stays online forever and receives another user's events.
func (u *Usecase) releaseIdentity(s *domain.Session, username string) {
	if s.Username == "" || s.Username == username {
		return
	}
	if u.presence.Unregister(s) {
		u.markOnline(s.Username, false)
	}
}

func (u *Usecase) Occupancy(room string) int {
	return u.rooms.Count(room)
}

func (u *Usecase) announceOccupancy(room string) {
	u.broadcastRoom(room, domain.NewEvent(domain.EventRoomUserCount, domain.RoomUserCountPayload{
		Room:  room,
		Count: u.rooms.Count(room),
	}), "")
}

// markOnline refreshes the denormalized column and fans the change out to
// online friends. Store failures here are logged, never fatal: presence must
// keep working when the cache write fails.
func (u *Usecase) markOnline(username string, online bool) {
	if username == "" {
		return
	}
	if err := u.repo.SetOnlineStatus(username, online); err != nil {
		u.logger.Error("failed to update online status", "user", username, "err", err)
	}
	status := ""
	if user, err := u.repo.GetUser(username); err == nil {
		status = user.Status
	}
	u.notifyFriendsStatus(username, online, status)
}
