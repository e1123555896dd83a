package usecase

import "github.com/zmahdi/wasla/server/domain"

// Event dispatch is pure routing: look the recipient up in the presence
// registry and push, silently no-op-ing for offline users. Offline users
// learn of changes on their next explicit fetch.

func (u *Usecase) dispatchTo(username string, event domain.Event) {
	session, ok := u.presence.Find(username)
	if !ok {
		return
	}
	if err := session.Conn.Send(event); err != nil {
		u.logger.Warn("dropping event for slow connection",
			"event", event.Name, "user", username, "err", err)
	}
}

// refreshFriendsList pushes a recomputed friends list to username if online.
func (u *Usecase) refreshFriendsList(username string) {
	if !u.presence.IsOnline(username) {
		return
	}
	friends, err := u.FriendsList(username)
	if err != nil {
		u.logger.Error("failed to refresh friends list", "user", username, "err", err)
		return
	}
	u.dispatchTo(username, domain.NewEvent(domain.EventFriendsListUpdate,
		domain.FriendsListUpdatePayload{Friends: friends}))
}

// notifyFriendsStatus tells every online friend of username about a presence
// or status change.
func (u *Usecase) notifyFriendsStatus(username string, online bool, status string) {
	friends, err := u.repo.FriendsOf(username)
	if err != nil {
		u.logger.Error("failed to load friends for status fanout", "user", username, "err", err)
		return
	}
	payload := domain.FriendStatusUpdatePayload{
		Username: username,
		Online:   online,
		Status:   status,
	}
	event := domain.NewEvent(domain.EventFriendStatusUpdate, payload)
	for _, friend := range friends {
		u.dispatchTo(friend.Username, event)
	}
}

// broadcastRoom pushes an event to every current member of room. exceptID
// skips one session (the originator of a system notice).
func (u *Usecase) broadcastRoom(room string, event domain.Event, exceptID string) {
	for _, member := range u.rooms.Members(room) {
		if member.ID == exceptID {
			continue
		}
		if err := member.Conn.Send(event); err != nil {
			u.logger.Warn("dropping room event for slow connection",
				"event", event.Name, "room", room, "session", member.ID, "err", err)
		}
	}
}
