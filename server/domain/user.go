package domain

import "time"

type User struct {
	ID           int64
	Username     string
	Name         string
	Avatar       string
	OnlineStatus bool
	Status       string
	CreatedAt    time.Time
}

func NewUser(username, name string) User {
	return User{
		Username:  username,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// Candidate is a row returned by user search when looking for people to add.
type Candidate struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Online   bool   `json:"online"`
}

type FriendStats struct {
	FriendsCount    int `json:"friendsCount"`
	PendingIncoming int `json:"pendingIncoming"`
	PendingOutgoing int `json:"pendingOutgoing"`
}
