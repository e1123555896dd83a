package domain

import "time"

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusDeclined RequestStatus = "declined"
	StatusExpired  RequestStatus = "expired"
)

// Terminal reports whether the status can never change again. A new request
// requires a new row.
func (s RequestStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined || s == StatusExpired
}

func (s RequestStatus) IsDecision() bool {
	return s == StatusAccepted || s == StatusDeclined
}

type FriendRequest struct {
	ID         int64         `json:"id"`
	FromUser   string        `json:"from_user"`
	ToUser     string        `json:"to_user"`
	Status     RequestStatus `json:"status"`
	FromName   string        `json:"from_user_name,omitempty"`
	FromAvatar string        `json:"from_user_avatar,omitempty"`
	ToName     string        `json:"to_user_name,omitempty"`
	ToAvatar   string        `json:"to_user_avatar,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// CanonicalPair returns the unordered pair in its single storage order,
// lexicographically ascending. Every friendship row is written and queried
// through this ordering.
func CanonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

type Friendship struct {
	User1     string
	User2     string
	CreatedAt time.Time
}

func NewFriendship(a, b string) Friendship {
	u1, u2 := CanonicalPair(a, b)
	return Friendship{User1: u1, User2: u2, CreatedAt: time.Now().UTC()}
}

// Friend is a friends-list entry seen from one side of the relationship,
// with the counterpart's profile joined in.
type Friend struct {
	Username string    `json:"friend_username"`
	Name     string    `json:"friend_name"`
	Avatar   string    `json:"friend_avatar"`
	Online   bool      `json:"friend_online"`
	Status   string    `json:"friend_status"`
	Since    time.Time `json:"created_at"`
}
