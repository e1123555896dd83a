package usecase

import (
	"time"

	"github.com/zmahdi/wasla/server/domain"
)

// Repository is the persistent store the core coordinates against. Each call
// is a single logical unit; multi-statement transitions (accepting a request)
// are transactional inside the implementation.
type Repository interface {
	// Users
	CreateUser(user domain.User) (int64, error)
	GetUser(username string) (domain.User, error)
	UserExists(username string) (bool, error)
	SetOnlineStatus(username string, online bool) error
	SetUserStatus(username, status string) error
	SearchUsers(term, excluding string, limit int) ([]domain.Candidate, error)

	// Friend requests
	CreateRequest(from, to string) (domain.FriendRequest, error)
	GetRequest(id int64) (domain.FriendRequest, error)
	PendingBetween(a, b string) (bool, error)
	AcceptRequest(id int64) (domain.FriendRequest, error)
	DeclineRequest(id int64) (domain.FriendRequest, error)
	DeletePendingRequest(from, to string) (bool, error)
	IncomingRequests(username string) ([]domain.FriendRequest, error)
	OutgoingRequests(username string) ([]domain.FriendRequest, error)
	ExpireStaleRequests(olderThan time.Duration) (int64, error)
	PurgeTerminalRequests(olderThan time.Duration) (int64, error)

	// Friendships
	AreFriends(a, b string) (bool, error)
	RemoveFriendship(a, b string) (bool, error)
	FriendsOf(username string) ([]domain.Friend, error)
	CountFriends(username string) (int, error)
	CountPendingIncoming(username string) (int, error)
	CountPendingOutgoing(username string) (int, error)

	// Messages and files
	SaveMessage(m domain.Message) error
	MessagesByRoom(room string, limit int) ([]domain.Message, error)
	FileByID(id int64) (domain.FileMeta, error)
	SaveFile(f domain.FileMeta) (int64, error)
}
