package adaptor

import "github.com/zmahdi/wasla/server/domain"

type Usecase interface {
	// Live session flow
	JoinRoom(s *domain.Session, username, room string) error
	LeaveRoom(s *domain.Session, room string) error
	Disconnect(s *domain.Session)
	Online(s *domain.Session, username string) error
	Offline(s *domain.Session)
	Occupancy(room string) int

	// Messages
	PostMessage(m domain.Message) (domain.Message, error)
	History(room string, limit int) ([]domain.Message, error)

	// Friends
	SendRequest(from, to string) (domain.FriendRequest, error)
	RespondToRequest(id int64, decision domain.RequestStatus) (domain.FriendRequest, error)
	CancelRequest(from, to string) (bool, error)
	RemoveFriend(userA, userB string) (bool, error)
	PendingRequests(username string) ([]domain.FriendRequest, error)
	OutgoingRequests(username string) ([]domain.FriendRequest, error)
	FriendsList(username string) ([]domain.Friend, error)
	OnlineFriends(username string) ([]domain.Friend, error)
	SearchCandidates(term, excluding string, limit int) ([]domain.Candidate, error)
	UpdateStatus(username, status string) error
	Stats(username string) (domain.FriendStats, error)
}
