package usecase

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/zmahdi/wasla/server/domain"
)

const defaultSearchLimit = 10

type Usecase struct {
	repo     Repository
	presence *domain.PresenceRegistry
	rooms    *domain.RoomRegistry
	cfg      domain.Config
	logger   *slog.Logger
}

func NewUsecase(repo Repository, presence *domain.PresenceRegistry, rooms *domain.RoomRegistry, cfg domain.Config, logger *slog.Logger) *Usecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Usecase{
		repo:     repo,
		presence: presence,
		rooms:    rooms,
		cfg:      cfg,
		logger:   logger,
	}
}

// SendRequest validates and persists a new friend request. The duplicate
// checks here produce friendly errors; under concurrent sends for the same
// pair the store's unique pending-pair index decides the winner and the loser
// surfaces as ErrConflict too.
func (u *Usecase) SendRequest(from, to string) (domain.FriendRequest, error) {
	if from == "" || to == "" {
		return domain.FriendRequest{}, fmt.Errorf("%w: both usernames are required", domain.ErrInvalidArgument)
	}
	if from == to {
		return domain.FriendRequest{}, fmt.Errorf("%w: cannot send a friend request to yourself", domain.ErrInvalidArgument)
	}

	exists, err := u.repo.UserExists(to)
	if err != nil {
		return domain.FriendRequest{}, err
	}
	if !exists {
		return domain.FriendRequest{}, fmt.Errorf("%w: user %q", domain.ErrNotFound, to)
	}

	pending, err := u.repo.PendingBetween(from, to)
	if err != nil {
		return domain.FriendRequest{}, err
	}
	if pending {
		return domain.FriendRequest{}, fmt.Errorf("%w: a friend request is already pending", domain.ErrConflict)
	}

	friends, err := u.repo.AreFriends(from, to)
	if err != nil {
		return domain.FriendRequest{}, err
	}
	if friends {
		return domain.FriendRequest{}, fmt.Errorf("%w: already friends", domain.ErrConflict)
	}

	request, err := u.repo.CreateRequest(from, to)
	if err != nil {
		return domain.FriendRequest{}, err
	}

	u.dispatchTo(to, domain.NewEvent(domain.EventNewFriendRequest, domain.NewFriendRequestPayload{
		From:      from,
		RequestID: request.ID,
		CreatedAt: request.CreatedAt.Format(time.RFC3339),
	}))
	return request, nil
}

// RespondToRequest applies a terminal decision to a pending request. It is
// deliberately not idempotent: a second response fails with ErrInvalidState.
func (u *Usecase) RespondToRequest(id int64, decision domain.RequestStatus) (domain.FriendRequest, error) {
	if !decision.IsDecision() {
		return domain.FriendRequest{}, fmt.Errorf(
			"%w: decision must be %q or %q", domain.ErrInvalidArgument, domain.StatusAccepted, domain.StatusDeclined)
	}

	var request domain.FriendRequest
	var err error
	if decision == domain.StatusAccepted {
		request, err = u.repo.AcceptRequest(id)
	} else {
		request, err = u.repo.DeclineRequest(id)
	}
	if err != nil {
		return domain.FriendRequest{}, err
	}

	u.dispatchTo(request.FromUser, domain.NewEvent(domain.EventFriendRequestUpdate, domain.FriendRequestUpdatePayload{
		RequestID: request.ID,
		Response:  request.Status,
		From:      request.ToUser,
	}))
	if request.Status == domain.StatusAccepted {
		u.refreshFriendsList(request.FromUser)
		u.refreshFriendsList(request.ToUser)
	}
	return request, nil
}

// RemoveFriend deletes the friendship between the two users if it exists.
// Removing an absent friendship reports false, never an error.
func (u *Usecase) RemoveFriend(userA, userB string) (bool, error) {
	if userA == "" || userB == "" {
		return false, fmt.Errorf("%w: both usernames are required", domain.ErrInvalidArgument)
	}
	removed, err := u.repo.RemoveFriendship(userA, userB)
	if err != nil {
		return false, err
	}
	if removed {
		u.dispatchTo(userA, domain.NewEvent(domain.EventFriendRemoved, domain.FriendRemovedPayload{Username: userB}))
		u.dispatchTo(userB, domain.NewEvent(domain.EventFriendRemoved, domain.FriendRemovedPayload{Username: userA}))
		u.refreshFriendsList(userA)
		u.refreshFriendsList(userB)
	}
	return removed, nil
}

// CancelRequest withdraws a still-pending outbound request; no-op if none.
func (u *Usecase) CancelRequest(from, to string) (bool, error) {
	if from == "" || to == "" {
		return false, fmt.Errorf("%w: both usernames are required", domain.ErrInvalidArgument)
	}
	return u.repo.DeletePendingRequest(from, to)
}

// ExpireStale transitions pending requests older than maxAgeDays to expired.
// Triggered externally (operator CLI); the server never self-schedules it.
func (u *Usecase) ExpireStale(maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, fmt.Errorf("%w: max age must be positive", domain.ErrInvalidArgument)
	}
	return u.repo.ExpireStaleRequests(time.Duration(maxAgeDays) * 24 * time.Hour)
}

// PurgeTerminal deletes declined and expired rows older than maxAgeDays.
func (u *Usecase) PurgeTerminal(maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, fmt.Errorf("%w: max age must be positive", domain.ErrInvalidArgument)
	}
	return u.repo.PurgeTerminalRequests(time.Duration(maxAgeDays) * 24 * time.Hour)
}

// SearchCandidates returns users matching term who could still receive a
// request from excluding. Liveness comes from the presence registry, not the
// denormalized column.
func (u *Usecase) SearchCandidates(term, excluding string, limit int) ([]domain.Candidate, error) {
	if excluding == "" {
		return nil, fmt.Errorf("%w: requesting username is required", domain.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	candidates, err := u.repo.SearchUsers(term, excluding, limit)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].Online = u.presence.IsOnline(candidates[i].Username)
	}
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	return candidates, nil
}

// Stats is recomputed on every call, never cached.
func (u *Usecase) Stats(username string) (domain.FriendStats, error) {
	if username == "" {
		return domain.FriendStats{}, fmt.Errorf("%w: username is required", domain.ErrInvalidArgument)
	}
	friends, err := u.repo.CountFriends(username)
	if err != nil {
		return domain.FriendStats{}, err
	}
	incoming, err := u.repo.CountPendingIncoming(username)
	if err != nil {
		return domain.FriendStats{}, err
	}
	outgoing, err := u.repo.CountPendingOutgoing(username)
	if err != nil {
		return domain.FriendStats{}, err
	}
	return domain.FriendStats{
		FriendsCount:    friends,
		PendingIncoming: incoming,
		PendingOutgoing: outgoing,
	}, nil
}

func (u *Usecase) PendingRequests(username string) ([]domain.FriendRequest, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidArgument)
	}
	requests, err := u.repo.IncomingRequests(username)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []domain.FriendRequest{}
	}
	return requests, nil
}

func (u *Usecase) OutgoingRequests(username string) ([]domain.FriendRequest, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidArgument)
	}
	requests, err := u.repo.OutgoingRequests(username)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []domain.FriendRequest{}
	}
	return requests, nil
}

// FriendsList joins profile data onto the friendship rows, with the online
// flag overridden by live presence.
func (u *Usecase) FriendsList(username string) ([]domain.Friend, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidArgument)
	}
	friends, err := u.repo.FriendsOf(username)
	if err != nil {
		return nil, err
	}
	for i := range friends {
		friends[i].Online = u.presence.IsOnline(friends[i].Username)
	}
	if friends == nil {
		friends = []domain.Friend{}
	}
	return friends, nil
}

func (u *Usecase) OnlineFriends(username string) ([]domain.Friend, error) {
	friends, err := u.FriendsList(username)
	if err != nil {
		return nil, err
	}
	online := friends[:0]
	for _, f := range friends {
		if f.Online {
			online = append(online, f)
		}
	}
	return online, nil
}

// UpdateStatus stores the free-text status and fans the change out to online
// friends.
func (u *Usecase) UpdateStatus(username, status string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrInvalidArgument)
	}
	if err := u.repo.SetUserStatus(username, status); err != nil {
		return err
	}
	u.notifyFriendsStatus(username, u.presence.IsOnline(username), status)
	return nil
}
