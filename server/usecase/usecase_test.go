package usecase_test

import (
	"database/sql"
	"errors"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmahdi/wasla/server/domain"
	"github.com/zmahdi/wasla/server/repository"
	"github.com/zmahdi/wasla/server/usecase"
)

// recordingConn captures every event pushed to a session.
type recordingConn struct {
	mu     sync.Mutex
	events []domain.Event
	closed bool
}

func (c *recordingConn) Send(event domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *recordingConn) byName(name domain.EventName) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []domain.Event
	for _, e := range c.events {
		if e.Name == name {
			matched = append(matched, e)
		}
	}
	return matched
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type env struct {
	uc       *usecase.Usecase
	repo     *repository.Repository
	presence *domain.PresenceRegistry
	rooms    *domain.RoomRegistry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithHistoryLimit(t, 50)
}

func newEnvWithHistoryLimit(t *testing.T, historyLimit int) *env {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewRepository(db)
	require.NoError(t, repo.Migrate())

	cfg := domain.Config{
		DBPath:       ":memory:",
		HistoryLimit: historyLimit,
		RelayMode:    domain.RelayPersistFirst,
		ExpiryDays:   30,
	}
	presence := domain.NewPresenceRegistry()
	rooms := domain.NewRoomRegistry()
	return &env{
		uc:       usecase.NewUsecase(repo, presence, rooms, cfg, nil),
		repo:     repo,
		presence: presence,
		rooms:    rooms,
	}
}

func (e *env) seedUsers(t *testing.T, usernames ...string) {
	t.Helper()
	for _, username := range usernames {
		_, err := e.repo.CreateUser(domain.NewUser(username, "The "+username))
		require.NoError(t, err)
	}
}

// connect brings username online without a room, returning the session and
// its recording connection.
func (e *env) connect(t *testing.T, username string) (*domain.Session, *recordingConn) {
	t.Helper()
	conn := &recordingConn{}
	s := domain.NewSession("sess-"+username, "127.0.0.1:1", conn)
	require.NoError(t, e.uc.Online(s, username))
	conn.reset()
	return s, conn
}

func TestSendRequest_Validation(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice")

	_, err := e.uc.SendRequest("", "bob")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = e.uc.SendRequest("alice", "alice")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = e.uc.SendRequest("alice", "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendRequest_NotifiesOnlineRecipient(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob")
	_, bobConn := e.connect(t, "bob")

	request, err := e.uc.SendRequest("alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, request.Status)

	notifications := bobConn.byName(domain.EventNewFriendRequest)
	require.Len(t, notifications, 1)
	payload, ok := notifications[0].Data.(domain.NewFriendRequestPayload)
	require.True(t, ok)
	assert.Equal(t, "alice", payload.From)
	assert.Equal(t, request.ID, payload.RequestID)
}

func TestSendRequest_OfflineRecipientGetsNoEvent(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob")

	_, err := e.uc.SendRequest("alice", "bob")
	require.NoError(t, err)

	// The request is waiting for bob's next fetch.
	pending, err := e.uc.PendingRequests("bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].FromUser)
}

func TestSendRequest_Conflicts(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob")

	request, err := e.uc.SendRequest("alice", "bob")
	require.NoError(t, err)

	_, err = e.uc.SendRequest("alice", "bob")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = e.uc.SendRequest("bob", "alice")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = e.uc.RespondToRequest(request.ID, domain.StatusAccepted)
	require.NoError(t, err)

	_, err = e.uc.SendRequest("alice", "bob")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRespondToRequest_Accept(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob")
	_, aliceConn := e.connect(t, "alice")

	request, err := e.uc.SendRequest("alice", "bob")
	require.NoError(t, err)

	accepted, err := e.uc.RespondToRequest(request.ID, domain.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)

	updates := aliceConn.byName(domain.EventFriendRequestUpdate)
	require.Len(t, updates, 1)
	payload, ok := updates[0].Data.(domain.FriendRequestUpdatePayload)
	require.True(t, ok)
	assert.Equal(t, domain.StatusAccepted, payload.Response)
	assert.Equal(t, "bob", payload.From)

	// The accepting side's list refresh reached the online sender too.
	require.Len(t, aliceConn.byName(domain.EventFriendsListUpdate), 1)

	friends, err := e.uc.FriendsList("alice")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)
}

func TestRespondToRequest_NotIdempotent(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob")

	request, err := e.uc.SendRequest("alice", "bob")
	require.NoError(t, err)

	_, err = e.uc.RespondToRequest(request.ID, domain.StatusAccepted)
	require.NoError(t, err)

	_, err = e.uc.RespondToRequest(request.ID, domain.StatusAccepted)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = e.uc.RespondToRequest(request.ID, domain.StatusDeclined)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRespondToRequest_InvalidDecision(t *testing.T) {
	e := newEnv(t)

	_, err := e.uc.RespondToRequest(1, "maybe")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = e.uc.RespondToRequest(1, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRemoveFriend_Idempotent(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob")
	_, bobConn := e.connect(t, "bob")

	request, err := e.uc.SendRequest("alice", "bob")
	require.NoError(t, err)
	_, err = e.uc.RespondToRequest(request.ID, domain.StatusAccepted)
	require.NoError(t, err)
	bobConn.reset()

	removed, err := e.uc.RemoveFriend("alice", "bob")
	require.NoError(t, err)
	assert.True(t, removed)

	events := bobConn.byName(domain.EventFriendRemoved)
	require.Len(t, events, 1)
	payload, ok := events[0].Data.(domain.FriendRemovedPayload)
	require.True(t, ok)
	assert.Equal(t, "alice", payload.Username)

	// Second removal reports false with no fresh events.
	bobConn.reset()
	removed, err = e.uc.RemoveFriend("bob", "alice")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Empty(t, bobConn.byName(domain.EventFriendRemoved))
}

func TestCancelRequest(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob")

	_, err := e.uc.SendRequest("alice", "bob")
	require.NoError(t, err)

	cancelled, err := e.uc.CancelRequest("alice", "bob")
	require.NoError(t, err)
	assert.True(t, cancelled)

	cancelled, err = e.uc.CancelRequest("alice", "bob")
	require.NoError(t, err)
	assert.False(t, cancelled)

	// The pair is free again.
	_, err = e.uc.SendRequest("bob", "alice")
	require.NoError(t, err)
}

func TestSearchCandidates_PresenceOverridesStoredFlag(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob", "carol")
	e.connect(t, "carol")

	results, err := e.uc.SearchCandidates("", "alice", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	online := map[string]bool{}
	for _, c := range results {
		online[c.Username] = c.Online
	}
	assert.True(t, online["carol"])
	assert.False(t, online["bob"])
}

func TestSearchCandidates_RequiresRequester(t *testing.T) {
	e := newEnv(t)

	_, err := e.uc.SearchCandidates("term", "", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSearchCandidates_EmptyResultIsNotNil(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice")

	results, err := e.uc.SearchCandidates("zzz", "alice", 10)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob", "carol", "dave")

	request, err := e.uc.SendRequest("bob", "alice")
	require.NoError(t, err)
	_, err = e.uc.RespondToRequest(request.ID, domain.StatusAccepted)
	require.NoError(t, err)
	_, err = e.uc.SendRequest("carol", "alice")
	require.NoError(t, err)
	_, err = e.uc.SendRequest("alice", "dave")
	require.NoError(t, err)

	stats, err := e.uc.Stats("alice")
	require.NoError(t, err)
	assert.Equal(t, domain.FriendStats{
		FriendsCount:    1,
		PendingIncoming: 1,
		PendingOutgoing: 1,
	}, stats)

	_, err = e.uc.Stats("")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUpdateStatus_FansOutToFriends(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob")

	request, err := e.uc.SendRequest("alice", "bob")
	require.NoError(t, err)
	_, err = e.uc.RespondToRequest(request.ID, domain.StatusAccepted)
	require.NoError(t, err)

	_, bobConn := e.connect(t, "bob")

	require.NoError(t, e.uc.UpdateStatus("alice", "out for lunch"))

	updates := bobConn.byName(domain.EventFriendStatusUpdate)
	require.Len(t, updates, 1)
	payload, ok := updates[0].Data.(domain.FriendStatusUpdatePayload)
	require.True(t, ok)
	assert.Equal(t, "alice", payload.Username)
	assert.Equal(t, "out for lunch", payload.Status)
	assert.False(t, payload.Online)
}

func TestOnlineFriends(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice", "bob", "carol")

	for _, from := range []string{"bob", "carol"} {
		request, err := e.uc.SendRequest(from, "alice")
		require.NoError(t, err)
		_, err = e.uc.RespondToRequest(request.ID, domain.StatusAccepted)
		require.NoError(t, err)
	}
	e.connect(t, "bob")

	online, err := e.uc.OnlineFriends("alice")
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "bob", online[0].Username)
}

func TestExpireStale_RejectsNonPositiveAge(t *testing.T) {
	e := newEnv(t)

	_, err := e.uc.ExpireStale(0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = e.uc.PurgeTerminal(-1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestErrorsAreDistinguishable(t *testing.T) {
	e := newEnv(t)
	e.seedUsers(t, "alice")

	_, err := e.uc.SendRequest("alice", "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrConflict))
}
