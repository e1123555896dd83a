package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmahdi/wasla/server/domain"
)

// setupRepo opens an in-memory database pinned to a single connection so
// every statement sees the same store.
func setupRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.Migrate())
	return repo, db
}

func seedUsers(t *testing.T, repo *Repository, usernames ...string) {
	t.Helper()
	for _, username := range usernames {
		_, err := repo.CreateUser(domain.NewUser(username, "The "+username))
		require.NoError(t, err)
	}
}

func TestCreateUser(t *testing.T) {
	repo, _ := setupRepo(t)

	id, err := repo.CreateUser(domain.NewUser("alice", "Alice"))
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = repo.CreateUser(domain.NewUser("alice", "Impostor"))
	assert.ErrorIs(t, err, domain.ErrConflict)

	u, err := repo.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.False(t, u.OnlineStatus)

	_, err = repo.GetUser("nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetStatuses(t *testing.T) {
	repo, _ := setupRepo(t)
	seedUsers(t, repo, "alice")

	require.NoError(t, repo.SetOnlineStatus("alice", true))
	require.NoError(t, repo.SetUserStatus("alice", "busy"))

	u, err := repo.GetUser("alice")
	require.NoError(t, err)
	assert.True(t, u.OnlineStatus)
	assert.Equal(t, "busy", u.Status)
}

func TestCreateRequest_DuplicatePendingPair(t *testing.T) {
	repo, _ := setupRepo(t)
	seedUsers(t, repo, "alice", "bob")

	fr, err := repo.CreateRequest("alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, fr.Status)

	// Same direction.
	_, err = repo.CreateRequest("alice", "bob")
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Reverse direction hits the same unordered-pair index.
	_, err = repo.CreateRequest("bob", "alice")
	assert.ErrorIs(t, err, domain.ErrConflict)

	pending, err := repo.PendingBetween("bob", "alice")
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestCreateRequest_ConcurrentOppositeDirections(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL",
		filepath.Join(t.TempDir(), "race.db"))
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.Migrate())
	seedUsers(t, repo, "alice", "bob")

	// Both directions race for the same unordered pair; the pending-pair
	// index picks exactly one winner.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, errs[0] = repo.CreateRequest("alice", "bob") }()
	go func() { defer wg.Done(); _, errs[1] = repo.CreateRequest("bob", "alice") }()
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	var pending int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM friend_requests WHERE status = 'pending'`).Scan(&pending))
	assert.Equal(t, 1, pending)
}

func TestAcceptRequest(t *testing.T) {
	repo, db := setupRepo(t)
	seedUsers(t, repo, "bob", "alice")

	fr, err := repo.CreateRequest("bob", "alice")
	require.NoError(t, err)

	accepted, err := repo.AcceptRequest(fr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)

	// Friendship lands in sorted order regardless of who asked.
	var u1, u2 string
	require.NoError(t, db.QueryRow(`SELECT user1, user2 FROM friends`).Scan(&u1, &u2))
	assert.Equal(t, "alice", u1)
	assert.Equal(t, "bob", u2)

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		ok, err := repo.AreFriends(pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok)
	}

	// A settled request cannot be decided again.
	_, err = repo.AcceptRequest(fr.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = repo.DeclineRequest(fr.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM friends`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestAcceptRequest_NotFound(t *testing.T) {
	repo, _ := setupRepo(t)

	_, err := repo.AcceptRequest(12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeclineRequest(t *testing.T) {
	repo, _ := setupRepo(t)
	seedUsers(t, repo, "alice", "bob")

	fr, err := repo.CreateRequest("alice", "bob")
	require.NoError(t, err)

	declined, err := repo.DeclineRequest(fr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, declined.Status)

	ok, err := repo.AreFriends("alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	// The pair is free for a fresh request once the old one settles.
	_, err = repo.CreateRequest("bob", "alice")
	require.NoError(t, err)
}

func TestDeclineRequest_ReportsActualState(t *testing.T) {
	repo, _ := setupRepo(t)
	seedUsers(t, repo, "alice", "bob")

	fr, err := repo.CreateRequest("alice", "bob")
	require.NoError(t, err)
	_, err = repo.AcceptRequest(fr.ID)
	require.NoError(t, err)

	// The error names the state that actually won, not a stale read.
	_, err = repo.DeclineRequest(fr.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	assert.ErrorContains(t, err, "accepted")
}

func TestDeletePendingRequest(t *testing.T) {
	repo, _ := setupRepo(t)
	seedUsers(t, repo, "alice", "bob")

	_, err := repo.CreateRequest("alice", "bob")
	require.NoError(t, err)

	deleted, err := repo.DeletePendingRequest("alice", "bob")
	require.NoError(t, err)
	assert.True(t, deleted)

	// Already gone.
	deleted, err = repo.DeletePendingRequest("alice", "bob")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRequestLists(t *testing.T) {
	repo, _ := setupRepo(t)
	seedUsers(t, repo, "alice", "bob", "carol")

	_, err := repo.CreateRequest("bob", "alice")
	require.NoError(t, err)
	_, err = repo.CreateRequest("alice", "carol")
	require.NoError(t, err)

	incoming, err := repo.IncomingRequests("alice")
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, "bob", incoming[0].FromUser)
	assert.Equal(t, "The bob", incoming[0].FromName)

	outgoing, err := repo.OutgoingRequests("alice")
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, "carol", outgoing[0].ToUser)
	assert.Equal(t, "The carol", outgoing[0].ToName)
}

func TestCounts(t *testing.T) {
	repo, _ := setupRepo(t)
	seedUsers(t, repo, "alice", "bob", "carol", "dave")

	fr, err := repo.CreateRequest("bob", "alice")
	require.NoError(t, err)
	_, err = repo.AcceptRequest(fr.ID)
	require.NoError(t, err)

	_, err = repo.CreateRequest("carol", "alice")
	require.NoError(t, err)
	_, err = repo.CreateRequest("alice", "dave")
	require.NoError(t, err)

	friends, err := repo.CountFriends("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, friends)

	in, err := repo.CountPendingIncoming("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, in)

	out, err := repo.CountPendingOutgoing("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}

func TestRemoveFriendship(t *testing.T) {
	repo, _ := setupRepo(t)
	seedUsers(t, repo, "alice", "bob")

	fr, err := repo.CreateRequest("alice", "bob")
	require.NoError(t, err)
	_, err = repo.AcceptRequest(fr.ID)
	require.NoError(t, err)

	// Argument order does not matter.
	removed, err := repo.RemoveFriendship("bob", "alice")
	require.NoError(t, err)
	assert.True(t, removed)

	// Removing again is a quiet no-op.
	removed, err = repo.RemoveFriendship("alice", "bob")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSearchUsers_Exclusions(t *testing.T) {
	repo, _ := setupRepo(t)
	seedUsers(t, repo, "alice", "bob", "carol", "dave")

	// alice and bob are friends; alice already asked carol.
	fr, err := repo.CreateRequest("bob", "alice")
	require.NoError(t, err)
	_, err = repo.AcceptRequest(fr.ID)
	require.NoError(t, err)
	_, err = repo.CreateRequest("alice", "carol")
	require.NoError(t, err)

	results, err := repo.SearchUsers("", "alice", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dave", results[0].Username)
}

func TestSearchUsers_EscapesWildcards(t *testing.T) {
	repo, _ := setupRepo(t)
	seedUsers(t, repo, "percent", "underscore")

	results, err := repo.SearchUsers("%", "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = repo.SearchUsers("under", "nobody", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "underscore", results[0].Username)
}

func backdateRequests(t *testing.T, db *sql.DB, to time.Time) {
	t.Helper()
	_, err := db.Exec(`UPDATE friend_requests SET created_at = ?`, to)
	require.NoError(t, err)
}

func TestExpireAndPurge(t *testing.T) {
	repo, db := setupRepo(t)
	seedUsers(t, repo, "alice", "bob", "carol")

	_, err := repo.CreateRequest("alice", "bob")
	require.NoError(t, err)
	backdateRequests(t, db, time.Now().UTC().Add(-40*24*time.Hour))

	// Fresh request stays untouched.
	_, err = repo.CreateRequest("alice", "carol")
	require.NoError(t, err)

	expired, err := repo.ExpireStaleRequests(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	pending, err := repo.PendingBetween("alice", "carol")
	require.NoError(t, err)
	assert.True(t, pending)

	purged, err := repo.PurgeTerminalRequests(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var remaining int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM friend_requests`).Scan(&remaining))
	assert.Equal(t, 1, remaining)
}

func TestMessagesByRoom(t *testing.T) {
	repo, _ := setupRepo(t)

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		err := repo.SaveMessage(domain.Message{
			ID:        fmt.Sprintf("msg-%d", i),
			Username:  "alice",
			Room:      "general",
			Text:      fmt.Sprintf("hello %d", i),
			Type:      domain.MessageText,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	// Latest two, oldest first.
	messages, err := repo.MessagesByRoom("general", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello 1", messages[0].Text)
	assert.Equal(t, "hello 2", messages[1].Text)

	messages, err = repo.MessagesByRoom("empty-room", 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMessagesByRoom_FileJoin(t *testing.T) {
	repo, _ := setupRepo(t)

	fileID, err := repo.SaveFile(domain.FileMeta{
		Filename:     "abc123.png",
		OriginalName: "cat.png",
		FilePath:     "/data/uploads/abc123.png",
		FileSize:     2048,
		FileType:     "image",
		MimeType:     "image/png",
		Username:     "alice",
		Room:         "general",
	})
	require.NoError(t, err)

	err = repo.SaveMessage(domain.Message{
		ID:        "msg-file",
		Username:  "alice",
		Room:      "general",
		Type:      domain.MessageFile,
		FileID:    fileID,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	messages, err := repo.MessagesByRoom("general", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.NotNil(t, messages[0].File)
	assert.Equal(t, "cat.png", messages[0].File.Name)
	assert.Equal(t, "/uploads/abc123.png", messages[0].File.URL)
	assert.Equal(t, int64(2048), messages[0].File.Size)
}

func TestSaveMessage_ReplyTo(t *testing.T) {
	repo, _ := setupRepo(t)

	reply := []byte(`{"id":"msg-0","username":"bob"}`)
	err := repo.SaveMessage(domain.Message{
		ID:        "msg-1",
		Username:  "alice",
		Room:      "general",
		Text:      "replying",
		Type:      domain.MessageText,
		ReplyTo:   reply,
		MediaURL:  "/uploads/clip.webm",
		MediaType: "video/webm",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	messages, err := repo.MessagesByRoom("general", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.JSONEq(t, string(reply), string(messages[0].ReplyTo))
	assert.Equal(t, "/uploads/clip.webm", messages[0].MediaURL)
	assert.Equal(t, "video/webm", messages[0].MediaType)
}
