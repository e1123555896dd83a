package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/zmahdi/wasla/server/domain"
	"github.com/zmahdi/wasla/server/usecase"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ usecase.Repository = (*Repository)(nil)

func wrapStore(op string, err error) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrStore, op, err)
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}

func escapeLike(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, `%`, `\%`)
	term = strings.ReplaceAll(term, `_`, `\_`)
	return "%" + term + "%"
}

// Users

func (r *Repository) CreateUser(user domain.User) (int64, error) {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	res, err := r.db.Exec(
		`INSERT INTO users (username, name, avatar, online_status, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Name, user.Avatar, user.OnlineStatus, user.Status, user.CreatedAt, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: user %q already exists", domain.ErrConflict, user.Username)
		}
		return 0, wrapStore("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapStore("create user", err)
	}
	return id, nil
}

func (r *Repository) GetUser(username string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(
		`SELECT id, username, name, avatar, online_status, status, created_at
		 FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.Name, &u.Avatar, &u.OnlineStatus, &u.Status, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
	}
	if err != nil {
		return domain.User{}, wrapStore("get user", err)
	}
	return u, nil
}

func (r *Repository) UserExists(username string) (bool, error) {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM users WHERE username = ?`, username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapStore("user exists", err)
	}
	return true, nil
}

// SetOnlineStatus updates the denormalized presence column. The registry
// stays the source of truth for liveness; this is a cache for offline reads.
func (r *Repository) SetOnlineStatus(username string, online bool) error {
	_, err := r.db.Exec(
		`UPDATE users SET online_status = ?, updated_at = ? WHERE username = ?`,
		online, time.Now().UTC(), username,
	)
	if err != nil {
		return wrapStore("set online status", err)
	}
	return nil
}

func (r *Repository) SetUserStatus(username, status string) error {
	_, err := r.db.Exec(
		`UPDATE users SET status = ?, updated_at = ? WHERE username = ?`,
		status, time.Now().UTC(), username,
	)
	if err != nil {
		return wrapStore("set user status", err)
	}
	return nil
}

// SearchUsers returns add-friend candidates for excluding: users matching the
// term who are not the requester, not already friends with them and not
// already targets of a pending outbound request from them.
func (r *Repository) SearchUsers(term, excluding string, limit int) ([]domain.Candidate, error) {
	pattern := escapeLike(term)
	rows, err := r.db.Query(
		`SELECT username, name, avatar, online_status FROM users
		 WHERE (username LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\')
		   AND username != ?
		   AND username NOT IN (
			SELECT CASE WHEN user1 = ? THEN user2 ELSE user1 END
			FROM friends WHERE user1 = ? OR user2 = ?
		   )
		   AND username NOT IN (
			SELECT to_user FROM friend_requests
			WHERE from_user = ? AND status = 'pending'
		   )
		 ORDER BY username
		 LIMIT ?`,
		pattern, pattern, excluding, excluding, excluding, excluding, excluding, limit,
	)
	if err != nil {
		return nil, wrapStore("search users", err)
	}
	defer rows.Close()

	var results []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.Username, &c.Name, &c.Avatar, &c.Online); err != nil {
			return nil, wrapStore("search users", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStore("search users", err)
	}
	return results, nil
}

// Friend requests

func (r *Repository) CreateRequest(from, to string) (domain.FriendRequest, error) {
	now := time.Now().UTC()
	res, err := r.db.Exec(
		`INSERT INTO friend_requests (from_user, to_user, status, created_at, updated_at)
		 VALUES (?, ?, 'pending', ?, ?)`,
		from, to, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.FriendRequest{}, fmt.Errorf(
				"%w: pending request already exists between %q and %q", domain.ErrConflict, from, to)
		}
		return domain.FriendRequest{}, wrapStore("create request", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.FriendRequest{}, wrapStore("create request", err)
	}
	return domain.FriendRequest{
		ID:        id,
		FromUser:  from,
		ToUser:    to,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *Repository) GetRequest(id int64) (domain.FriendRequest, error) {
	var fr domain.FriendRequest
	err := r.db.QueryRow(
		`SELECT id, from_user, to_user, status, created_at, updated_at
		 FROM friend_requests WHERE id = ?`, id,
	).Scan(&fr.ID, &fr.FromUser, &fr.ToUser, &fr.Status, &fr.CreatedAt, &fr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FriendRequest{}, fmt.Errorf("%w: friend request %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.FriendRequest{}, wrapStore("get request", err)
	}
	return fr, nil
}

func (r *Repository) PendingBetween(a, b string) (bool, error) {
	var one int
	err := r.db.QueryRow(
		`SELECT 1 FROM friend_requests
		 WHERE ((from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?))
		   AND status = 'pending'`,
		a, b, b, a,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapStore("pending between", err)
	}
	return true, nil
}

// AcceptRequest flips a pending request to accepted and inserts the canonical
// friendship row in one transaction. The guarded UPDATE carries the
// pending-only check, so a concurrent accept loses with ErrInvalidState.
func (r *Repository) AcceptRequest(id int64) (domain.FriendRequest, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return domain.FriendRequest{}, wrapStore("accept request", err)
	}
	defer tx.Rollback()

	var fr domain.FriendRequest
	err = tx.QueryRow(
		`SELECT id, from_user, to_user, status, created_at FROM friend_requests WHERE id = ?`, id,
	).Scan(&fr.ID, &fr.FromUser, &fr.ToUser, &fr.Status, &fr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FriendRequest{}, fmt.Errorf("%w: friend request %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.FriendRequest{}, wrapStore("accept request", err)
	}

	now := time.Now().UTC()
	res, err := tx.Exec(
		`UPDATE friend_requests SET status = 'accepted', updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		now, id,
	)
	if err != nil {
		return domain.FriendRequest{}, wrapStore("accept request", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.FriendRequest{}, wrapStore("accept request", err)
	}
	if affected == 0 {
		return domain.FriendRequest{}, fmt.Errorf(
			"%w: friend request %d is already %s", domain.ErrInvalidState, id, fr.Status)
	}

	u1, u2 := domain.CanonicalPair(fr.FromUser, fr.ToUser)
	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO friends (user1, user2, created_at) VALUES (?, ?, ?)`,
		u1, u2, now,
	); err != nil {
		return domain.FriendRequest{}, wrapStore("accept request", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.FriendRequest{}, wrapStore("accept request", err)
	}
	fr.Status = domain.StatusAccepted
	fr.UpdatedAt = now
	return fr, nil
}

func (r *Repository) DeclineRequest(id int64) (domain.FriendRequest, error) {
	fr, err := r.GetRequest(id)
	if err != nil {
		return domain.FriendRequest{}, err
	}

	now := time.Now().UTC()
	res, err := r.db.Exec(
		`UPDATE friend_requests SET status = 'declined', updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		now, id,
	)
	if err != nil {
		return domain.FriendRequest{}, wrapStore("decline request", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.FriendRequest{}, wrapStore("decline request", err)
	}
	if affected == 0 {
		// A concurrent decision may have settled the row after the first
		// read; re-read so the error names the actual terminal state.
		if current, err := r.GetRequest(id); err == nil {
			fr = current
		}
		return domain.FriendRequest{}, fmt.Errorf(
			"%w: friend request %d is already %s", domain.ErrInvalidState, id, fr.Status)
	}
	fr.Status = domain.StatusDeclined
	fr.UpdatedAt = now
	return fr, nil
}

func (r *Repository) DeletePendingRequest(from, to string) (bool, error) {
	res, err := r.db.Exec(
		`DELETE FROM friend_requests
		 WHERE from_user = ? AND to_user = ? AND status = 'pending'`,
		from, to,
	)
	if err != nil {
		return false, wrapStore("delete pending request", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapStore("delete pending request", err)
	}
	return affected > 0, nil
}

func (r *Repository) IncomingRequests(username string) ([]domain.FriendRequest, error) {
	rows, err := r.db.Query(
		`SELECT fr.id, fr.from_user, fr.to_user, fr.status, fr.created_at, fr.updated_at,
			COALESCE(u.name, ''), COALESCE(u.avatar, '')
		 FROM friend_requests fr
		 LEFT JOIN users u ON u.username = fr.from_user
		 WHERE fr.to_user = ? AND fr.status = 'pending'
		 ORDER BY fr.created_at DESC`,
		username,
	)
	if err != nil {
		return nil, wrapStore("incoming requests", err)
	}
	defer rows.Close()
	return scanRequests(rows, true)
}

func (r *Repository) OutgoingRequests(username string) ([]domain.FriendRequest, error) {
	rows, err := r.db.Query(
		`SELECT fr.id, fr.from_user, fr.to_user, fr.status, fr.created_at, fr.updated_at,
			COALESCE(u.name, ''), COALESCE(u.avatar, '')
		 FROM friend_requests fr
		 LEFT JOIN users u ON u.username = fr.to_user
		 WHERE fr.from_user = ? AND fr.status = 'pending'
		 ORDER BY fr.created_at DESC`,
		username,
	)
	if err != nil {
		return nil, wrapStore("outgoing requests", err)
	}
	defer rows.Close()
	return scanRequests(rows, false)
}

func scanRequests(rows *sql.Rows, incoming bool) ([]domain.FriendRequest, error) {
	var requests []domain.FriendRequest
	for rows.Next() {
		var fr domain.FriendRequest
		var name, avatar string
		if err := rows.Scan(
			&fr.ID, &fr.FromUser, &fr.ToUser, &fr.Status, &fr.CreatedAt, &fr.UpdatedAt,
			&name, &avatar,
		); err != nil {
			return nil, wrapStore("scan request", err)
		}
		if incoming {
			fr.FromName, fr.FromAvatar = name, avatar
		} else {
			fr.ToName, fr.ToAvatar = name, avatar
		}
		requests = append(requests, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStore("scan request", err)
	}
	return requests, nil
}

func (r *Repository) ExpireStaleRequests(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := r.db.Exec(
		`UPDATE friend_requests SET status = 'expired', updated_at = ?
		 WHERE status = 'pending' AND created_at < ?`,
		time.Now().UTC(), cutoff,
	)
	if err != nil {
		return 0, wrapStore("expire stale requests", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStore("expire stale requests", err)
	}
	return affected, nil
}

func (r *Repository) PurgeTerminalRequests(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := r.db.Exec(
		`DELETE FROM friend_requests
		 WHERE status IN ('declined', 'expired') AND created_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, wrapStore("purge terminal requests", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStore("purge terminal requests", err)
	}
	return affected, nil
}

// Friendships

func (r *Repository) AreFriends(a, b string) (bool, error) {
	u1, u2 := domain.CanonicalPair(a, b)
	var one int
	err := r.db.QueryRow(
		`SELECT 1 FROM friends WHERE user1 = ? AND user2 = ?`, u1, u2,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapStore("are friends", err)
	}
	return true, nil
}

// RemoveFriendship deletes the canonical row regardless of argument order.
// Idempotent: removing an absent friendship reports false, never an error.
func (r *Repository) RemoveFriendship(a, b string) (bool, error) {
	u1, u2 := domain.CanonicalPair(a, b)
	res, err := r.db.Exec(`DELETE FROM friends WHERE user1 = ? AND user2 = ?`, u1, u2)
	if err != nil {
		return false, wrapStore("remove friendship", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapStore("remove friendship", err)
	}
	return affected > 0, nil
}

func (r *Repository) FriendsOf(username string) ([]domain.Friend, error) {
	rows, err := r.db.Query(
		`SELECT CASE WHEN f.user1 = ? THEN f.user2 ELSE f.user1 END AS friend_username,
			COALESCE(u.name, ''), COALESCE(u.avatar, ''),
			COALESCE(u.online_status, 0), COALESCE(u.status, ''), f.created_at
		 FROM friends f
		 LEFT JOIN users u ON u.username = CASE WHEN f.user1 = ? THEN f.user2 ELSE f.user1 END
		 WHERE f.user1 = ? OR f.user2 = ?
		 ORDER BY f.created_at DESC`,
		username, username, username, username,
	)
	if err != nil {
		return nil, wrapStore("friends of", err)
	}
	defer rows.Close()

	var friends []domain.Friend
	for rows.Next() {
		var f domain.Friend
		if err := rows.Scan(&f.Username, &f.Name, &f.Avatar, &f.Online, &f.Status, &f.Since); err != nil {
			return nil, wrapStore("friends of", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStore("friends of", err)
	}
	return friends, nil
}

func (r *Repository) CountFriends(username string) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM friends WHERE user1 = ? OR user2 = ?`,
		username, username,
	).Scan(&count)
	if err != nil {
		return 0, wrapStore("count friends", err)
	}
	return count, nil
}

func (r *Repository) CountPendingIncoming(username string) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM friend_requests WHERE to_user = ? AND status = 'pending'`,
		username,
	).Scan(&count)
	if err != nil {
		return 0, wrapStore("count pending incoming", err)
	}
	return count, nil
}

func (r *Repository) CountPendingOutgoing(username string) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM friend_requests WHERE from_user = ? AND status = 'pending'`,
		username,
	).Scan(&count)
	if err != nil {
		return 0, wrapStore("count pending outgoing", err)
	}
	return count, nil
}

// Messages and files

func (r *Repository) SaveMessage(m domain.Message) error {
	var text any
	if m.Text != "" {
		text = m.Text
	}
	var fileID any
	if m.FileID != 0 {
		fileID = m.FileID
	}
	var replyTo any
	if len(m.ReplyTo) > 0 {
		replyTo = string(m.ReplyTo)
	}
	var mediaURL, mediaType any
	if m.MediaURL != "" {
		mediaURL = m.MediaURL
	}
	if m.MediaType != "" {
		mediaType = m.MediaType
	}
	_, err := r.db.Exec(
		`INSERT INTO messages (id, username, room, text, type, file_id, reply_to, media_url, media_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Username, m.Room, text, m.Type, fileID, replyTo, mediaURL, mediaType, m.Timestamp,
	)
	if err != nil {
		return wrapStore("save message", err)
	}
	return nil
}

// MessagesByRoom returns the latest limit messages in chronological ascending
// order, with file metadata joined in for file-type rows.
func (r *Repository) MessagesByRoom(room string, limit int) ([]domain.Message, error) {
	rows, err := r.db.Query(
		`SELECT m.id, m.username, m.room, m.text, m.type, m.file_id, m.reply_to,
			m.media_url, m.media_type, m.created_at,
			f.id, f.filename, f.original_name, f.file_size, f.file_type, f.mime_type
		 FROM messages m
		 LEFT JOIN files f ON f.id = m.file_id
		 WHERE m.room = ?
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT ?`,
		room, limit,
	)
	if err != nil {
		return nil, wrapStore("messages by room", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var text, replyTo, mediaURL, mediaType sql.NullString
		var fileID sql.NullInt64
		var fID sql.NullInt64
		var fName, fOriginal, fType, fMime sql.NullString
		var fSize sql.NullInt64
		if err := rows.Scan(
			&m.ID, &m.Username, &m.Room, &text, &m.Type, &fileID, &replyTo,
			&mediaURL, &mediaType, &m.Timestamp,
			&fID, &fName, &fOriginal, &fSize, &fType, &fMime,
		); err != nil {
			return nil, wrapStore("messages by room", err)
		}
		m.Text = text.String
		m.FileID = fileID.Int64
		m.MediaURL = mediaURL.String
		m.MediaType = mediaType.String
		if replyTo.Valid {
			m.ReplyTo = []byte(replyTo.String)
		}
		if m.Type == domain.MessageFile && fID.Valid {
			meta := domain.FileMeta{
				ID:           fID.Int64,
				Filename:     fName.String,
				OriginalName: fOriginal.String,
				FileSize:     fSize.Int64,
				FileType:     fType.String,
				MimeType:     fMime.String,
			}
			ref := meta.Ref()
			m.File = &ref
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStore("messages by room", err)
	}

	// Newest-first query, oldest-first contract.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *Repository) FileByID(id int64) (domain.FileMeta, error) {
	var f domain.FileMeta
	err := r.db.QueryRow(
		`SELECT id, filename, original_name, file_path, file_size, file_type, mime_type,
			username, room, created_at
		 FROM files WHERE id = ?`, id,
	).Scan(&f.ID, &f.Filename, &f.OriginalName, &f.FilePath, &f.FileSize, &f.FileType,
		&f.MimeType, &f.Username, &f.Room, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FileMeta{}, fmt.Errorf("%w: file %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.FileMeta{}, wrapStore("file by id", err)
	}
	return f, nil
}

func (r *Repository) SaveFile(f domain.FileMeta) (int64, error) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.Exec(
		`INSERT INTO files (filename, original_name, file_path, file_size, file_type,
			mime_type, username, room, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Filename, f.OriginalName, f.FilePath, f.FileSize, f.FileType,
		f.MimeType, f.Username, f.Room, f.CreatedAt,
	)
	if err != nil {
		return 0, wrapStore("save file", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapStore("save file", err)
	}
	return id, nil
}
