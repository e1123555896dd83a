package repository

// The partial unique index on the unordered pending pair is what closes the
// concurrent duplicate-request race: application-level checks only produce
// friendly errors, the index is authoritative. Friendship rows are stored
// with the pair sorted ascending and are unique per pair.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		online_status INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS friend_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_user TEXT NOT NULL,
		to_user TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_friend_requests_pending_pair
		ON friend_requests (min(from_user, to_user), max(from_user, to_user))
		WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS ix_friend_requests_to_status
		ON friend_requests (to_user, status)`,
	`CREATE INDEX IF NOT EXISTS ix_friend_requests_from_status
		ON friend_requests (from_user, status)`,
	`CREATE TABLE IF NOT EXISTS friends (
		user1 TEXT NOT NULL,
		user2 TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user1, user2)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		room TEXT NOT NULL,
		text TEXT,
		type TEXT NOT NULL DEFAULT 'text',
		file_id INTEGER,
		reply_to TEXT,
		media_url TEXT,
		media_type TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_messages_room_created
		ON messages (room, created_at)`,
	`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		original_name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		file_type TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		username TEXT NOT NULL,
		room TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
}

func (r *Repository) Migrate() error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(stmt); err != nil {
			return wrapStore("migrate", err)
		}
	}
	return nil
}
