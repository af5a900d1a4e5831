package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSession is returned when a user has no active mailbox.
var ErrNoSession = errors.New("no active session")

// ErrNotCached is returned on a deferred-content cache miss.
var ErrNotCached = errors.New("content not cached")

type Store struct {
	db *sql.DB
}

// Open opens the state store. An empty path keeps all state in memory, which
// is the default: sessions and caches are ephemeral and die with the process.
func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
		inMemory = true
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes every reader and writer, which is the
	// mutual exclusion the poller and the inbound handlers rely on.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
            user_id INTEGER PRIMARY KEY,
            address TEXT NOT NULL,
            password TEXT NOT NULL,
            token TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS seen_mail (
            user_id INTEGER NOT NULL,
            mail_id TEXT NOT NULL,
            PRIMARY KEY (user_id, mail_id)
        );`,
		`CREATE TABLE IF NOT EXISTS cached_bodies (
            user_id INTEGER NOT NULL,
            mail_id TEXT NOT NULL,
            body TEXT NOT NULL,
            cached_at INTEGER NOT NULL,
            PRIMARY KEY (user_id, mail_id)
        );`,
		`CREATE TABLE IF NOT EXISTS cached_attachments (
            user_id INTEGER NOT NULL,
            mail_id TEXT NOT NULL,
            ord INTEGER NOT NULL,
            attachment_id TEXT NOT NULL,
            filename TEXT NOT NULL,
            content_type TEXT NOT NULL,
            token TEXT NOT NULL,
            cached_at INTEGER NOT NULL,
            PRIMARY KEY (user_id, mail_id, ord)
        );`,
		`CREATE TABLE IF NOT EXISTS known_users (
            user_id INTEGER PRIMARY KEY,
            first_seen INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_cached_bodies_cached ON cached_bodies(cached_at);`,
		`CREATE INDEX IF NOT EXISTS idx_cached_attachments_cached ON cached_attachments(cached_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// ReplaceSession installs a freshly provisioned session for a user. The old
// session, its seen set and its cached content are dropped together: the seen
// set is scoped to the mailbox it was built for.
func (s *Store) ReplaceSession(ctx context.Context, session Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cleanup := []string{
		`DELETE FROM seen_mail WHERE user_id = ?;`,
		`DELETE FROM cached_bodies WHERE user_id = ?;`,
		`DELETE FROM cached_attachments WHERE user_id = ?;`,
	}
	for _, statement := range cleanup {
		if _, err := tx.ExecContext(ctx, statement, session.UserID); err != nil {
			return fmt.Errorf("reset user state: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (user_id, address, password, token, created_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            address = excluded.address,
            password = excluded.password,
            token = excluded.token,
            created_at = excluded.created_at;`,
		session.UserID,
		session.Address,
		session.Password,
		session.Token,
		session.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, userID int64) (Session, error) {
	var session Session
	var createdAt int64
	row := s.db.QueryRowContext(ctx, `SELECT user_id, address, password, token, created_at
        FROM sessions WHERE user_id = ?;`, userID)
	if err := row.Scan(&session.UserID, &session.Address, &session.Password, &session.Token, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	session.CreatedAt = time.Unix(createdAt, 0)
	return session, nil
}

// ListSessions returns a snapshot of every active session. The poll loop
// iterates the snapshot, so sessions replaced mid-tick do not affect it.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, address, password, token, created_at
        FROM sessions ORDER BY user_id;`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		var createdAt int64
		if err := rows.Scan(&session.UserID, &session.Address, &session.Password, &session.Token, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session.CreatedAt = time.Unix(createdAt, 0)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// MarkSeen records a mail identifier in the user's seen set. It reports true
// only the first time an identifier is recorded.
func (s *Store) MarkSeen(ctx context.Context, userID int64, mailID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_mail (user_id, mail_id) VALUES (?, ?);`, userID, mailID)
	if err != nil {
		return false, fmt.Errorf("mark seen: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark seen: %w", err)
	}
	return affected > 0, nil
}

func (s *Store) CacheBody(ctx context.Context, userID int64, mailID, body string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO cached_bodies (user_id, mail_id, body, cached_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(user_id, mail_id) DO UPDATE SET body = excluded.body, cached_at = excluded.cached_at;`,
		userID, mailID, body, now.Unix())
	if err != nil {
		return fmt.Errorf("cache body: %w", err)
	}
	return nil
}

func (s *Store) GetBody(ctx context.Context, userID int64, mailID string) (string, error) {
	var body string
	row := s.db.QueryRowContext(ctx,
		`SELECT body FROM cached_bodies WHERE user_id = ? AND mail_id = ?;`, userID, mailID)
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotCached
		}
		return "", fmt.Errorf("get body: %w", err)
	}
	return body, nil
}

// PutAttachments stores the ordered descriptor set for one mail together with
// the credential that was current when the mail was detected.
func (s *Store) PutAttachments(ctx context.Context, userID int64, mailID, token string, attachments []CachedAttachment, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cached_attachments WHERE user_id = ? AND mail_id = ?;`, userID, mailID); err != nil {
		return fmt.Errorf("reset attachments: %w", err)
	}
	for ord, attachment := range attachments {
		_, err := tx.ExecContext(ctx, `INSERT INTO cached_attachments
            (user_id, mail_id, ord, attachment_id, filename, content_type, token, cached_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
			userID, mailID, ord,
			attachment.AttachmentID,
			attachment.Filename,
			attachment.ContentType,
			token,
			now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attachments: %w", err)
	}
	return nil
}

func (s *Store) GetAttachments(ctx context.Context, userID int64, mailID string) ([]CachedAttachment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT attachment_id, filename, content_type, token
        FROM cached_attachments WHERE user_id = ? AND mail_id = ? ORDER BY ord;`, userID, mailID)
	if err != nil {
		return nil, fmt.Errorf("get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []CachedAttachment
	for rows.Next() {
		var attachment CachedAttachment
		if err := rows.Scan(&attachment.AttachmentID, &attachment.Filename, &attachment.ContentType, &attachment.Token); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get attachments: %w", err)
	}
	return attachments, nil
}

// MarkUserKnown reports true on a user's first contact with the bot.
func (s *Store) MarkUserKnown(ctx context.Context, userID int64, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO known_users (user_id, first_seen) VALUES (?, ?);`, userID, now.Unix())
	if err != nil {
		return false, fmt.Errorf("mark user known: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark user known: %w", err)
	}
	return affected > 0, nil
}

// Sweep evicts cached content older than the cutoff. Seen-mail rows are kept:
// the seen set must only grow for the lifetime of its session.
func (s *Store) Sweep(ctx context.Context, olderThan time.Time) error {
	cutoff := olderThan.Unix()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cached_bodies WHERE cached_at < ?;`, cutoff); err != nil {
		return fmt.Errorf("sweep bodies: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cached_attachments WHERE cached_at < ?;`, cutoff); err != nil {
		return fmt.Errorf("sweep attachments: %w", err)
	}
	return nil
}

func (s *Store) CollectStats(ctx context.Context) (Stats, error) {
	var stats Stats
	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(1) FROM sessions;`, &stats.Sessions},
		{`SELECT COUNT(1) FROM seen_mail;`, &stats.SeenMail},
		{`SELECT COUNT(1) FROM cached_bodies;`, &stats.CachedBodies},
		{`SELECT COUNT(1) FROM cached_attachments;`, &stats.CachedAttachments},
		{`SELECT COUNT(1) FROM known_users;`, &stats.KnownUsers},
	}
	for _, count := range counts {
		if err := s.db.QueryRowContext(ctx, count.query).Scan(count.dest); err != nil {
			return Stats{}, fmt.Errorf("collect stats: %w", err)
		}
	}
	return stats, nil
}
