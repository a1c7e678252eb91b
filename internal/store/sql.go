package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
)

// dialect captures the few differences between the supported SQL engines.
type dialect struct {
	name     string
	schema   []string
	numbered bool // $1, $2 ... placeholders instead of ?
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements Store on database/sql. Timestamps are stored as unix nanoseconds so that
// ordering behaves the same on every engine.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}

	s := &SQLStore{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect.name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) CreateSession(ctx context.Context, streamTitle string) (live.Session, error) {
	session := live.Session{
		ID:          uuid.NewString(),
		StreamTitle: sessionTitle(streamTitle),
		StartedAt:   s.now(),
	}

	_, err := s.exec(ctx, `INSERT INTO sessions (id, stream_title, started_at) VALUES (?, ?, ?)`,
		session.ID, session.StreamTitle, session.StartedAt.UnixNano())
	if err != nil {
		return live.Session{}, fmt.Errorf("insert session: %w", err)
	}

	log.Info().Str("component", "store").Str("session", session.ID).Str("title", session.StreamTitle).Msg("session started")
	return session, nil
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (live.Session, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT id, stream_title, started_at, ended_at
		FROM sessions
		WHERE id = ?
	`), id)

	var (
		session   live.Session
		startedAt int64
		endedAt   sql.NullInt64
	)
	if err := row.Scan(&session.ID, &session.StreamTitle, &startedAt, &endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return live.Session{}, ErrSessionNotFound
		}
		return live.Session{}, fmt.Errorf("scan session: %w", err)
	}

	session.StartedAt = fromUnixNano(startedAt)
	if endedAt.Valid {
		t := fromUnixNano(endedAt.Int64)
		session.EndedAt = &t
	}
	return session, nil
}

func (s *SQLStore) EndSession(ctx context.Context, id string) (live.Session, error) {
	res, err := s.exec(ctx, `UPDATE sessions SET ended_at = ? WHERE id = ?`, s.now().UnixNano(), id)
	if err != nil {
		return live.Session{}, fmt.Errorf("end session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return live.Session{}, ErrSessionNotFound
	}
	return s.GetSession(ctx, id)
}

func (s *SQLStore) GetOrCreateSession(ctx context.Context, id, streamTitle string) (live.Session, error) {
	if id == "" {
		return s.CreateSession(ctx, streamTitle)
	}

	session, err := s.GetSession(ctx, id)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return live.Session{}, err
	}

	// Concurrent first comments may race here; the conflict clause keeps the first row.
	_, err = s.exec(ctx, `INSERT INTO sessions (id, stream_title, started_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		id, sessionTitle(streamTitle), s.now().UnixNano())
	if err != nil {
		return live.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s.GetSession(ctx, id)
}

func (s *SQLStore) GetViewer(ctx context.Context, sessionID, username string) (live.Viewer, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT id, session_id, username, username_reading
		FROM viewers
		WHERE session_id = ? AND username = ?
	`), sessionID, username)

	var v live.Viewer
	if err := row.Scan(&v.ID, &v.SessionID, &v.Username, &v.UsernameReading); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return live.Viewer{}, ErrViewerNotFound
		}
		return live.Viewer{}, fmt.Errorf("scan viewer: %w", err)
	}
	return v, nil
}

func (s *SQLStore) AddViewer(ctx context.Context, viewer live.Viewer) error {
	_, err := s.exec(ctx, `
		INSERT INTO viewers (session_id, username, username_reading)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id, username) DO NOTHING
	`, viewer.SessionID, viewer.Username, viewer.UsernameReading)
	if err != nil {
		return fmt.Errorf("insert viewer: %w", err)
	}
	return nil
}

func (s *SQLStore) ListViewers(ctx context.Context, sessionID string) ([]live.Viewer, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT id, session_id, username, username_reading
		FROM viewers
		WHERE session_id = ?
		ORDER BY id ASC
	`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("query viewers: %w", err)
	}
	defer rows.Close()

	viewers := make([]live.Viewer, 0)
	for rows.Next() {
		var v live.Viewer
		if err := rows.Scan(&v.ID, &v.SessionID, &v.Username, &v.UsernameReading); err != nil {
			return nil, fmt.Errorf("scan viewer: %w", err)
		}
		viewers = append(viewers, v)
	}
	return viewers, rows.Err()
}

func (s *SQLStore) AddConversation(ctx context.Context, conv live.Conversation) error {
	ts := conv.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.exec(ctx, `
		INSERT INTO conversations (session_id, username, comment, response, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, conv.SessionID, conv.Username, conv.Comment, conv.Response, ts.UnixNano())
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	// Trim runs after every insert; concurrent trims converge on the same top-N set.
	res, err := s.exec(ctx, `
		DELETE FROM conversations
		WHERE session_id = ? AND id NOT IN (
			SELECT id FROM conversations
			WHERE session_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
	`, conv.SessionID, conv.SessionID, RetentionLimit)
	if err != nil {
		return fmt.Errorf("trim conversations: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Debug().Str("component", "store").Str("session", conv.SessionID).Int64("deleted", n).Msg("conversation history trimmed")
	}
	return nil
}

func (s *SQLStore) GetConversations(ctx context.Context, sessionID string, limit int) ([]live.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT id, session_id, username, comment, response, created_at
		FROM conversations
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), sessionID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]live.Conversation, 0)
	for rows.Next() {
		var (
			c  live.Conversation
			ts int64
		)
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Username, &c.Comment, &c.Response, &ts); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Timestamp = fromUnixNano(ts)
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
