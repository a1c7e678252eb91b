// Package store persists sessions, viewers and conversation history.
//
// A Store is constructed once at process start and passed by reference into every component
// that needs it; there is no package level connection.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
)

// RetentionLimit is the maximum number of conversations kept per session.
const RetentionLimit = 100

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrViewerNotFound    = errors.New("viewer not found")
	ErrUnsupportedDriver = errors.New("unsupported store driver")
)

// Store is the CRUD surface consumed by the comment pipeline and the session API.
type Store interface {
	// CreateSession starts a new session with a generated id.
	CreateSession(ctx context.Context, streamTitle string) (live.Session, error)
	GetSession(ctx context.Context, id string) (live.Session, error)
	// EndSession stamps endedAt and returns the updated session.
	EndSession(ctx context.Context, id string) (live.Session, error)
	// GetOrCreateSession returns the session with id, creating it with streamTitle when absent.
	// An empty id behaves like CreateSession.
	GetOrCreateSession(ctx context.Context, id, streamTitle string) (live.Session, error)

	GetViewer(ctx context.Context, sessionID, username string) (live.Viewer, error)
	// AddViewer inserts the viewer unless (sessionID, username) already exists; existing rows are never updated.
	AddViewer(ctx context.Context, viewer live.Viewer) error
	ListViewers(ctx context.Context, sessionID string) ([]live.Viewer, error)

	// AddConversation records an exchange and trims the session to RetentionLimit rows.
	AddConversation(ctx context.Context, conv live.Conversation) error
	// GetConversations returns up to limit conversations, newest first.
	GetConversations(ctx context.Context, sessionID string, limit int) ([]live.Conversation, error)

	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open builds the store for driver and applies the schema.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return RetentionLimit
	}
	return limit
}

func sessionTitle(title string) string {
	if title == "" {
		return live.DefaultStreamTitle
	}
	return title
}
