// Package viewer resolves the session and viewer identity behind an incoming comment.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/ai"
	"github.com/zhouzirui/aituber/backend/internal/store"
)

// Resolution is the identity a comment was resolved to.
type Resolution struct {
	SessionID       string
	StreamTitle     string
	Username        string
	UsernameReading string
	IsFirstTime     bool
}

// Resolver looks up or creates the session, then the viewer. Unseen viewers get a reading from
// the reading generator before they are recorded.
type Resolver struct {
	store        store.Store
	reading      ai.Generator
	defaultTitle string
}

// NewResolver creates a Resolver. defaultTitle is used for sessions created on first reference.
func NewResolver(st store.Store, reading ai.Generator, defaultTitle string) *Resolver {
	if strings.TrimSpace(defaultTitle) == "" {
		defaultTitle = live.DefaultStreamTitle
	}
	return &Resolver{store: st, reading: reading, defaultTitle: defaultTitle}
}

// Resolve returns the resolved identity for username in sessionID. An empty sessionID starts a
// new session. A reading generator failure is returned as-is and nothing is recorded for the viewer.
func (r *Resolver) Resolve(ctx context.Context, sessionID, username string) (Resolution, error) {
	session, err := r.store.GetOrCreateSession(ctx, sessionID, r.defaultTitle)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve session: %w", err)
	}

	res := Resolution{
		SessionID:   session.ID,
		StreamTitle: session.StreamTitle,
		Username:    username,
	}

	existing, err := r.store.GetViewer(ctx, session.ID, username)
	switch {
	case err == nil:
		res.UsernameReading = existing.UsernameReading
		return res, nil
	case !errors.Is(err, store.ErrViewerNotFound):
		return Resolution{}, fmt.Errorf("lookup viewer: %w", err)
	}

	raw, err := r.reading.Generate(ctx, username)
	if err != nil {
		return Resolution{}, fmt.Errorf("infer reading: %w", err)
	}
	reading := strings.TrimSpace(raw)

	// Concurrent first comments may both get here; AddViewer keeps the first row and this turn
	// keeps its own reading.
	if err := r.store.AddViewer(ctx, live.Viewer{
		SessionID:       session.ID,
		Username:        username,
		UsernameReading: reading,
	}); err != nil {
		return Resolution{}, fmt.Errorf("add viewer: %w", err)
	}

	log.Info().
		Str("component", "viewer").
		Str("session", session.ID).
		Str("username", username).
		Str("reading", reading).
		Msg("new viewer")

	res.UsernameReading = reading
	res.IsFirstTime = true
	return res, nil
}
