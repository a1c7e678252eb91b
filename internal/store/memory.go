package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
)

type viewerKey struct {
	sessionID string
	username  string
}

// MemoryStore keeps everything in process memory. Useful for local runs and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string]live.Session
	viewers       map[viewerKey]live.Viewer
	viewerOrder   map[string][]viewerKey
	conversations map[string][]live.Conversation
	nextID        int64
	now           func() time.Time
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]live.Session),
		viewers:       make(map[viewerKey]live.Viewer),
		viewerOrder:   make(map[string][]viewerKey),
		conversations: make(map[string][]live.Conversation),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, streamTitle string) (live.Session, error) {
	session := live.Session{
		ID:          uuid.NewString(),
		StreamTitle: sessionTitle(streamTitle),
		StartedAt:   s.now(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (live.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return live.Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *MemoryStore) EndSession(_ context.Context, id string) (live.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return live.Session{}, ErrSessionNotFound
	}
	endedAt := s.now()
	session.EndedAt = &endedAt
	s.sessions[id] = session
	return session, nil
}

func (s *MemoryStore) GetOrCreateSession(ctx context.Context, id, streamTitle string) (live.Session, error) {
	if id == "" {
		return s.CreateSession(ctx, streamTitle)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	session := live.Session{ID: id, StreamTitle: sessionTitle(streamTitle), StartedAt: s.now()}
	s.sessions[id] = session
	return session, nil
}

func (s *MemoryStore) GetViewer(_ context.Context, sessionID, username string) (live.Viewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.viewers[viewerKey{sessionID, username}]
	if !ok {
		return live.Viewer{}, ErrViewerNotFound
	}
	return v, nil
}

func (s *MemoryStore) AddViewer(_ context.Context, viewer live.Viewer) error {
	key := viewerKey{viewer.SessionID, viewer.Username}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.viewers[key]; exists {
		return nil
	}
	s.nextID++
	viewer.ID = s.nextID
	s.viewers[key] = viewer
	s.viewerOrder[viewer.SessionID] = append(s.viewerOrder[viewer.SessionID], key)
	return nil
}

func (s *MemoryStore) ListViewers(_ context.Context, sessionID string) ([]live.Viewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.viewerOrder[sessionID]
	viewers := make([]live.Viewer, 0, len(keys))
	for _, key := range keys {
		viewers = append(viewers, s.viewers[key])
	}
	return viewers, nil
}

func (s *MemoryStore) AddConversation(_ context.Context, conv live.Conversation) error {
	if conv.Timestamp.IsZero() {
		conv.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	conv.ID = s.nextID
	history := append(s.conversations[conv.SessionID], conv)
	sortNewestFirst(history)
	if len(history) > RetentionLimit {
		history = history[:RetentionLimit]
	}
	s.conversations[conv.SessionID] = history
	return nil
}

func (s *MemoryStore) GetConversations(_ context.Context, sessionID string, limit int) ([]live.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.conversations[sessionID]
	limit = normalizeLimit(limit)
	if len(history) < limit {
		limit = len(history)
	}

	copied := make([]live.Conversation, limit)
	copy(copied, history[:limit])
	return copied, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func sortNewestFirst(history []live.Conversation) {
	sort.SliceStable(history, func(i, j int) bool {
		if history[i].Timestamp.Equal(history[j].Timestamp) {
			return history[i].ID > history[j].ID
		}
		return history[i].Timestamp.After(history[j].Timestamp)
	})
}
