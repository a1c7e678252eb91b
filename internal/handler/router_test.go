package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
	personaModel "github.com/zhouzirui/aituber/backend/internal/model/persona"
	"github.com/zhouzirui/aituber/backend/internal/service/broadcast"
	"github.com/zhouzirui/aituber/backend/internal/store"
)

type processorFunc func(ctx context.Context, in live.CommentInput) (live.ReplyOutput, error)

func (f processorFunc) Process(ctx context.Context, in live.CommentInput) (live.ReplyOutput, error) {
	return f(ctx, in)
}

func newDeps() Dependencies {
	return Dependencies{
		Store:         store.NewMemoryStore(),
		Personas:      personaModel.NewMemoryStore(personaModel.Seed()),
		ActivePersona: personaModel.DefaultID,
		DefaultTitle:  "雑談配信",
		Hub:           broadcast.NewHub(0),
	}
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := NewRouter(newDeps())

	if rec := serve(router, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

func TestRouterWithoutPipelineAnswers503(t *testing.T) {
	router := NewRouter(newDeps())

	for _, tc := range []struct{ method, target string }{
		{http.MethodPost, "/api/comments"},
		{http.MethodGet, "/api/stream/s1?username=a"},
		{http.MethodGet, "/api/ws/s1"},
	} {
		rec := serve(router, tc.method, tc.target, `{"username":"a"}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected 503, got %d", tc.method, tc.target, rec.Code)
		}
	}

	if rec := serve(router, http.MethodGet, "/api/persona", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected persona route to stay available, got %d", rec.Code)
	}
}

func TestRouterCommentRoute(t *testing.T) {
	deps := newDeps()
	deps.Pipeline = processorFunc(func(_ context.Context, in live.CommentInput) (live.ReplyOutput, error) {
		return live.ReplyOutput{SessionID: in.SessionID, Segments: []live.Segment{}, Emotion: "neutral"}, nil
	})
	router := NewRouter(deps)

	rec := serve(router, http.MethodPost, "/api/comments", `{"sessionId":"s1","username":"山田","comment":"w"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouterPreflight(t *testing.T) {
	router := NewRouter(newDeps())

	req := httptest.NewRequest(http.MethodOptions, "/api/comments", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code >= http.StatusBadRequest {
		t.Fatalf("expected preflight success, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}
