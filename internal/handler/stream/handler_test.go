package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/ai"
	"github.com/zhouzirui/aituber/backend/internal/service/pipeline"
)

type processorFunc func(ctx context.Context, in live.CommentInput) (live.ReplyOutput, error)

func (f processorFunc) Process(ctx context.Context, in live.CommentInput) (live.ReplyOutput, error) {
	return f(ctx, in)
}

func serve(p pipeline.Processor, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	New(p, nil).RegisterRoutes(r)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func events(body string) []string {
	var names []string
	for _, line := range strings.Split(body, "\n") {
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		}
	}
	return names
}

func TestStreamSendsSegments(t *testing.T) {
	var got live.CommentInput
	resp := serve(processorFunc(func(_ context.Context, in live.CommentInput) (live.ReplyOutput, error) {
		got = in
		return live.ReplyOutput{
			SessionID:     in.SessionID,
			Segments:      []live.Segment{{Text: "初めまして！", Emotion: "happy"}, {Text: "よろしくね", Emotion: "neutral"}},
			ShouldRespond: true,
		}, nil
	}), "/stream/s1?username=%E5%B1%B1%E7%94%B0&comment=hi")

	if got.SessionID != "s1" || got.Username != "山田" || got.Comment != "hi" {
		t.Fatalf("unexpected input %+v", got)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	want := []string{EventStart, EventSegment, EventSegment, EventEnd}
	if names := events(resp.Body.String()); strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("expected events %v, got %v", want, names)
	}
	if !strings.Contains(resp.Body.String(), `"text":"よろしくね"`) {
		t.Fatalf("missing segment payload: %s", resp.Body.String())
	}
}

func TestStreamSkipped(t *testing.T) {
	resp := serve(processorFunc(func(context.Context, live.CommentInput) (live.ReplyOutput, error) {
		return live.ReplyOutput{SessionID: "s1", Segments: []live.Segment{}}, nil
	}), "/stream/s1?username=a&comment=w")

	names := events(resp.Body.String())
	if len(names) != 2 || names[1] != EventSkipped {
		t.Fatalf("expected start,skipped got %v", names)
	}
}

func TestStreamGenerationError(t *testing.T) {
	resp := serve(processorFunc(func(context.Context, live.CommentInput) (live.ReplyOutput, error) {
		return live.ReplyOutput{}, &pipeline.StageError{State: pipeline.StateGenerating, Err: &ai.GenerationError{Agent: "reply", Err: errors.New("down")}}
	}), "/stream/s1?username=a&comment=hi")

	names := events(resp.Body.String())
	if len(names) != 2 || names[1] != EventError {
		t.Fatalf("expected start,error got %v", names)
	}
	if !strings.Contains(resp.Body.String(), `"status":502`) {
		t.Fatalf("expected 502 status in payload: %s", resp.Body.String())
	}
}

func TestStreamRequiresUsername(t *testing.T) {
	resp := serve(processorFunc(func(context.Context, live.CommentInput) (live.ReplyOutput, error) {
		t.Fatal("pipeline should not run")
		return live.ReplyOutput{}, nil
	}), "/stream/s1?comment=hi")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
