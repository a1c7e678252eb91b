package comment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/ai"
	"github.com/zhouzirui/aituber/backend/internal/service/broadcast"
	"github.com/zhouzirui/aituber/backend/internal/service/pipeline"
)

type processorFunc func(ctx context.Context, in live.CommentInput) (live.ReplyOutput, error)

func (f processorFunc) Process(ctx context.Context, in live.CommentInput) (live.ReplyOutput, error) {
	return f(ctx, in)
}

func setupRouter(p pipeline.Processor, hub *broadcast.Hub) *chi.Mux {
	r := chi.NewRouter()
	New(p, hub).RegisterRoutes(r)
	return r
}

func postComment(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/comments", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCommentReplyIsReturnedAndBroadcast(t *testing.T) {
	hub := broadcast.NewHub(1)
	defer hub.Close()
	sub := hub.Subscribe("s1")

	var got live.CommentInput
	r := setupRouter(processorFunc(func(_ context.Context, in live.CommentInput) (live.ReplyOutput, error) {
		got = in
		return live.ReplyOutput{Version: 1, SessionID: "s1", Response: "やあ", ShouldRespond: true}, nil
	}), hub)

	resp := postComment(r, `{"sessionId":"s1","username":"山田","comment":"こんにちは"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got.Username != "山田" || got.Comment != "こんにちは" {
		t.Fatalf("unexpected input %+v", got)
	}

	var out live.ReplyOutput
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Response != "やあ" {
		t.Fatalf("expected response やあ, got %q", out.Response)
	}

	select {
	case published := <-sub.C():
		if published.Response != "やあ" {
			t.Fatalf("unexpected broadcast %+v", published)
		}
	default:
		t.Fatal("expected reply to be broadcast")
	}
}

func TestRejectedCommentIsNotBroadcast(t *testing.T) {
	hub := broadcast.NewHub(1)
	defer hub.Close()
	sub := hub.Subscribe("s1")

	r := setupRouter(processorFunc(func(context.Context, live.CommentInput) (live.ReplyOutput, error) {
		return live.ReplyOutput{SessionID: "s1", Segments: []live.Segment{}}, nil
	}), hub)

	resp := postComment(r, `{"sessionId":"s1","username":"山田","comment":"w"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	select {
	case out := <-sub.C():
		t.Fatalf("unexpected broadcast %+v", out)
	default:
	}
}

func TestCommentErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"missing username", `{"comment":"hi"}`, pipeline.ErrUsernameRequired, http.StatusBadRequest},
		{"generation failure", `{"username":"a","comment":"hi"}`, &pipeline.StageError{
			State: pipeline.StateGenerating,
			Err:   &ai.GenerationError{Agent: "reply", Err: errors.New("down")},
		}, http.StatusBadGateway},
		{"store failure", `{"username":"a","comment":"hi"}`, errors.New("db closed"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouter(processorFunc(func(context.Context, live.CommentInput) (live.ReplyOutput, error) {
				return live.ReplyOutput{}, tc.err
			}), nil)

			resp := postComment(r, tc.body)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}
