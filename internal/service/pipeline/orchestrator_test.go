package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/store"
)

// scripted records prompts and answers from a fixed reply or error.
type scripted struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *scripted) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type harness struct {
	store   store.Store
	reading *scripted
	filter  *scripted
	reply   *scripted
	states  []State
	orch    *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{
		store:   st,
		reading: &scripted{reply: "ヤマダ"},
		filter:  &scripted{reply: `{"shouldRespond": true}`},
		reply:   &scripted{reply: "```json\n{\"segments\":[{\"text\":\"初めまして！\",\"emotion\":\"happy\"}]}\n```"},
	}
	var mu sync.Mutex
	h.orch = NewFromDependencies(Dependencies{
		Store:        st,
		Reading:      h.reading,
		Filter:       h.filter,
		Reply:        h.reply,
		PersonaName:  "ニケ",
		DefaultTitle: "雑談配信",
	}, WithStageObserver(func(state State, _ time.Duration, _ error) {
		mu.Lock()
		h.states = append(h.states, state)
		mu.Unlock()
	}))
	return h
}

func (h *harness) conversations(t *testing.T, sessionID string) []live.Conversation {
	t.Helper()
	history, err := h.store.GetConversations(context.Background(), sessionID, 1000)
	require.NoError(t, err)
	return history
}

func TestFirstCommentFromNewViewer(t *testing.T) {
	h := newHarness(t)
	h.filter.reply = `{"shouldRespond": false}`

	out, err := h.orch.Process(context.Background(), live.CommentInput{SessionID: "s1", Username: "山田", Comment: "こんにちは"})
	require.NoError(t, err)

	assert.Equal(t, live.ReplyOutput{
		Version:         live.OutputVersion,
		SessionID:       "s1",
		Segments:        []live.Segment{{Text: "初めまして！", Emotion: "happy"}},
		Response:        "初めまして！",
		Emotion:         "happy",
		UsernameReading: "ヤマダ",
		IsFirstTime:     true,
		ShouldRespond:   true,
	}, out)

	assert.Equal(t, 0, h.filter.calls(), "first-time viewers bypass the classifier")
	assert.Equal(t, []State{StateResolvingViewer, StateFiltering, StateBuildingContext, StateGenerating, StateArchiving, StateDone}, h.states)

	v, err := h.store.GetViewer(context.Background(), "s1", "山田")
	require.NoError(t, err)
	assert.Equal(t, "ヤマダ", v.UsernameReading)

	history := h.conversations(t, "s1")
	require.Len(t, history, 1)
	assert.Equal(t, "こんにちは", history[0].Comment)

	require.Len(t, h.reply.prompts, 1)
	assert.Contains(t, h.reply.prompts[0], "【配信タイトル】雑談配信")
	assert.Contains(t, h.reply.prompts[0], "山田さん（読み: ヤマダ）【初見】: こんにちは")
	assert.Contains(t, h.reply.prompts[0], "※この視聴者は初見です")
}

func TestReturningViewerNoiseIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Process(ctx, live.CommentInput{SessionID: "s1", Username: "山田", Comment: "こんにちは"})
	require.NoError(t, err)
	before := len(h.conversations(t, "s1"))

	h.states = nil
	h.filter.reply = `{"shouldRespond": false}`
	out, err := h.orch.Process(ctx, live.CommentInput{SessionID: "s1", Username: "山田", Comment: "w"})
	require.NoError(t, err)

	assert.False(t, out.ShouldRespond)
	assert.False(t, out.IsFirstTime)
	assert.Empty(t, out.Segments)
	assert.NotNil(t, out.Segments)
	assert.Equal(t, "neutral", out.Emotion)
	assert.Equal(t, "ヤマダ", out.UsernameReading)
	assert.Equal(t, []State{StateResolvingViewer, StateFiltering, StateRejected}, h.states)
	assert.Len(t, h.conversations(t, "s1"), before)
	assert.Equal(t, 1, h.reply.calls())
	assert.Equal(t, 1, h.reading.calls())
}

func TestFilterFailureFailsOpen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Process(ctx, live.CommentInput{SessionID: "s1", Username: "山田", Comment: "こんにちは"})
	require.NoError(t, err)

	h.filter.err = errors.New("classifier down")
	h.reply.reply = `{"response":"やあ","emotion":"thinking"}`
	out, err := h.orch.Process(ctx, live.CommentInput{SessionID: "s1", Username: "山田", Comment: "元気？"})
	require.NoError(t, err)

	assert.True(t, out.ShouldRespond)
	assert.Equal(t, []live.Segment{{Text: "やあ", Emotion: "thinking"}}, out.Segments)
	assert.Len(t, h.conversations(t, "s1"), 2)
}

func TestReadingFailureAbortsTurn(t *testing.T) {
	h := newHarness(t)
	h.reading.err = errors.New("generator unreachable")

	_, err := h.orch.Process(context.Background(), live.CommentInput{SessionID: "s1", Username: "山田", Comment: "こんにちは"})
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StateResolvingViewer, stageErr.State)
	assert.ErrorIs(t, err, h.reading.err)

	_, err = h.store.GetViewer(context.Background(), "s1", "山田")
	assert.ErrorIs(t, err, store.ErrViewerNotFound)
	assert.Empty(t, h.conversations(t, "s1"))
	assert.Equal(t, 0, h.reply.calls())
}

func TestReplyFailureAbortsTurnWithoutConversation(t *testing.T) {
	h := newHarness(t)
	h.reply.err = errors.New("generator unreachable")

	_, err := h.orch.Process(context.Background(), live.CommentInput{SessionID: "s1", Username: "山田", Comment: "こんにちは"})

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StateGenerating, stageErr.State)
	assert.Empty(t, h.conversations(t, "s1"))

	// The viewer write of the aborted turn stays; the next comment is processed normally.
	h.reply.err = nil
	h.reply.reply = "普通の文章です"
	out, err := h.orch.Process(context.Background(), live.CommentInput{SessionID: "s1", Username: "山田", Comment: "もしもし"})
	require.NoError(t, err)
	assert.False(t, out.IsFirstTime)
	assert.Equal(t, []live.Segment{{Text: "普通の文章です", Emotion: "neutral"}}, out.Segments)
}

func TestEmptySessionIDCreatesSession(t *testing.T) {
	h := newHarness(t)

	out, err := h.orch.Process(context.Background(), live.CommentInput{Username: "taro", Comment: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, out.SessionID)

	session, err := h.store.GetSession(context.Background(), out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "雑談配信", session.StreamTitle)
}

func TestUsernameRequired(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Process(context.Background(), live.CommentInput{SessionID: "s1", Username: "  ", Comment: "hi"})
	assert.ErrorIs(t, err, ErrUsernameRequired)
	assert.Nil(t, h.states)
}

func TestConcurrentTurnsKeepInvariants(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.orch.Process(ctx, live.CommentInput{
				SessionID: "s1",
				Username:  fmt.Sprintf("viewer-%d", i%3),
				Comment:   fmt.Sprintf("comment %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	viewers, err := h.store.ListViewers(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, viewers, 3)
	assert.Len(t, h.conversations(t, "s1"), 24)
}

func TestHistoryNeverExceedsRetention(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.reply.reply = `{"segments":[{"text":"ok","emotion":"neutral"}]}`

	for i := 0; i < store.RetentionLimit+5; i++ {
		_, err := h.orch.Process(ctx, live.CommentInput{SessionID: "s1", Username: "山田", Comment: fmt.Sprintf("c%d", i)})
		require.NoError(t, err)
	}
	assert.Len(t, h.conversations(t, "s1"), store.RetentionLimit)
}
