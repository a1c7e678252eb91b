// Package archive records finished exchanges and builds the public reply output.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/zhouzirui/aituber/backend/internal/analysis/emotion"
	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/viewer"
	"github.com/zhouzirui/aituber/backend/internal/store"
)

// Archiver persists replies. Retention is enforced by the store on every insert.
type Archiver struct {
	store store.Store
	now   func() time.Time
}

// New creates an Archiver.
func New(st store.Store) *Archiver {
	return &Archiver{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Archive stores the exchange and returns the output for the turn.
func (a *Archiver) Archive(ctx context.Context, res viewer.Resolution, comment string, segments []live.Segment) (live.ReplyOutput, error) {
	full := live.JoinSegments(segments)

	if err := a.store.AddConversation(ctx, live.Conversation{
		SessionID: res.SessionID,
		Username:  res.Username,
		Comment:   comment,
		Response:  full,
		Timestamp: a.now(),
	}); err != nil {
		return live.ReplyOutput{}, fmt.Errorf("archive conversation: %w", err)
	}

	return live.ReplyOutput{
		Version:         live.OutputVersion,
		SessionID:       res.SessionID,
		Segments:        segments,
		Response:        full,
		Emotion:         MainEmotion(segments),
		UsernameReading: res.UsernameReading,
		IsFirstTime:     res.IsFirstTime,
		ShouldRespond:   true,
	}, nil
}

// MainEmotion is the first segment's emotion, or neutral.
func MainEmotion(segments []live.Segment) string {
	if len(segments) == 0 {
		return string(emotion.Neutral)
	}
	return emotion.Normalize(segments[0].Emotion)
}
