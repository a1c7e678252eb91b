// Package reply assembles the reply prompt, calls the reply agent and normalises its output.
package reply

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/viewer"
	"github.com/zhouzirui/aituber/backend/internal/store"
)

// HistoryLimit is how many past exchanges are rendered into the prompt.
const HistoryLimit = 50

const noHistoryMarker = "(まだ会話はありません)"

// ContextBuilder renders stream metadata, recent history and the current comment into one block.
type ContextBuilder struct {
	store       store.Store
	personaName string
}

// NewContextBuilder creates a ContextBuilder. personaName labels the persona's lines in history.
func NewContextBuilder(st store.Store, personaName string) *ContextBuilder {
	if strings.TrimSpace(personaName) == "" {
		personaName = "ニケ"
	}
	return &ContextBuilder{store: st, personaName: personaName}
}

// Build returns the context block for comment from the resolved viewer.
func (b *ContextBuilder) Build(ctx context.Context, res viewer.Resolution, comment string) (string, error) {
	history, err := b.store.GetConversations(ctx, res.SessionID, HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	return b.Render(res, comment, history), nil
}

// Render formats the block from a newest-first history slice.
func (b *ContextBuilder) Render(res viewer.Resolution, comment string, newestFirst []live.Conversation) string {
	blocks := make([]string, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		c := newestFirst[i]
		blocks = append(blocks, fmt.Sprintf("%s: %s\n%s: %s", c.Username, c.Comment, b.personaName, c.Response))
	}

	historyText := strings.Join(blocks, "\n\n")
	if historyText == "" {
		historyText = noHistoryMarker
	}

	firstTimeMark := ""
	if res.IsFirstTime {
		firstTimeMark = "【初見】"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "【配信タイトル】%s\n\n", res.StreamTitle)
	fmt.Fprintf(&sb, "【直近の会話】\n%s\n\n", historyText)
	fmt.Fprintf(&sb, "【今回のコメント】\n%sさん（読み: %s）%s: %s", res.Username, res.UsernameReading, firstTimeMark, comment)
	return strings.TrimSpace(sb.String())
}
