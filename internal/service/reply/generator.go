package reply

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/ai"
	"github.com/zhouzirui/aituber/backend/internal/telemetry"
)

const firstTimeNotice = "※この視聴者は初見です"

// Generator asks the reply agent for a reply and parses it into segments.
type Generator struct {
	agent ai.Generator
}

// NewGenerator creates a Generator around the reply agent.
func NewGenerator(agent ai.Generator) *Generator {
	return &Generator{agent: agent}
}

// BuildPrompt appends the first-time notice to the context block when needed.
func BuildPrompt(contextText string, isFirstTime bool) string {
	if !isFirstTime {
		return contextText
	}
	return contextText + "\n\n" + firstTimeNotice
}

// Generate returns a non-empty segment list. Only an agent error fails the call.
func (g *Generator) Generate(ctx context.Context, contextText string, isFirstTime bool) ([]live.Segment, error) {
	raw, err := g.agent.Generate(ctx, BuildPrompt(contextText, isFirstTime))
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	parsed := Parse(raw)
	telemetry.CountReplyShape(string(parsed.Shape))
	if parsed.Repaired {
		telemetry.CountReplyShape("repaired")
	}
	if parsed.Shape != ShapeSegments {
		log.Debug().
			Str("component", "reply").
			Str("shape", string(parsed.Shape)).
			Bool("repaired", parsed.Repaired).
			Msg("reply was not in segments form")
	}
	return parsed.Segments, nil
}
