// Package filter decides whether a comment is worth a reply.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/service/ai"
)

// Filter classifies comments with the filter agent and fails open.
type Filter struct {
	classifier ai.Generator
}

// New creates a Filter. A nil classifier makes every comment pass.
func New(classifier ai.Generator) *Filter {
	return &Filter{classifier: classifier}
}

// ShouldRespond reports whether comment deserves a reply. First-time viewers always get one.
// Classifier errors and unreadable answers count as true.
func (f *Filter) ShouldRespond(ctx context.Context, comment string, isFirstTime bool) bool {
	if isFirstTime {
		return true
	}
	if f == nil || f.classifier == nil {
		return true
	}

	raw, err := f.classifier.Generate(ctx, comment)
	if err != nil {
		log.Warn().Err(err).Str("component", "filter").Msg("classifier failed, responding anyway")
		return true
	}

	decision, err := parseDecision(raw)
	if err != nil {
		log.Warn().Err(err).Str("component", "filter").Str("raw", raw).Msg("classifier output unreadable, responding anyway")
		return true
	}
	return decision
}

type classifierPayload struct {
	ShouldRespond *bool `json:"shouldRespond"`
}

// parseDecision reads the first JSON object in content.
func parseDecision(content string) (bool, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return false, fmt.Errorf("missing json object")
	}

	var payload classifierPayload
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return false, err
	}
	if payload.ShouldRespond == nil {
		return false, fmt.Errorf("missing shouldRespond")
	}
	return *payload.ShouldRespond, nil
}
