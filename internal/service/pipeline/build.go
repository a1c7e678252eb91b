package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/aituber/backend/internal/config"
	"github.com/zhouzirui/aituber/backend/internal/model/persona"
	"github.com/zhouzirui/aituber/backend/internal/service/ai"
	"github.com/zhouzirui/aituber/backend/internal/store"
)

// ErrGenerationDisabled is returned by NewFromConfig when no AI credentials are configured.
var ErrGenerationDisabled = errors.New("text generation is not configured (set ARK_API_KEY and Model, or AI_PROVIDER=openai with OPENAI_API_KEY)")

// NewFromConfig builds the backend selected by cfg and the full pipeline for persona p.
func NewFromConfig(ctx context.Context, cfg config.AIConfig, st store.Store, p persona.Persona, defaultTitle string, opts ...Option) (*Orchestrator, error) {
	if !cfg.Enabled() {
		return nil, ErrGenerationDisabled
	}
	backend, err := ai.NewBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init text generation: %w", err)
	}
	return NewFromBackend(backend, st, p, defaultTitle, opts...), nil
}

// NewFromBackend builds the reading, filter and reply agents for p on backend and wires them to st.
func NewFromBackend(backend ai.Backend, st store.Store, p persona.Persona, defaultTitle string, opts ...Option) *Orchestrator {
	agents := ai.NewAgents(backend, p)
	return NewFromDependencies(Dependencies{
		Store:        st,
		Reading:      agents.Reading,
		Filter:       agents.Filter,
		Reply:        agents.Reply,
		PersonaName:  p.Name,
		DefaultTitle: defaultTitle,
	}, opts...)
}
