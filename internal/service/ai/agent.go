package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/config"
	"github.com/zhouzirui/aituber/backend/internal/model/persona"
	"github.com/zhouzirui/aituber/backend/internal/telemetry"
)

// ErrEmptyCompletion is returned when a backend answers without any choice.
var ErrEmptyCompletion = errors.New("empty completion")

// GenerationError is returned by Agent when the backend call fails.
type GenerationError struct {
	Agent string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s agent: %v", e.Agent, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator turns a single user-turn prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Backend completes a system + user prompt pair.
type Backend interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Agent binds fixed instructions to a backend.
type Agent struct {
	name         string
	instructions string
	backend      Backend
}

// NewAgent creates an agent.
func NewAgent(name, instructions string, backend Backend) *Agent {
	return &Agent{name: name, instructions: instructions, backend: backend}
}

// Name returns the agent name used in logs and metrics.
func (a *Agent) Name() string {
	return a.name
}

// Generate implements Generator. Errors are returned as-is; callers decide whether they are fatal.
func (a *Agent) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := a.backend.Complete(ctx, a.instructions, prompt)
	if err != nil {
		telemetry.CountGenerationFailure(a.name)
		return "", &GenerationError{Agent: a.name, Err: err}
	}

	log.Debug().
		Str("component", "ai").
		Str("agent", a.name).
		Int("length", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("generated completion")
	return text, nil
}

// Agents groups the three agents used by the comment pipeline.
type Agents struct {
	Reading *Agent
	Filter  *Agent
	Reply   *Agent
}

// NewAgents builds the reading, filter and reply agents on one backend.
func NewAgents(backend Backend, p persona.Persona) Agents {
	return Agents{
		Reading: NewAgent("reading", ReadingInstructions, backend),
		Filter:  NewAgent("filter", FilterInstructions, backend),
		Reply:   NewAgent("reply", NewPersonaPromptManager().BuildReplyInstructions(&p), backend),
	}
}

// NewBackend creates the backend selected by cfg.Provider.
func NewBackend(ctx context.Context, cfg config.AIConfig) (Backend, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		llm, err := cfg.NewOpenAIModel()
		if err != nil {
			return nil, fmt.Errorf("failed to create openai model: %w", err)
		}
		return NewLangchainBackend(llm, cfg.CallOptions()...), nil
	default:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewEinoBackend(ctx, chatModel)
	}
}
