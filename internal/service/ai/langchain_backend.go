package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LangchainBackend completes prompts through any langchaingo model (OpenAI by default).
type LangchainBackend struct {
	llm  llms.Model
	opts []llms.CallOption
}

// NewLangchainBackend wraps llm; opts are applied to every call.
func NewLangchainBackend(llm llms.Model, opts ...llms.CallOption) *LangchainBackend {
	return &LangchainBackend{llm: llm, opts: opts}
}

// Complete implements Backend.
func (b *LangchainBackend) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := b.llm.GenerateContent(ctx, messages, b.opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}
