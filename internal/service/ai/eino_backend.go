package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// EinoBackend runs a system + user prompt through an eino chain backed by a chat model.
type EinoBackend struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewEinoBackend compiles the prompt chain around chatModel.
func NewEinoBackend(ctx context.Context, chatModel model.ChatModel) (*EinoBackend, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &EinoBackend{chain: runnable}, nil
}

// Complete implements Backend.
func (b *EinoBackend) Complete(ctx context.Context, system, user string) (string, error) {
	response, err := b.chain.Invoke(ctx, map[string]any{
		"system": system,
		"query":  user,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", ErrEmptyCompletion
	}
	return response.Content, nil
}
