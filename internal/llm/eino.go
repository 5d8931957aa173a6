package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wonny/stockgame/pkg/config"
)

// generator is the part of an eino chat model EinoClient needs
type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// EinoClient adapts an eino ChatModel to Completer
type EinoClient struct {
	model generator
}

// NewEinoClient builds an eino openai ChatModel against cfg.BaseURL
func NewEinoClient(ctx context.Context, cfg config.LLMConfig) (*EinoClient, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init eino chat model: %w", err)
	}

	return &EinoClient{model: chatModel}, nil
}

// Complete sends prompt as a single user message
func (c *EinoClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("eino generate: %w", err)
	}
	if resp == nil {
		return "", errors.New("eino generate returned no message")
	}

	return resp.Content, nil
}
