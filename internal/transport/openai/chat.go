package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/domain"
)

// chatTimeout bounds a single chat completion call.
const chatTimeout = 30 * time.Second

// ChatClient wraps the OpenAI-compatible chat completion API.
type ChatClient struct {
	client *openai.Client
	model  string
	hasKey bool
	logger *zap.Logger
}

// ChatConfig holds chat client settings.
type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewChatClient creates a chat completion client.
func NewChatClient(cfg *ChatConfig) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &ChatClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		hasKey: cfg.APIKey != "",
		logger: cfg.Logger,
	}
}

// Complete sends a system+user prompt pair and returns the assistant reply.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.hasKey {
		return "", fmt.Errorf("chat provider has no API key: %w", domain.ErrProviderUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion response")
	}

	return resp.Choices[0].Message.Content, nil
}
