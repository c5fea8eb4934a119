package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"tabletop-chat/backend/pkg/secrets"
)

// OpenAIEngine calls an OpenAI compatible chat completion endpoint
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine builds the engine. baseURL may be empty for the public API.
func NewOpenAIEngine(apiKey, baseURL, model string) *OpenAIEngine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEngine{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// NewOpenAIEngineFromSecrets resolves the api key from the secrets manager
func NewOpenAIEngineFromSecrets(ctx context.Context, sm secrets.Manager, baseURL, model string) (*OpenAIEngine, error) {
	key, err := sm.GetSecret(ctx, secrets.KeyOpenAIAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve openai api key: %w", err)
	}
	return NewOpenAIEngine(key, baseURL, model), nil
}

// Generate sends the prompt as a single user message
func (e *OpenAIEngine) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response generated")
	}
	return resp.Choices[0].Message.Content, nil
}
