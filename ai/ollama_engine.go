package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaEngine talks to an ollama server over HTTP through langchaingo
type OllamaEngine struct {
	llm llms.Model
}

// NewOllamaEngine connects to the ollama server at serverURL
func NewOllamaEngine(serverURL, model string, httpClient *http.Client) (*OllamaEngine, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &OllamaEngine{llm: llm}, nil
}

// NewOllamaEngineWithModel wraps an existing langchaingo model
func NewOllamaEngineWithModel(llm llms.Model) *OllamaEngine {
	return &OllamaEngine{llm: llm}
}

// Generate sends the prompt as a single human message
func (e *OllamaEngine) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := e.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("ollama returned no choices")
	}
	return resp.Choices[0].Content, nil
}
