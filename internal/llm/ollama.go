package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// callOllama handles self-hosted Ollama endpoints via the native SDK.
func callOllama(ctx context.Context, system, user string, spec ModelSpec) (string, error) {
	baseURL := spec.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid ollama base URL: %w", err)
	}
	client := api.NewClient(u, http.DefaultClient)

	messages := []api.Message{}
	if system != "" {
		messages = append(messages, api.Message{Role: "system", Content: system})
	}
	messages = append(messages, api.Message{Role: "user", Content: user})

	var content strings.Builder
	err = client.Chat(ctx, &api.ChatRequest{
		Model:    spec.Model,
		Messages: messages,
		Options: map[string]interface{}{
			"temperature": spec.Temperature,
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}

	return content.String(), nil
}
