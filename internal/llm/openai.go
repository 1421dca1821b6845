package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// callOpenAI handles OpenAI and OpenAI-compatible chat-completion APIs,
// including custom self-hosted endpoints.
func callOpenAI(ctx context.Context, system, user string, spec ModelSpec) (string, error) {
	clientConfig := openai.DefaultConfig(spec.APIKey)
	if spec.BaseURL != "" {
		clientConfig.BaseURL = spec.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	return openAIChat(ctx, client, system, user, spec)
}

// callAzure handles Azure OpenAI deployments. BaseURL is the resource
// endpoint; the model field carries the deployment name.
func callAzure(ctx context.Context, system, user string, spec ModelSpec) (string, error) {
	clientConfig := openai.DefaultAzureConfig(spec.APIKey, spec.BaseURL)
	client := openai.NewClientWithConfig(clientConfig)

	return openAIChat(ctx, client, system, user, spec)
}

func openAIChat(ctx context.Context, client *openai.Client, system, user string, spec ModelSpec) (string, error) {
	temperature := float32(0.3)
	if spec.Temperature > 0 {
		temperature = float32(spec.Temperature)
	}

	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	req := openai.ChatCompletionRequest{
		Model:       spec.Model,
		Messages:    messages,
		Temperature: temperature,
	}
	if spec.MaxTokens > 0 {
		req.MaxTokens = spec.MaxTokens
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
