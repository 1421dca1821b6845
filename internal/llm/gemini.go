package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// callGemini handles the Google Gemini API via the native SDK.
func callGemini(ctx context.Context, system, user string, spec ModelSpec) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: spec.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("gemini client error: %w", err)
	}

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: system}},
			},
		}
	}

	resp, err := client.Models.GenerateContent(ctx, spec.Model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	return resp.Text(), nil
}
