package llm

import (
	"errors"
	"testing"
)

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name string
		spec ModelSpec
		want string
	}{
		{
			name: "explicit anthropic",
			spec: ModelSpec{Provider: "anthropic", BaseURL: "https://api.openai.com/v1"},
			want: ProviderAnthropic,
		},
		{
			name: "explicit azure",
			spec: ModelSpec{Provider: "azure"},
			want: ProviderAzure,
		},
		{
			name: "custom endpoint defaults to openai dialect",
			spec: ModelSpec{BaseURL: "https://llm.internal.example.com/v1"},
			want: ProviderOpenAI,
		},
		{
			name: "anthropic endpoint heuristic",
			spec: ModelSpec{BaseURL: "https://api.anthropic.com"},
			want: ProviderAnthropic,
		},
		{
			name: "ollama port heuristic",
			spec: ModelSpec{BaseURL: "http://localhost:11434"},
			want: ProviderOllama,
		},
		{
			name: "gemini endpoint heuristic",
			spec: ModelSpec{BaseURL: "https://generativelanguage.googleapis.com"},
			want: ProviderGemini,
		},
		{
			name: "empty spec",
			spec: ModelSpec{},
			want: ProviderOpenAI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveProvider(tt.spec); got != tt.want {
				t.Errorf("ResolveProvider() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if isTransient(errors.New("invalid api key")) {
		t.Error("auth error treated as transient")
	}
	if !isTransient(errors.New("dial tcp: connection refused")) {
		t.Error("connection refused should be transient")
	}
	if !isTransient(errors.New("request timeout exceeded")) {
		t.Error("timeout should be transient")
	}
	if isTransient(ErrEmptyResponse) {
		t.Error("empty response must not be retried")
	}
}
