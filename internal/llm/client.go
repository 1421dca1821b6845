package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mergewise/mergewise/pkg/logger"
	"github.com/sashabaranov/go-openai"
)

// Providers understood by the client.
const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// ErrEmptyResponse marks a successful call that returned no usable text.
// It is a hard failure and is never retried.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ModelSpec is the fully resolved configuration for one invocation.
type ModelSpec struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Invoker sends a system+user prompt pair to a model and returns its text.
type Invoker interface {
	Invoke(ctx context.Context, system, user string, spec ModelSpec) (string, error)
}

// Client dispatches to provider-specific calls with bounded retry on
// transient failures.
type Client struct {
	maxAttempts int
	backoffStep time.Duration
}

func NewClient() *Client {
	return &Client{maxAttempts: 3, backoffStep: 2 * time.Second}
}

// Invoke calls the model, retrying transient failures up to three times
// with increasing backoff. Empty successful responses fail immediately.
func (c *Client) Invoke(ctx context.Context, system, user string, spec ModelSpec) (string, error) {
	provider := ResolveProvider(spec)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		text, err := c.call(ctx, provider, system, user, spec)
		if err == nil {
			if strings.TrimSpace(text) == "" {
				return "", ErrEmptyResponse
			}
			return text, nil
		}

		lastErr = err
		if !isTransient(err) {
			return "", err
		}

		if attempt < c.maxAttempts {
			wait := c.backoffStep * time.Duration(attempt)
			logger.Warnf("[LLM] %s call failed (attempt %d/%d), retrying in %s: %v",
				provider, attempt, c.maxAttempts, wait, err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("model invocation failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) call(ctx context.Context, provider, system, user string, spec ModelSpec) (string, error) {
	logger.Infof("[LLM] Invoking provider=%s model=%s", provider, spec.Model)

	switch provider {
	case ProviderAnthropic:
		return callAnthropic(ctx, system, user, spec)
	case ProviderOllama:
		return callOllama(ctx, system, user, spec)
	case ProviderGemini:
		return callGemini(ctx, system, user, spec)
	case ProviderAzure:
		return callAzure(ctx, system, user, spec)
	default:
		return callOpenAI(ctx, system, user, spec)
	}
}

// ResolveProvider picks the wire dialect. An explicit provider wins;
// custom endpoints are classified by URL heuristics, defaulting to the
// OpenAI chat-completion dialect.
func ResolveProvider(spec ModelSpec) string {
	switch spec.Provider {
	case ProviderOpenAI, ProviderAzure, ProviderAnthropic, ProviderOllama, ProviderGemini:
		return spec.Provider
	}

	base := strings.ToLower(spec.BaseURL)
	switch {
	case strings.Contains(base, "anthropic"):
		return ProviderAnthropic
	case strings.Contains(base, "ollama") || strings.Contains(base, ":11434"):
		return ProviderOllama
	case strings.Contains(base, "generativelanguage") || strings.Contains(base, "googleapis"):
		return ProviderGemini
	default:
		return ProviderOpenAI
	}
}

// isTransient reports whether an error is worth retrying: network-level
// failures, rate limits and provider 5xx responses.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var anthErr *anthropic.Error
	if errors.As(err, &anthErr) {
		return anthErr.StatusCode == 429 || anthErr.StatusCode >= 500
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "EOF")
}
