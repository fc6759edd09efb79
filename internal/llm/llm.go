package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/TobiSchelling/ExamBrief/internal/keypool"
)

// Request is a single chat completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	IsConfigured() bool
	Name() string
}

// ChatClient talks to an OpenAI-compatible chat completions endpoint.
// Groq and OpenAI both speak this protocol; only the base URL differs.
type ChatClient struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewChatClient creates a client for the endpoint at baseURL.
// An empty baseURL means the official OpenAI API.
func NewChatClient(model, baseURL string) *ChatClient {
	return &ChatClient{
		Model:   model,
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Complete sends req using key. A 429 response is reported as keypool.ErrRateLimited.
func (c *ChatClient) Complete(ctx context.Context, key string, req Request) (string, error) {
	cfg := openai.DefaultConfig(key)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	cfg.HTTPClient = c.client
	client := openai.NewClientWithConfig(cfg)

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", keypool.ErrRateLimited, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: HTTP %d", keypool.ErrRateLimited, reqErr.HTTPStatusCode)
	}
	return fmt.Errorf("chat completion: %w", err)
}

// PooledProvider sends every request through a key rotator, so all callers share
// the provider's throttle and failover policy.
type PooledProvider struct {
	Client      *ChatClient
	Keys        *keypool.Rotator
	MaxAttempts int
}

// NewPooledProvider creates a provider over client using keys for credentials.
func NewPooledProvider(client *ChatClient, keys *keypool.Rotator) *PooledProvider {
	return &PooledProvider{Client: client, Keys: keys}
}

// Name returns the rotator's provider name.
func (p *PooledProvider) Name() string { return p.Keys.Name() }

// IsConfigured checks if at least one usable key exists.
func (p *PooledProvider) IsConfigured() bool { return p.Keys.IsConfigured() }

// Generate completes req, rotating keys on failure. It returns keypool.ErrNoCredentials
// when no key is configured and a *keypool.ExhaustedError when every attempt failed.
func (p *PooledProvider) Generate(ctx context.Context, req Request) (string, error) {
	var out string
	err := p.Keys.Do(ctx, p.MaxAttempts, func(ctx context.Context, key string) error {
		text, err := p.Client.Complete(ctx, key, req)
		if err != nil {
			return err
		}
		if text == "" {
			return fmt.Errorf("empty response")
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// IsUnavailable reports whether err means the provider could not be used at all,
// as opposed to a single bad response.
func IsUnavailable(err error) bool {
	var ex *keypool.ExhaustedError
	return errors.Is(err, keypool.ErrNoCredentials) || errors.As(err, &ex)
}
