package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// ErrUnavailable means every model in the rotation failed or the breaker is
// open. Callers are expected to fall through to their non-LLM decision.
var ErrUnavailable = errors.New("llm unavailable")

// Completer is the narrow surface the adjudicator needs; tests substitute a
// canned implementation.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Free-tier rotations. Order matters: first entry is the preferred model,
// the rest absorb rate limits.
var (
	openRouterModels = []string{
		"meta-llama/llama-3.3-70b-instruct:free",
		"google/gemini-2.0-flash-exp:free",
		"mistralai/mistral-7b-instruct:free",
	}
	openAIModels = []string{
		"gpt-4o-mini",
	}
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Client talks to a chat-completion API with deterministic decoding, a
// round-robin model rotation retried on 429/5xx, and a circuit breaker so a
// dead provider stops costing latency.
type Client struct {
	api     *openai.Client
	models  []string
	breaker *gobreaker.CircuitBreaker
	next    atomic.Uint64
}

// NewClient wires the provider. With openRouter set, requests go to the
// OpenRouter endpoint and its free-tier rotation; otherwise straight to
// OpenAI.
func NewClient(apiKey string, openRouter bool) *Client {
	cfg := openai.DefaultConfig(apiKey)
	models := openAIModels
	if openRouter {
		cfg.BaseURL = openRouterBaseURL
		models = openRouterModels
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[LLM] Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		models:  models,
		breaker: breaker,
	}
}

// Complete sends one prompt and returns the raw completion text. Each model
// in the rotation gets one attempt; 429 and 5xx advance to the next model,
// anything else fails immediately.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := int(c.next.Add(1) - 1)

	var lastErr error
	for i := 0; i < len(c.models); i++ {
		model := c.models[(start+i)%len(c.models)]

		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.complete(ctx, model, prompt)
		})
		if err == nil {
			return out.(string), nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		if !retryable(err) {
			return "", err
		}
		log.Printf("[LLM] %s failed (%v), rotating to next model", model, err)
	}
	return "", fmt.Errorf("%w: all models failed: %v", ErrUnavailable, lastErr)
}

func (c *Client) complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		// Zero is dropped by omitempty during marshaling; the smallest
		// positive float is the wire encoding of "deterministic".
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   400,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion had no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// retryable reports whether the next model in the rotation should be tried.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return false
}
