// Package modelclient adapts llm.Provider SDK wrappers (pkg/llm/openai,
// pkg/llm/anthropic, pkg/llm/gemini) to the narrower, blocking
// text-in/text-out contract process.Model needs: a single prompt string
// in, a single response string and latency out. The provider, its model
// roster, and its credentials pass through unchanged; this package only
// narrows the call shape.
package modelclient

import (
	"context"
	"fmt"
	"time"

	"github.com/lonestarx1/gogrid/pkg/llm"
)

// Client wraps an llm.Provider so it satisfies process.ModelClient without
// pkg/process importing pkg/llm directly — the stage DSL stays agnostic to
// which concrete SDK backs a given agent.
type Client struct {
	provider     llm.Provider
	systemPrompt string
	maxTokens    int
	temperature  *float64
}

// Option configures a Client.
type Option func(*Client)

// WithSystemPrompt prepends a system message to every request this client
// issues.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) { c.systemPrompt = prompt }
}

// WithMaxTokens bounds the response length of every request.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) { c.maxTokens = maxTokens }
}

// WithTemperature sets the sampling temperature for every request.
func WithTemperature(temperature float64) Option {
	return func(c *Client) { c.temperature = &temperature }
}

// New wraps provider as a process.ModelClient.
func New(provider llm.Provider, opts ...Option) *Client {
	c := &Client{provider: provider}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call issues a single-turn completion request and returns the assistant
// message's text content, satisfying process.ModelClient.
func (c *Client) Call(ctx context.Context, model, prompt string) (string, int64, error) {
	var messages []llm.Message
	if c.systemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(c.systemPrompt))
	}
	messages = append(messages, llm.NewUserMessage(prompt))

	start := time.Now()
	resp, err := c.provider.Complete(ctx, llm.Params{
		Model:       model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return "", latency, fmt.Errorf("modelclient: complete: %w", err)
	}
	return resp.Message.Content, latency, nil
}
