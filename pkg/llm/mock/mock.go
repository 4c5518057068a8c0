// Package mock provides a scripted LLM for tests and offline runs.
package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
)

// ErrNoResponse is returned when the queue is empty and no fallback is configured
var ErrNoResponse = errors.New("mock llm has no queued response")

// Call records one Generate invocation
type Call struct {
	Prompt  string
	Options *interfaces.GenerateOptions
}

// Client is a deterministic LLM. It answers from a queue, then from a fallback, otherwise echoes.
type Client struct {
	mu        sync.Mutex
	model     string
	responses []string
	errs      []error
	fallback  *string
	echo      bool
	calls     []Call
}

// Option represents an option for configuring the mock
type Option func(*Client)

// WithModel sets the reported model name
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithResponses queues responses returned in order
func WithResponses(responses ...string) Option {
	return func(c *Client) {
		c.responses = append(c.responses, responses...)
	}
}

// WithError queues an error returned before any queued response
func WithError(err error) Option {
	return func(c *Client) {
		c.errs = append(c.errs, err)
	}
}

// WithFallback sets the response used once the queue is drained
func WithFallback(response string) Option {
	return func(c *Client) {
		c.fallback = &response
	}
}

// WithEcho answers with the prompt itself once the queue is drained
func WithEcho() Option {
	return func(c *Client) {
		c.echo = true
	}
}

// NewClient creates a new mock client
func NewClient(opts ...Option) *Client {
	c := &Client{model: "mock"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate returns the next scripted response
func (c *Client) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{Prompt: prompt, Options: interfaces.ApplyGenerateOptions(options...)})

	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return "", err
	}
	if len(c.responses) > 0 {
		resp := c.responses[0]
		c.responses = c.responses[1:]
		return resp, nil
	}
	if c.fallback != nil {
		return *c.fallback, nil
	}
	if c.echo {
		return fmt.Sprintf("[%s] %s", c.model, strings.TrimSpace(prompt)), nil
	}
	return "", ErrNoResponse
}

// Name implements interfaces.LLM.Name
func (c *Client) Name() string {
	return "mock"
}

// GetModel returns the model name
func (c *Client) GetModel() string {
	return c.model
}

// Calls returns a copy of the recorded invocations
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallCount returns the number of recorded invocations
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
