package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
)

const DefaultModel = "gpt-4o-mini"

// OpenAIClient implements interfaces.LLM on the chat completions API
type OpenAIClient struct {
	Client      openai.Client
	Model       string
	baseURL     string
	maxRetries  int
	maxTokens   int
	temperature *float64
	topP        float64
	logger      logging.Logger
}

// Option represents an option for configuring the OpenAI client
type Option func(*OpenAIClient)

// WithModel sets the model for the OpenAI client
func WithModel(model string) Option {
	return func(c *OpenAIClient) {
		if model != "" {
			c.Model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI compatible endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *OpenAIClient) {
		c.baseURL = baseURL
	}
}

// WithMaxRetries sets how many times the SDK retries a failed request
func WithMaxRetries(n int) Option {
	return func(c *OpenAIClient) {
		c.maxRetries = n
	}
}

// WithMaxTokens sets the default completion budget
func WithMaxTokens(maxTokens int) Option {
	return func(c *OpenAIClient) {
		c.maxTokens = maxTokens
	}
}

// WithTemperature sets the default temperature. Zero is sent as is.
func WithTemperature(temperature float64) Option {
	return func(c *OpenAIClient) {
		c.temperature = &temperature
	}
}

// WithTopP sets the default top_p
func WithTopP(topP float64) Option {
	return func(c *OpenAIClient) {
		c.topP = topP
	}
}

// WithLogger sets the logger for the OpenAI client
func WithLogger(logger logging.Logger) Option {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// NewClient creates a new OpenAI client
func NewClient(apiKey string, options ...Option) *OpenAIClient {
	c := &OpenAIClient{
		Model:      DefaultModel,
		maxRetries: 2,
		logger:     logging.NewNoOpLogger(),
	}
	for _, opt := range options {
		opt(c)
	}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(c.maxRetries),
	}
	if c.baseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(c.baseURL))
	}
	c.Client = openai.NewClient(requestOptions...)
	return c
}

// Generate sends the prompt as a single user message
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	opts := interfaces.ApplyGenerateOptions(options...)

	var messages []openai.ChatCompletionMessageParamUnion
	if opts.SystemMessage != "" {
		messages = append(messages, openai.SystemMessage(opts.SystemMessage))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.Model),
		Messages: messages,
	}
	c.applyParams(&params, opts.LLMConfig)

	c.logger.Debug(ctx, "Sending request to OpenAI", map[string]interface{}{
		"model":    c.Model,
		"messages": len(messages),
	})

	resp, err := c.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		fields := map[string]interface{}{
			"model": c.Model,
			"error": err.Error(),
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			fields["status"] = apiErr.StatusCode
		}
		c.logger.Error(ctx, "Error from OpenAI API", fields)
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completions returned")
	}

	c.logger.Debug(ctx, "Received response from OpenAI", map[string]interface{}{
		"model":            c.Model,
		"finishReason":     resp.Choices[0].FinishReason,
		"promptTokens":     resp.Usage.PromptTokens,
		"completionTokens": resp.Usage.CompletionTokens,
	})

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) applyParams(params *openai.ChatCompletionNewParams, cfg *interfaces.LLMConfig) {
	maxTokens := c.maxTokens
	temperature := c.temperature
	topP := c.topP
	var stop []string
	if cfg != nil {
		if cfg.MaxTokens > 0 {
			maxTokens = cfg.MaxTokens
		}
		if cfg.Temperature != nil {
			temperature = cfg.Temperature
		}
		if cfg.TopP > 0 {
			topP = cfg.TopP
		}
		stop = cfg.StopSequences
	}

	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	if temperature != nil {
		params.Temperature = openai.Float(*temperature)
	}
	if topP > 0 {
		params.TopP = openai.Float(topP)
	}
	if len(stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: stop}
	}
}

// Name implements interfaces.LLM.Name
func (c *OpenAIClient) Name() string {
	return "openai"
}

// GetModel returns the model name
func (c *OpenAIClient) GetModel() string {
	return c.Model
}
