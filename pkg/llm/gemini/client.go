package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
)

const DefaultModel = "gemini-2.0-flash"

// GeminiClient implements interfaces.LLM on the Gemini API
type GeminiClient struct {
	client      *genai.Client
	model       string
	apiKey      string
	baseURL     string
	maxTokens   int
	temperature *float64
	topP        float64
	logger      logging.Logger
}

// Option represents an option for configuring the Gemini client
type Option func(*GeminiClient)

// WithModel sets the model name
func WithModel(model string) Option {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithAPIKey sets the API key
func WithAPIKey(apiKey string) Option {
	return func(c *GeminiClient) {
		c.apiKey = apiKey
	}
}

// WithBaseURL overrides the API endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *GeminiClient) {
		c.baseURL = baseURL
	}
}

// WithClient injects an already initialized genai.Client
func WithClient(existing *genai.Client) Option {
	return func(c *GeminiClient) {
		c.client = existing
	}
}

// WithMaxTokens sets the default output budget
func WithMaxTokens(maxTokens int) Option {
	return func(c *GeminiClient) {
		c.maxTokens = maxTokens
	}
}

// WithTemperature sets the default temperature
func WithTemperature(temperature float64) Option {
	return func(c *GeminiClient) {
		c.temperature = &temperature
	}
}

// WithTopP sets the default top_p
func WithTopP(topP float64) Option {
	return func(c *GeminiClient) {
		c.topP = topP
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *GeminiClient) {
		c.logger = logger
	}
}

// NewClient creates a Gemini client on the Gemini API backend
func NewClient(ctx context.Context, options ...Option) (*GeminiClient, error) {
	c := &GeminiClient{
		model:  DefaultModel,
		logger: logging.NewNoOpLogger(),
	}
	for _, opt := range options {
		opt(c)
	}

	if c.client != nil {
		return c, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key is required for Gemini API backend")
	}

	clientConfig := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  c.apiKey,
	}
	if c.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = client
	return c, nil
}

// Generate sends the prompt as a single user turn
func (c *GeminiClient) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	opts := interfaces.ApplyGenerateOptions(options...)

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	c.logger.Debug(ctx, "Sending request to Gemini", map[string]interface{}{
		"model":      c.model,
		"promptSize": len(prompt),
	})

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.contentConfig(opts))
	if err != nil {
		c.logger.Error(ctx, "Error from Gemini API", map[string]interface{}{
			"model": c.model,
			"error": err.Error(),
		})
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini returned no text content")
	}

	fields := map[string]interface{}{"model": c.model}
	if resp.UsageMetadata != nil {
		fields["promptTokens"] = resp.UsageMetadata.PromptTokenCount
		fields["candidateTokens"] = resp.UsageMetadata.CandidatesTokenCount
	}
	c.logger.Debug(ctx, "Received response from Gemini", fields)

	return text, nil
}

func (c *GeminiClient) contentConfig(opts *interfaces.GenerateOptions) *genai.GenerateContentConfig {
	maxTokens := c.maxTokens
	temperature := c.temperature
	topP := c.topP
	config := &genai.GenerateContentConfig{}
	if opts.LLMConfig != nil {
		if opts.LLMConfig.MaxTokens > 0 {
			maxTokens = opts.LLMConfig.MaxTokens
		}
		if opts.LLMConfig.Temperature != nil {
			temperature = opts.LLMConfig.Temperature
		}
		if opts.LLMConfig.TopP > 0 {
			topP = opts.LLMConfig.TopP
		}
		config.StopSequences = opts.LLMConfig.StopSequences
	}

	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens) // #nosec G115 -- bounded by configuration
	}
	if temperature != nil {
		config.Temperature = genai.Ptr(float32(*temperature))
	}
	if topP > 0 {
		config.TopP = genai.Ptr(float32(topP))
	}
	if opts.SystemMessage != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: opts.SystemMessage}},
		}
	}
	return config
}

// Name implements interfaces.LLM.Name
func (c *GeminiClient) Name() string {
	return "gemini"
}

// GetModel returns the model name
func (c *GeminiClient) GetModel() string {
	return c.model
}
