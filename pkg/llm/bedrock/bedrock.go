package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
)

const (
	DefaultModel       = "amazon.titan-text-express-v1"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

// ConverseAPI is the subset of the Bedrock runtime client used here
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements interfaces.LLM on the Bedrock Converse API
type Client struct {
	api         ConverseAPI
	model       string
	maxTokens   int
	temperature float64
	topP        float64
	logger      logging.Logger
}

// Option represents an option for configuring the client
type Option func(*Client)

// WithModel sets the model id
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens sets the default token budget
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// WithTemperature sets the default temperature
func WithTemperature(temperature float64) Option {
	return func(c *Client) {
		c.temperature = temperature
	}
}

// WithTopP sets the default top_p
func WithTopP(topP float64) Option {
	return func(c *Client) {
		c.topP = topP
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client on an existing Converse implementation
func NewClient(api ConverseAPI, opts ...Option) *Client {
	c := &Client{
		api:         api,
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		topP:        DefaultTopP,
		logger:      logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientWithAWSConfig creates a client from an existing AWS config
func NewClientWithAWSConfig(awsConfig aws.Config, opts ...Option) (*Client, error) {
	if awsConfig.Region == "" {
		return nil, fmt.Errorf("region is required in AWS config")
	}
	return NewClient(bedrockruntime.NewFromConfig(awsConfig), opts...), nil
}

// NewClientForRegion loads the default AWS credential chain for region
func NewClientForRegion(ctx context.Context, region string, opts ...Option) (*Client, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewClientWithAWSConfig(awsConfig, opts...)
}

// Generate sends a single user turn and returns the concatenated text of the reply
func (c *Client) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	opts := interfaces.ApplyGenerateOptions(options...)
	input := c.buildInput(prompt, opts)

	c.logger.Debug(ctx, "Invoking Bedrock model", map[string]interface{}{
		"modelID":    c.model,
		"promptSize": len(prompt),
	})

	output, err := c.api.Converse(ctx, input)
	if err != nil {
		c.logger.Error(ctx, "Failed to invoke Bedrock model", map[string]interface{}{
			"modelID": c.model,
			"error":   err.Error(),
		})
		return "", fmt.Errorf("bedrock converse failed: %w", err)
	}

	text, err := outputText(output)
	if err != nil {
		return "", err
	}

	fields := map[string]interface{}{
		"modelID":    c.model,
		"stopReason": string(output.StopReason),
	}
	if output.Usage != nil {
		fields["inputTokens"] = aws.ToInt32(output.Usage.InputTokens)
		fields["outputTokens"] = aws.ToInt32(output.Usage.OutputTokens)
	}
	c.logger.Debug(ctx, "Successfully received response from Bedrock", fields)

	return text, nil
}

func (c *Client) buildInput(prompt string, opts *interfaces.GenerateOptions) *bedrockruntime.ConverseInput {
	maxTokens := c.maxTokens
	temperature := c.temperature
	topP := c.topP
	var stop []string
	if opts.LLMConfig != nil {
		if opts.LLMConfig.MaxTokens > 0 {
			maxTokens = opts.LLMConfig.MaxTokens
		}
		if opts.LLMConfig.Temperature != nil {
			temperature = *opts.LLMConfig.Temperature
		}
		if opts.LLMConfig.TopP > 0 {
			topP = opts.LLMConfig.TopP
		}
		stop = opts.LLMConfig.StopSequences
	}

	userText := prompt
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:     aws.Int32(int32(maxTokens)), // #nosec G115 -- bounded by configuration
			Temperature:   aws.Float32(float32(temperature)),
			TopP:          aws.Float32(float32(topP)),
			StopSequences: stop,
		},
	}

	if opts.SystemMessage != "" {
		if supportsSystemPrompt(c.model) {
			input.System = []types.SystemContentBlock{
				&types.SystemContentBlockMemberText{Value: opts.SystemMessage},
			}
		} else {
			userText = opts.SystemMessage + "\n\n" + prompt
		}
	}

	input.Messages = []types.Message{
		{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: userText}},
		},
	}
	return input
}

// supportsSystemPrompt reports whether the model accepts a Converse system block. Titan text models do not.
func supportsSystemPrompt(model string) bool {
	return !strings.HasPrefix(model, "amazon.titan-text")
}

func outputText(output *bedrockruntime.ConverseOutput) (string, error) {
	if output == nil {
		return "", errors.New("bedrock returned no output")
	}
	message, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("bedrock returned no message")
	}

	var parts []string
	for _, block := range message.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			parts = append(parts, text.Value)
		}
	}
	if len(parts) == 0 {
		return "", errors.New("bedrock returned no text content")
	}
	return strings.TrimSpace(strings.Join(parts, "")), nil
}

// Name implements interfaces.LLM.Name
func (c *Client) Name() string {
	return "bedrock"
}

// GetModel returns the model id
func (c *Client) GetModel() string {
	return c.model
}
