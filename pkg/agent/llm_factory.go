package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ingenimax/llmops-agent/pkg/config"
	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/llm/bedrock"
	"github.com/Ingenimax/llmops-agent/pkg/llm/gemini"
	"github.com/Ingenimax/llmops-agent/pkg/llm/mock"
	"github.com/Ingenimax/llmops-agent/pkg/llm/openai"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
)

const defaultAWSRegion = "us-east-1"

// NewLLMFromConfig creates an LLM client from the workspace llm section
func NewLLMFromConfig(ctx context.Context, cfg config.LLMConfig, logger logging.Logger) (interfaces.LLM, error) {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	provider := strings.ToLower(cfg.Provider)

	logger.Debug(ctx, "Creating LLM from config", map[string]interface{}{
		"provider": provider,
		"model":    cfg.Model,
	})

	switch provider {
	case "bedrock":
		return createBedrockClient(ctx, cfg, logger)
	case "openai":
		return createOpenAIClient(cfg, logger)
	case "gemini":
		return createGeminiClient(ctx, cfg, logger)
	case "mock", "":
		options := []mock.Option{mock.WithEcho()}
		if model := providerModel(cfg, "mock", "MOCK_MODEL"); model != "" {
			options = append(options, mock.WithModel(model))
		}
		return mock.NewClient(options...), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: bedrock, openai, gemini, mock)", provider)
	}
}

// providerModel resolves the model name. The workspace default is a Bedrock model id,
// which other providers ignore in favour of their own default.
func providerModel(cfg config.LLMConfig, provider, envKey string) string {
	model := ExpandEnv(cfg.Model)
	if provider != "bedrock" && strings.HasPrefix(model, "amazon.") {
		model = ""
	}
	if model == "" {
		model = GetEnvValue(envKey)
	}
	return model
}

func createBedrockClient(ctx context.Context, cfg config.LLMConfig, logger logging.Logger) (interfaces.LLM, error) {
	region := ExpandEnv(cfg.Region)
	if region == "" {
		region = GetEnvValue("AWS_REGION")
	}
	if region == "" {
		region = defaultAWSRegion
	}

	client, err := bedrock.NewClientForRegion(ctx, region,
		bedrock.WithModel(providerModel(cfg, "bedrock", "BEDROCK_MODEL")),
		bedrock.WithMaxTokens(cfg.MaxTokens),
		bedrock.WithTemperature(cfg.Temperature),
		bedrock.WithTopP(cfg.TopP),
		bedrock.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bedrock client: %w", err)
	}
	return client, nil
}

func createOpenAIClient(cfg config.LLMConfig, logger logging.Logger) (interfaces.LLM, error) {
	apiKey := ExpandEnv(cfg.APIKey)
	if apiKey == "" {
		apiKey = GetEnvValue("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required for OpenAI provider (set OPENAI_API_KEY or provide in config)")
	}

	options := []openai.Option{
		openai.WithModel(providerModel(cfg, "openai", "OPENAI_MODEL")),
		openai.WithMaxTokens(cfg.MaxTokens),
		openai.WithTemperature(cfg.Temperature),
		openai.WithTopP(cfg.TopP),
		openai.WithLogger(logger),
	}
	if baseURL := ExpandEnv(cfg.BaseURL); baseURL != "" {
		options = append(options, openai.WithBaseURL(baseURL))
	}
	return openai.NewClient(apiKey, options...), nil
}

func createGeminiClient(ctx context.Context, cfg config.LLMConfig, logger logging.Logger) (interfaces.LLM, error) {
	apiKey := ExpandEnv(cfg.APIKey)
	if apiKey == "" {
		apiKey = GetEnvValue("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required for Gemini provider (set GEMINI_API_KEY or provide in config)")
	}

	options := []gemini.Option{
		gemini.WithAPIKey(apiKey),
		gemini.WithModel(providerModel(cfg, "gemini", "GEMINI_MODEL")),
		gemini.WithMaxTokens(cfg.MaxTokens),
		gemini.WithTemperature(cfg.Temperature),
		gemini.WithTopP(cfg.TopP),
		gemini.WithLogger(logger),
	}
	if baseURL := ExpandEnv(cfg.BaseURL); baseURL != "" {
		options = append(options, gemini.WithBaseURL(baseURL))
	}
	client, err := gemini.NewClient(ctx, options...)
	if err != nil {
		return nil, err
	}
	return client, nil
}
