package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
	"github.com/Ingenimax/llmops-agent/pkg/prompt"
)

const (
	// DefaultInputKey is the request field holding the user's message
	DefaultInputKey = "user_input"

	// AnswerKey is the response field holding the model's reply
	AnswerKey = "answer"
)

// LLMAgent answers a request by rendering a stored system prompt and calling an LLM
type LLMAgent struct {
	Base
	llm            interfaces.LLM
	prompts        prompt.Store
	systemPromptID string
	systemPrompt   string
	inputKey       string
	llmConfig      *interfaces.LLMConfig
	logger         logging.Logger
}

// Option represents an option for configuring an LLMAgent
type Option func(*LLMAgent)

// WithName sets the name for the agent
func WithName(name string) Option {
	return func(a *LLMAgent) {
		a.Base = NewBase(name)
	}
}

// WithLLM sets the LLM for the agent
func WithLLM(llm interfaces.LLM) Option {
	return func(a *LLMAgent) {
		a.llm = llm
	}
}

// WithPromptStore sets the store system prompts are resolved from
func WithPromptStore(store prompt.Store) Option {
	return func(a *LLMAgent) {
		a.prompts = store
	}
}

// WithSystemPromptID sets the identifier of the stored system prompt
func WithSystemPromptID(id string) Option {
	return func(a *LLMAgent) {
		a.systemPromptID = id
	}
}

// WithSystemPrompt sets an inline system prompt, used when no prompt id is configured
func WithSystemPrompt(text string) Option {
	return func(a *LLMAgent) {
		a.systemPrompt = text
	}
}

// WithInputKey sets the request field read as the user message
func WithInputKey(key string) Option {
	return func(a *LLMAgent) {
		if key != "" {
			a.inputKey = key
		}
	}
}

// WithLLMConfig sets per-call generation parameters
func WithLLMConfig(config interfaces.LLMConfig) Option {
	return func(a *LLMAgent) {
		a.llmConfig = &config
	}
}

// WithLogger sets the logger for the agent
func WithLogger(logger logging.Logger) Option {
	return func(a *LLMAgent) {
		a.logger = logger
	}
}

// NewLLMAgent creates a new prompt-driven agent
func NewLLMAgent(options ...Option) (*LLMAgent, error) {
	a := &LLMAgent{
		Base:     NewBase("assistant"),
		inputKey: DefaultInputKey,
		logger:   logging.NewNoOpLogger(),
	}
	for _, option := range options {
		option(a)
	}

	if a.llm == nil {
		return nil, fmt.Errorf("LLM is required")
	}
	if a.systemPromptID != "" && a.prompts == nil {
		return nil, fmt.Errorf("prompt store is required when a system prompt id is set")
	}
	return a, nil
}

// Run resolves the system prompt, then asks the LLM and returns {"answer": text}.
// A missing prompt is returned as is, before any LLM call.
func (a *LLMAgent) Run(ctx context.Context, req interfaces.Request) (interfaces.Response, error) {
	systemPrompt, err := a.resolveSystemPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	input, ok := req.String(a.inputKey)
	if !ok || strings.TrimSpace(input) == "" {
		return nil, interfaces.NewAgentExecutionError(a.Name(), fmt.Sprintf("request field %q is required", a.inputKey), nil)
	}

	options := []interfaces.GenerateOption{}
	if systemPrompt != "" {
		options = append(options, interfaces.WithSystemMessage(systemPrompt))
	}
	if a.llmConfig != nil {
		cfg := *a.llmConfig
		options = append(options, func(o *interfaces.GenerateOptions) {
			o.LLMConfig = &cfg
		})
	}

	a.logger.Debug(ctx, "Calling LLM", map[string]interface{}{
		"agent":    a.Name(),
		"provider": a.llm.Name(),
		"prompt":   a.systemPromptID,
	})

	answer, err := a.llm.Generate(ctx, input, options...)
	if err != nil {
		return nil, interfaces.NewAgentExecutionError(a.Name(), "llm call failed", err)
	}

	return interfaces.Response{AnswerKey: answer}, nil
}

func (a *LLMAgent) resolveSystemPrompt(ctx context.Context, req interfaces.Request) (string, error) {
	if a.systemPromptID == "" {
		return a.systemPrompt, nil
	}
	p, err := a.prompts.Get(ctx, a.systemPromptID)
	if err != nil {
		return "", err
	}
	return p.Render(req.StringValues()), nil
}

// GetLLM returns the LLM used by the agent
func (a *LLMAgent) GetLLM() interfaces.LLM {
	return a.llm
}

// SystemPromptID returns the configured prompt identifier
func (a *LLMAgent) SystemPromptID() string {
	return a.systemPromptID
}
