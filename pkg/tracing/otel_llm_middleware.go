package tracing

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
)

// OTELLLMMiddleware implements middleware for LLM calls with OpenInference span attributes
type OTELLLMMiddleware struct {
	llm    interfaces.LLM
	tracer trace.Tracer
}

// NewOTELLLMMiddleware creates a new LLM middleware that opens one client span per generation
func NewOTELLLMMiddleware(llm interfaces.LLM, tracer trace.Tracer) *OTELLLMMiddleware {
	return &OTELLLMMiddleware{
		llm:    llm,
		tracer: tracer,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate generates text from a prompt inside an llm.generate span
func (m *OTELLLMMiddleware) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	opts := interfaces.ApplyGenerateOptions(options...)

	input := make([]chatMessage, 0, 2)
	if opts.SystemMessage != "" {
		input = append(input, chatMessage{Role: "system", Content: opts.SystemMessage})
	}
	input = append(input, chatMessage{Role: "user", Content: prompt})

	ctx, span := m.tracer.Start(ctx, "llm.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("openinference.span.kind", "LLM"),
			attribute.String("llm.provider", m.llm.Name()),
			attribute.String("llm.model_name", m.GetModel()),
			attribute.String("llm.input_messages", encodeMessages(input)),
		),
	)
	defer span.End()

	if opts.LLMConfig != nil {
		span.SetAttributes(attribute.Int("llm.invocation_parameters.max_tokens", opts.LLMConfig.MaxTokens))
		if opts.LLMConfig.Temperature != nil {
			span.SetAttributes(attribute.Float64("llm.invocation_parameters.temperature", *opts.LLMConfig.Temperature))
		}
	}

	startTime := time.Now()
	response, err := m.llm.Generate(ctx, prompt, options...)
	latency := time.Since(startTime)

	span.SetAttributes(attribute.Float64("response.time.ms", float64(latency.Microseconds())/1000))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.message", err.Error()))
		return response, err
	}

	span.SetAttributes(attribute.String("llm.output_messages", encodeMessages([]chatMessage{{Role: "assistant", Content: response}})))
	span.SetStatus(codes.Ok, "")
	return response, nil
}

// Name implements interfaces.LLM.Name
func (m *OTELLLMMiddleware) Name() string {
	return m.llm.Name()
}

// GetModel returns the wrapped model name, falling back to the provider name
func (m *OTELLLMMiddleware) GetModel() string {
	if modelProvider, ok := m.llm.(interface{ GetModel() string }); ok {
		if model := modelProvider.GetModel(); model != "" {
			return model
		}
	}
	return m.llm.Name()
}

func encodeMessages(messages []chatMessage) string {
	encoded, err := json.Marshal(messages)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
