package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/llm/mock"
	"github.com/Ingenimax/llmops-agent/pkg/prompt"
)

func payrollPrompts() *prompt.MemoryStore {
	return prompt.NewMemoryStore(&prompt.Prompt{
		ID:   "payroll_system",
		Text: "You are a payroll assistant for employee {employee_id}.",
	})
}

func TestLLMAgentAnswers(t *testing.T) {
	llm := mock.NewClient(mock.WithResponses("Your net pay is 2500.00"))
	temperature := 0.0
	a, err := NewLLMAgent(
		WithName("payroll-assistant"),
		WithLLM(llm),
		WithPromptStore(payrollPrompts()),
		WithSystemPromptID("payroll_system"),
		WithLLMConfig(interfaces.LLMConfig{Temperature: &temperature, MaxTokens: 100}),
	)
	require.NoError(t, err)

	resp, err := a.Run(context.Background(), interfaces.Request{
		"employee_id": "E123",
		"user_input":  "What is my net pay?",
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.Response{"answer": "Your net pay is 2500.00"}, resp)
	assert.Equal(t, "payroll-assistant", a.Name())
	assert.Equal(t, "payroll_system", a.SystemPromptID())

	calls := llm.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "What is my net pay?", calls[0].Prompt)
	assert.Equal(t, "You are a payroll assistant for employee E123.", calls[0].Options.SystemMessage)
	assert.Equal(t, 100, calls[0].Options.LLMConfig.MaxTokens)
	require.NotNil(t, calls[0].Options.LLMConfig.Temperature)
	assert.Zero(t, *calls[0].Options.LLMConfig.Temperature)
}

func TestLLMAgentMissingPromptSkipsLLM(t *testing.T) {
	llm := mock.NewClient(mock.WithFallback("unused"))
	a, err := NewLLMAgent(
		WithLLM(llm),
		WithPromptStore(prompt.NewMemoryStore()),
		WithSystemPromptID("payroll_system"),
	)
	require.NoError(t, err)

	resp, err := a.Run(context.Background(), interfaces.Request{"user_input": "hi"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, interfaces.ErrPromptNotFound)

	var notFound *interfaces.PromptNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "payroll_system", notFound.ID)
	assert.False(t, interfaces.IsAgentExecutionError(err))
	assert.Equal(t, 0, llm.CallCount())
}

func TestLLMAgentFailures(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		llm := mock.NewClient(mock.WithFallback("unused"))
		a, err := NewLLMAgent(WithName("assistant"), WithLLM(llm), WithInputKey("question"))
		require.NoError(t, err)

		_, err = a.Run(context.Background(), interfaces.Request{"question": "  "})
		var execErr *interfaces.AgentExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "assistant", execErr.Agent)
		assert.Contains(t, execErr.Message, `"question"`)
		assert.Equal(t, 0, llm.CallCount())
	})

	t.Run("llm error", func(t *testing.T) {
		boom := errors.New("ThrottlingException")
		a, err := NewLLMAgent(WithLLM(mock.NewClient(mock.WithError(boom))), WithSystemPrompt("Be brief."))
		require.NoError(t, err)

		_, err = a.Run(context.Background(), interfaces.Request{"user_input": "hi"})
		assert.True(t, interfaces.IsAgentExecutionError(err))
		assert.ErrorIs(t, err, boom)
	})
}

func TestNewLLMAgentValidation(t *testing.T) {
	_, err := NewLLMAgent()
	assert.EqualError(t, err, "LLM is required")

	_, err = NewLLMAgent(WithLLM(mock.NewClient()), WithSystemPromptID("x"))
	assert.EqualError(t, err, "prompt store is required when a system prompt id is set")
}
