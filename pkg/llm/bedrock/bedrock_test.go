package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
)

type fakeConverse struct {
	inputs []*bedrockruntime.ConverseInput
	output *bedrockruntime.ConverseOutput
	err    error
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.inputs = append(f.inputs, params)
	return f.output, f.err
}

func textOutput(texts ...string) *bedrockruntime.ConverseOutput {
	content := make([]types.ContentBlock, 0, len(texts))
	for _, text := range texts {
		content = append(content, &types.ContentBlockMemberText{Value: text})
	}
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{Role: types.ConversationRoleAssistant, Content: content},
		},
		StopReason: types.StopReasonEndTurn,
		Usage:      &types.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(7)},
	}
}

func userText(t *testing.T, input *bedrockruntime.ConverseInput) string {
	t.Helper()
	require.Len(t, input.Messages, 1)
	require.Len(t, input.Messages[0].Content, 1)
	block, ok := input.Messages[0].Content[0].(*types.ContentBlockMemberText)
	require.True(t, ok)
	return block.Value
}

func TestGenerateDefaults(t *testing.T) {
	fake := &fakeConverse{output: textOutput(" Net pay is ", "2500.00 ")}
	client := NewClient(fake)

	got, err := client.Generate(context.Background(), "What is my net pay?")
	require.NoError(t, err)
	assert.Equal(t, "Net pay is 2500.00", got)

	require.Len(t, fake.inputs, 1)
	input := fake.inputs[0]
	assert.Equal(t, DefaultModel, aws.ToString(input.ModelId))
	assert.Equal(t, int32(500), aws.ToInt32(input.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.7, aws.ToFloat32(input.InferenceConfig.Temperature), 1e-6)
	assert.InDelta(t, 0.9, aws.ToFloat32(input.InferenceConfig.TopP), 1e-6)
	assert.Equal(t, types.ConversationRoleUser, input.Messages[0].Role)
	assert.Equal(t, "What is my net pay?", userText(t, input))
	assert.Empty(t, input.System)
}

func TestGenerateTitanFoldsSystemPrompt(t *testing.T) {
	fake := &fakeConverse{output: textOutput("ok")}
	client := NewClient(fake)

	_, err := client.Generate(context.Background(), "question", interfaces.WithSystemMessage("You are a payroll assistant."))
	require.NoError(t, err)

	input := fake.inputs[0]
	assert.Empty(t, input.System)
	assert.Equal(t, "You are a payroll assistant.\n\nquestion", userText(t, input))
}

func TestGenerateSystemBlockAndOverrides(t *testing.T) {
	fake := &fakeConverse{output: textOutput("ok")}
	client := NewClient(fake, WithModel("anthropic.claude-3-haiku-20240307-v1:0"), WithMaxTokens(1000))

	_, err := client.Generate(context.Background(), "question",
		interfaces.WithSystemMessage("system"),
		interfaces.WithTemperature(0.1),
		interfaces.WithMaxTokens(64),
		interfaces.WithStopSequences([]string{"END"}),
	)
	require.NoError(t, err)

	input := fake.inputs[0]
	require.Len(t, input.System, 1)
	system, ok := input.System[0].(*types.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "system", system.Value)
	assert.Equal(t, "question", userText(t, input))
	assert.Equal(t, int32(64), aws.ToInt32(input.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.1, aws.ToFloat32(input.InferenceConfig.Temperature), 1e-6)
	assert.InDelta(t, 0.9, aws.ToFloat32(input.InferenceConfig.TopP), 1e-6)
	assert.Equal(t, []string{"END"}, input.InferenceConfig.StopSequences)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", client.GetModel())
}

func TestGenerateErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		boom := errors.New("AccessDeniedException")
		client := NewClient(&fakeConverse{err: boom})
		_, err := client.Generate(context.Background(), "x")
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "bedrock converse failed")
	})

	t.Run("no text content", func(t *testing.T) {
		client := NewClient(&fakeConverse{output: textOutput()})
		_, err := client.Generate(context.Background(), "x")
		assert.EqualError(t, err, "bedrock returned no text content")
	})

	t.Run("no message", func(t *testing.T) {
		client := NewClient(&fakeConverse{output: &bedrockruntime.ConverseOutput{}})
		_, err := client.Generate(context.Background(), "x")
		assert.EqualError(t, err, "bedrock returned no message")
	})
}

func TestNewClientWithAWSConfig(t *testing.T) {
	_, err := NewClientWithAWSConfig(aws.Config{})
	assert.EqualError(t, err, "region is required in AWS config")

	client, err := NewClientWithAWSConfig(aws.Config{Region: "us-east-1"}, WithModel("amazon.titan-text-lite-v1"))
	require.NoError(t, err)
	assert.Equal(t, "bedrock", client.Name())
	assert.Equal(t, "amazon.titan-text-lite-v1", client.GetModel())
}

func TestGenerateZeroTemperatureOverride(t *testing.T) {
	fake := &fakeConverse{output: textOutput("ok")}
	client := NewClient(fake)

	_, err := client.Generate(context.Background(), "x", interfaces.WithTemperature(0))
	require.NoError(t, err)
	assert.Zero(t, aws.ToFloat32(fake.inputs[0].InferenceConfig.Temperature))
}
