package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
)

func TestClientQueue(t *testing.T) {
	boom := errors.New("throttled")
	client := NewClient(WithResponses("first", "second"), WithError(boom), WithFallback("fallback"))
	ctx := context.Background()

	_, err := client.Generate(ctx, "p0")
	assert.ErrorIs(t, err, boom)

	got, err := client.Generate(ctx, "p1", interfaces.WithSystemMessage("sys"), interfaces.WithTemperature(0.2))
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = client.Generate(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	got, err = client.Generate(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	calls := client.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "p1", calls[1].Prompt)
	assert.Equal(t, "sys", calls[1].Options.SystemMessage)
	require.NotNil(t, calls[1].Options.LLMConfig.Temperature)
	assert.InDelta(t, 0.2, *calls[1].Options.LLMConfig.Temperature, 1e-9)
	assert.Equal(t, 4, client.CallCount())
}

func TestClientEchoAndEmpty(t *testing.T) {
	echo := NewClient(WithEcho(), WithModel("demo"))
	got, err := echo.Generate(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "[demo] hello", got)
	assert.Equal(t, "demo", echo.GetModel())
	assert.Equal(t, "mock", echo.Name())

	_, err = NewClient().Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestClientCancelledContext(t *testing.T) {
	client := NewClient(WithFallback("never"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, client.CallCount())
}
