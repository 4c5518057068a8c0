package redisstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/observe"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSinkAppendsEvents(t *testing.T) {
	_, client := setupRedis(t)
	sink := New(client, WithStream("test:events"))
	ctx := context.Background()

	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	event := observe.Event{
		ID:        "evt-1",
		Agent:     "payroll",
		StartTime: start,
		EndTime:   start.Add(time.Second),
		Outcome:   observe.OutcomeError,
		Error:     "division by zero",
	}
	require.NoError(t, sink.Emit(ctx, event))

	entries, err := client.XRange(ctx, "test:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "payroll", entries[0].Values["agent"])
	assert.Equal(t, "error", entries[0].Values["outcome"])
	assert.Equal(t, "evt-1", entries[0].Values["id"])

	events, err := sink.Read(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "division by zero", events[0].Error)
	assert.True(t, events[0].StartTime.Equal(start))
	assert.Equal(t, "test:events", sink.Stream())
	assert.Equal(t, "redis", sink.Name())
}

func TestSinkThroughWrapper(t *testing.T) {
	_, client := setupRedis(t)
	sink := New(client)

	agent := observe.Wrap(constantAgent{resp: interfaces.Response{"net_pay": 2500.0}}, sink)
	for i := 0; i < 3; i++ {
		_, err := agent.Run(context.Background(), interfaces.Request{})
		require.NoError(t, err)
	}

	length, err := client.XLen(context.Background(), DefaultStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)
}

func TestSinkUnavailableRedis(t *testing.T) {
	mr, client := setupRedis(t)
	sink := New(client)
	mr.Close()

	err := sink.Emit(context.Background(), observe.Event{ID: "evt", Agent: "payroll", Outcome: observe.OutcomeSuccess})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to append to stream llmops:events")

	// the wrapper swallows the failure
	agent := observe.Wrap(constantAgent{resp: interfaces.Response{"ok": true}}, sink)
	resp, err := agent.Run(context.Background(), interfaces.Request{})
	require.NoError(t, err)
	assert.Equal(t, true, resp["ok"])
}

func TestNewFromConfig(t *testing.T) {
	mr, _ := setupRedis(t)

	sink, err := NewFromConfig(context.Background(), Config{Addr: mr.Addr(), Stream: "cfg:events", MaxLen: 100})
	require.NoError(t, err)
	assert.Equal(t, "cfg:events", sink.Stream())
	assert.Equal(t, int64(100), sink.maxLen)
	require.NoError(t, sink.Emit(context.Background(), observe.Event{ID: "e", Agent: "a", Outcome: observe.OutcomeSuccess}))
	require.NoError(t, sink.Close(context.Background()))

	_, err = NewFromConfig(context.Background(), Config{})
	assert.EqualError(t, err, "redis address is required")

	closed := miniredis.NewMiniRedis()
	require.NoError(t, closed.Start())
	addr := closed.Addr()
	closed.Close()
	_, err = NewFromConfig(context.Background(), Config{Addr: addr})
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}

type constantAgent struct {
	resp interfaces.Response
}

func (constantAgent) Name() string { return "constant" }

func (a constantAgent) Run(context.Context, interfaces.Request) (interfaces.Response, error) {
	return a.resp, nil
}

func TestSinkTrimsStream(t *testing.T) {
	_, client := setupRedis(t)
	sink := New(client, WithMaxLen(2))

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, sink.Emit(context.Background(), observe.Event{ID: id, Agent: "payroll", Outcome: observe.OutcomeSuccess}))
	}

	events, err := sink.Read(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].ID)
	assert.Equal(t, "d", events[1].ID)
}
