package bootstrap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/llmops-agent/pkg/agent"
	"github.com/Ingenimax/llmops-agent/pkg/config"
	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/llm/mock"
	"github.com/Ingenimax/llmops-agent/pkg/observe"
	"github.com/Ingenimax/llmops-agent/pkg/storage"
)

func testConfig(t *testing.T, tool string) *config.Config {
	t.Helper()

	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "payroll_system.yaml"), []byte(
		"id: payroll_system\ndescription: payroll assistant\nprompt: You help {employee_name} with payroll questions.\n"), 0o600))

	return &config.Config{
		Version:     1,
		ProjectName: "payroll-demo",
		Observability: config.ObservabilityConfig{
			Enabled:    tool != "none",
			Tool:       tool,
			BufferSize: 16,
			Retention:  100,
			Phoenix: config.PhoenixConfig{
				Timeout:    time.Second,
				MaxRetries: 1,
			},
			Redis: config.RedisConfig{
				Stream: "llmops:events",
				MaxLen: 100,
			},
			Tracing: config.TracingConfig{Protocol: "http"},
		},
		Prompts: config.PromptsConfig{Source: "local", Folder: folder},
		LLM:     config.LLMConfig{Provider: "mock", MaxTokens: 500, Temperature: 0.7, TopP: 0.9},
		Payroll: config.PayrollConfig{SystemPrompt: "payroll_system"},
	}
}

func TestRuntimeComputePay(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, testConfig(t, "memory"), nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, rt.Close(ctx)) }()

	assert.Equal(t, []string{"assistant", "payroll"}, rt.Registry.List())

	resp, err := rt.Run(ctx, "payroll", interfaces.Request{"employee_id": "E123", "action": "compute_pay"})
	require.NoError(t, err)
	assert.Equal(t, interfaces.Response{"employee_id": "E123", "net_pay": 2500.00}, resp)

	events := rt.Events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "payroll", events[0].Agent)
	assert.Equal(t, "payroll-chat", events[0].Operation)
	assert.Equal(t, "payroll-demo", events[0].Project)
	assert.Equal(t, observe.OutcomeSuccess, events[0].Outcome)

	_, err = rt.Run(ctx, "ghost", interfaces.Request{})
	assert.ErrorIs(t, err, interfaces.ErrAgentNotFound)
}

func TestRuntimeAskUsesStoredPrompt(t *testing.T) {
	ctx := context.Background()
	llm := mock.NewClient(mock.WithResponses("Your net pay is 2500.00"))
	rt, err := New(ctx, testConfig(t, "none"), nil, WithLLM(llm))
	require.NoError(t, err)
	defer func() { _ = rt.Close(ctx) }()

	resp, err := rt.Run(ctx, "payroll", interfaces.Request{"action": "ask", "employee_id": "E123", "user_input": "What is my net pay?"})
	require.NoError(t, err)
	assert.Equal(t, "Your net pay is 2500.00", resp["answer"])

	calls := llm.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "You help Jane Doe with payroll questions.", calls[0].Options.SystemMessage)
	assert.Equal(t, 500, calls[0].Options.LLMConfig.MaxTokens)
	assert.Equal(t, 1, rt.Events.Len())
}

func TestRuntimeMissingPrompt(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "memory")
	cfg.Payroll.SystemPrompt = "does_not_exist"
	llm := mock.NewClient(mock.WithFallback("unused"))

	rt, err := New(ctx, cfg, nil, WithLLM(llm))
	require.NoError(t, err)
	defer func() { _ = rt.Close(ctx) }()

	_, err = rt.Run(ctx, "payroll", interfaces.Request{"action": "ask", "user_input": "hi"})
	assert.True(t, interfaces.IsPromptNotFound(err))
	assert.Equal(t, 0, llm.CallCount())
	require.Equal(t, 1, rt.Events.Len())
	assert.True(t, rt.Events.Events()[0].Failed())
}

func TestRuntimePhoenixAsync(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var payloads []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		payloads = append(payloads, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	cfg := testConfig(t, "phoenix")
	cfg.Observability.Async = true
	cfg.Observability.Phoenix.BaseURL = server.URL

	rt, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	_, err = rt.Run(ctx, "payroll", interfaces.Request{"employee_id": "E123", "session_id": "s-1"})
	require.NoError(t, err)
	require.NoError(t, rt.Close(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, 1)
	assert.Equal(t, "/v1/projects/payroll-demo/traces", paths[0])
	assert.Equal(t, "s-1", payloads[0]["session_id"])
}

func TestRuntimeRedisStream(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	cfg := testConfig(t, "redis")
	cfg.Observability.Redis.Addr = mr.Addr()

	rt, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	_, err = rt.Run(ctx, "payroll", interfaces.Request{"employee_id": "E123"})
	require.NoError(t, err)
	_, err = rt.Run(ctx, "payroll", interfaces.Request{"employee_id": "E999"})
	require.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	n, err := client.XLen(ctx, "llmops:events").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, rt.Close(ctx))
}

func TestRuntimeExtraSinkAndAgents(t *testing.T) {
	ctx := context.Background()
	extra := observe.NewMemorySink(0)
	echo := agent.NewFunc("echo", func(_ context.Context, req interfaces.Request) (interfaces.Response, error) {
		return interfaces.Response(req), nil
	})

	rt, err := New(ctx, testConfig(t, "log"), nil, WithSink(extra), WithAgents(echo))
	require.NoError(t, err)

	_, err = rt.Run(ctx, "echo", interfaces.Request{"x": "y"})
	require.NoError(t, err)
	require.NoError(t, rt.Close(ctx))

	assert.Equal(t, 1, extra.Len())
	assert.Equal(t, 1, rt.Events.Len())
	assert.Equal(t, []string{"assistant", "echo", "payroll"}, rt.Registry.List())
}

func TestRuntimeErrors(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, nil, nil)
	assert.EqualError(t, err, "config is required")

	cfg := testConfig(t, "redis")
	cfg.Observability.Redis.Addr = ""
	_, err = New(ctx, cfg, nil)
	assert.ErrorContains(t, err, "failed to create redis sink")

	cfg = testConfig(t, "memory")
	cfg.LLM.Provider = "ollama"
	_, err = New(ctx, cfg, nil)
	assert.ErrorContains(t, err, "unsupported LLM provider")

	cfg = testConfig(t, "memory")
	cfg.Payroll.DirectoryFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(ctx, cfg, nil)
	assert.ErrorContains(t, err, "failed to initialize agent payroll")
}

func TestStorageConfigCarriesGCSSettings(t *testing.T) {
	got := storageConfig(config.PromptsConfig{
		Source: "gcs",
		Folder: "prompts",
		GCS: config.GCSConfig{
			Bucket:          "payroll-prompts",
			Prefix:          "prod",
			CredentialsFile: "/secrets/sa.json",
			CredentialsJSON: `{"type":"service_account"}`,
			Endpoint:        "http://localhost:4443/storage/v1/",
		},
	})

	assert.Equal(t, storage.Config{
		Type:  "gcs",
		Local: storage.LocalConfig{Path: "prompts"},
		GCS: storage.GCSConfig{
			Bucket:          "payroll-prompts",
			Prefix:          "prod",
			CredentialsFile: "/secrets/sa.json",
			CredentialsJSON: `{"type":"service_account"}`,
			Endpoint:        "http://localhost:4443/storage/v1/",
		},
	}, got)
}

func TestRuntimePhoenixSyncSingleAttempt(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx := context.Background()
	cfg := testConfig(t, "phoenix")
	cfg.Observability.Async = false
	cfg.Observability.Phoenix.BaseURL = server.URL
	cfg.Observability.Phoenix.MaxRetries = 5

	rt, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { _ = rt.Close(ctx) }()

	resp, err := rt.Run(ctx, "payroll", interfaces.Request{"employee_id": "E123"})
	require.NoError(t, err)
	assert.InDelta(t, 2500.0, resp["net_pay"], 1e-9)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}

func TestPhoenixRetries(t *testing.T) {
	obs := config.ObservabilityConfig{Async: true, Phoenix: config.PhoenixConfig{MaxRetries: 3}}
	assert.Equal(t, 3, phoenixRetries(obs))

	obs.Async = false
	assert.Equal(t, 1, phoenixRetries(obs))
}

func TestProvisionSendsTestEvent(t *testing.T) {
	var mu sync.Mutex
	var payloads []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		payloads = append(payloads, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	cfg := testConfig(t, "phoenix")
	cfg.Observability.Async = true
	cfg.Observability.Phoenix.BaseURL = server.URL

	rt, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { _ = rt.Close(ctx) }()

	event, err := rt.Provision(ctx)
	require.NoError(t, err)
	assert.Equal(t, ProvisionAgent, event.Agent)
	assert.Equal(t, "payroll-demo", event.Project)
	assert.Equal(t, observe.OutcomeSuccess, event.Outcome)
	assert.Equal(t, 1, rt.Events.Len())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1, "delivered before Provision returns")
	assert.Equal(t, event.ID, payloads[0]["trace_id"])
}

func TestProvisionReportsUnreachableCollector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	ctx := context.Background()
	cfg := testConfig(t, "phoenix")
	cfg.Observability.Phoenix.BaseURL = server.URL

	rt, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { _ = rt.Close(ctx) }()

	_, err = rt.Provision(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deliver test event")
}

func TestProvisionMemoryOnly(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, testConfig(t, "none"), nil)
	require.NoError(t, err)
	defer func() { _ = rt.Close(ctx) }()

	_, err = rt.Provision(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.Events.Len())
}
