// Package bootstrap wires a workspace configuration into a running set of observed agents.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ingenimax/llmops-agent/pkg/agent"
	"github.com/Ingenimax/llmops-agent/pkg/agent/payroll"
	"github.com/Ingenimax/llmops-agent/pkg/config"
	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
	"github.com/Ingenimax/llmops-agent/pkg/observe"
	"github.com/Ingenimax/llmops-agent/pkg/observe/phoenix"
	"github.com/Ingenimax/llmops-agent/pkg/observe/redisstream"
	"github.com/Ingenimax/llmops-agent/pkg/prompt"
	"github.com/Ingenimax/llmops-agent/pkg/storage"
	_ "github.com/Ingenimax/llmops-agent/pkg/storage/gcs"
	_ "github.com/Ingenimax/llmops-agent/pkg/storage/local"
	"github.com/Ingenimax/llmops-agent/pkg/tracing"
)

const (
	// AssistantName is the general purpose LLM agent registered next to payroll
	AssistantName = "assistant"

	// ProvisionAgent names the synthetic event sent by Provision
	ProvisionAgent = "provision"
)

var assistantPrompt = &prompt.Prompt{
	ID:   "assistant_system",
	Text: "You are a helpful assistant for the {project} project. Answer concisely.",
}

// Runtime holds the composed components. Close releases them.
type Runtime struct {
	Config   *config.Config
	Logger   logging.Logger
	Registry *agent.Registry
	Prompts  prompt.Store
	LLM      interfaces.LLM
	Sink     observe.Sink
	Events   *observe.MemorySink
	Tracing  *tracing.Provider

	sinkCloser observe.Closer
	external   observe.Sink
}

// Option overrides a component New would otherwise build from configuration
type Option func(*options)

type options struct {
	llm     interfaces.LLM
	prompts prompt.Store
	sinks   []observe.Sink
	agents  []interfaces.Agent
}

// WithLLM uses llm instead of the configured provider
func WithLLM(llm interfaces.LLM) Option {
	return func(o *options) {
		o.llm = llm
	}
}

// WithPromptStore uses store instead of the configured prompt backend
func WithPromptStore(store prompt.Store) Option {
	return func(o *options) {
		o.prompts = store
	}
}

// WithSink adds a sink next to the configured ones
func WithSink(sink observe.Sink) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, sink)
	}
}

// WithAgents registers extra agents, observed like the built-in ones
func WithAgents(agents ...interfaces.Agent) Option {
	return func(o *options) {
		o.agents = append(o.agents, agents...)
	}
}

// New builds prompts, LLM, sinks and tracing from cfg, then registers and initializes the agents
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: agent.NewRegistry(),
		Events:   observe.NewMemorySink(cfg.Observability.Retention),
	}

	if err := rt.build(ctx, o); err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	logger.Info(ctx, "Runtime ready", map[string]interface{}{
		"project":  cfg.ProjectName,
		"agents":   rt.Registry.List(),
		"llm":      rt.LLM.Name(),
		"sink":     cfg.Observability.Tool,
		"tracing":  rt.Tracing != nil,
		"prompts":  cfg.Prompts.Source,
		"observed": cfg.Observability.Enabled,
	})
	return rt, nil
}

func (rt *Runtime) build(ctx context.Context, o *options) error {
	cfg := rt.Config

	prompts, err := newPromptStore(ctx, cfg, o.prompts)
	if err != nil {
		return err
	}
	rt.Prompts = prompts

	if cfg.Observability.Enabled && cfg.Observability.Tracing.Enabled {
		provider, err := tracing.NewProvider(ctx, tracing.Config{
			ServiceName: cfg.ProjectName,
			ProjectName: cfg.PhoenixProject(),
			Protocol:    cfg.Observability.Tracing.Protocol,
			Endpoint:    cfg.Observability.Tracing.Endpoint,
			Insecure:    cfg.Observability.Tracing.Insecure,
			Headers:     tracingHeaders(cfg),
		})
		if err != nil {
			return fmt.Errorf("failed to create tracing provider: %w", err)
		}
		rt.Tracing = provider
	}

	llm := o.llm
	if llm == nil {
		llm, err = agent.NewLLMFromConfig(ctx, cfg.LLM, rt.Logger)
		if err != nil {
			return err
		}
	}
	if rt.Tracing != nil {
		llm = tracing.NewOTELLLMMiddleware(llm, rt.Tracing.Tracer(""))
	}
	rt.LLM = llm

	if err := rt.buildSinks(ctx, o.sinks); err != nil {
		return err
	}

	agents, err := rt.builtinAgents()
	if err != nil {
		return err
	}
	for _, a := range append(agents, o.agents...) {
		if err := rt.Registry.Register(rt.observed(a)); err != nil {
			return err
		}
	}

	return rt.Registry.Init(ctx)
}

func newPromptStore(ctx context.Context, cfg *config.Config, override prompt.Store) (prompt.Store, error) {
	if override != nil {
		return override, nil
	}
	backend, err := storage.NewStoreFromConfig(ctx, storageConfig(cfg.Prompts))
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt storage: %w", err)
	}
	return prompt.NewStore(backend), nil
}

func storageConfig(prompts config.PromptsConfig) storage.Config {
	return storage.Config{
		Type:  prompts.Source,
		Local: storage.LocalConfig{Path: prompts.Folder},
		GCS: storage.GCSConfig{
			Bucket:          prompts.GCS.Bucket,
			Prefix:          prompts.GCS.Prefix,
			CredentialsFile: prompts.GCS.CredentialsFile,
			CredentialsJSON: prompts.GCS.CredentialsJSON,
			Endpoint:        prompts.GCS.Endpoint,
		},
	}
}

func tracingHeaders(cfg *config.Config) map[string]string {
	if cfg.Observability.Phoenix.APIKey == "" {
		return nil
	}
	return map[string]string{"api_key": cfg.Observability.Phoenix.APIKey}
}

// buildSinks always records into the in-process memory sink. External sinks sit behind
// an AsyncSink when observability.async is set.
func (rt *Runtime) buildSinks(ctx context.Context, extra []observe.Sink) error {
	cfg := rt.Config.Observability

	var external []observe.Sink
	if cfg.Enabled {
		sink, err := rt.toolSink(ctx)
		if err != nil {
			return err
		}
		if sink != nil {
			external = append(external, sink)
		}
	}
	external = append(external, extra...)

	if len(external) == 0 {
		rt.Sink = rt.Events
		return nil
	}

	rt.external = observe.NewMultiSink(external...)
	downstream := rt.external
	if cfg.Async {
		downstream = observe.NewAsyncSink(downstream,
			observe.WithBufferSize(cfg.BufferSize),
			observe.WithAsyncLogger(rt.Logger),
		)
	}

	multi := observe.NewMultiSink(rt.Events, downstream)
	rt.Sink = multi
	rt.sinkCloser = multi
	return nil
}

// phoenixRetries keeps synchronous emission to a single attempt so an unreachable
// collector cannot stall agent calls through backoff.
func phoenixRetries(obs config.ObservabilityConfig) int {
	if !obs.Async {
		return 1
	}
	return obs.Phoenix.MaxRetries
}

func (rt *Runtime) toolSink(ctx context.Context) (observe.Sink, error) {
	cfg := rt.Config
	obs := cfg.Observability

	switch obs.Tool {
	case "phoenix":
		model := rt.LLM.Name()
		if m, ok := rt.LLM.(interface{ GetModel() string }); ok {
			model = m.GetModel()
		}
		sink, err := phoenix.New(obs.Phoenix.BaseURL, cfg.PhoenixProject(),
			phoenix.WithAPIKey(obs.Phoenix.APIKey),
			phoenix.WithTimeout(obs.Phoenix.Timeout),
			phoenix.WithMaxRetries(phoenixRetries(obs)),
			phoenix.WithModel(model),
			phoenix.WithLogger(rt.Logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create phoenix sink: %w", err)
		}
		return sink, nil
	case "redis":
		sink, err := redisstream.NewFromConfig(ctx, redisstream.Config{
			Addr:     obs.Redis.Addr,
			Password: obs.Redis.Password,
			DB:       obs.Redis.DB,
			Stream:   obs.Redis.Stream,
			MaxLen:   obs.Redis.MaxLen,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis sink: %w", err)
		}
		return sink, nil
	case "log":
		return observe.NewLogSink(rt.Logger), nil
	case "memory", "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported observability tool: %s", obs.Tool)
	}
}

func (rt *Runtime) builtinAgents() ([]interfaces.Agent, error) {
	cfg := rt.Config
	temperature := cfg.LLM.Temperature
	llmConfig := interfaces.LLMConfig{
		Temperature: &temperature,
		TopP:        cfg.LLM.TopP,
		MaxTokens:   cfg.LLM.MaxTokens,
	}

	payrollAssistant, err := agent.NewLLMAgent(
		agent.WithName(payroll.AgentName),
		agent.WithLLM(rt.LLM),
		agent.WithPromptStore(rt.Prompts),
		agent.WithSystemPromptID(cfg.Payroll.SystemPrompt),
		agent.WithLLMConfig(llmConfig),
		agent.WithLogger(rt.Logger),
	)
	if err != nil {
		return nil, err
	}

	assistant, err := agent.NewLLMAgent(
		agent.WithName(AssistantName),
		agent.WithLLM(rt.LLM),
		agent.WithSystemPrompt(assistantPrompt.Render(map[string]string{"project": cfg.ProjectName})),
		agent.WithLLMConfig(llmConfig),
		agent.WithLogger(rt.Logger),
	)
	if err != nil {
		return nil, err
	}

	return []interfaces.Agent{
		payroll.New(
			payroll.WithDirectoryFile(cfg.Payroll.DirectoryFile),
			payroll.WithAssistant(payrollAssistant),
			payroll.WithLogger(rt.Logger),
		),
		assistant,
	}, nil
}

func (rt *Runtime) observed(a interfaces.Agent) interfaces.Agent {
	opts := []observe.Option{
		observe.WithLogger(rt.Logger),
		observe.WithProject(rt.Config.PhoenixProject()),
		observe.WithCapturePayloads(rt.Config.Observability.CapturePayloads),
	}
	if a.Name() == payroll.AgentName {
		opts = append(opts, observe.WithOperation(payroll.Operation))
	}
	if rt.Tracing != nil {
		opts = append(opts, observe.WithTracer(rt.Tracing.Tracer("")))
	}
	return observe.Wrap(a, rt.Sink, opts...)
}

// Provision sends one synthetic event straight to the configured external sinks,
// bypassing the async buffer, so a broken collector shows up as an error.
func (rt *Runtime) Provision(ctx context.Context) (observe.Event, error) {
	now := time.Now().UTC()
	event := observe.Event{
		ID:        uuid.NewString(),
		Agent:     ProvisionAgent,
		Project:   rt.Config.PhoenixProject(),
		Operation: ProvisionAgent,
		SessionID: "provision",
		StartTime: now,
		EndTime:   now,
		Outcome:   observe.OutcomeSuccess,
		Metadata: map[string]interface{}{
			"synthetic": true,
			"tool":      rt.Config.Observability.Tool,
		},
	}

	if err := rt.Events.Emit(ctx, event); err != nil {
		return event, err
	}
	if rt.external == nil {
		rt.Logger.Warn(ctx, "No external sink configured, test event kept in memory only", nil)
		return event, nil
	}
	if err := rt.external.Emit(ctx, event); err != nil {
		return event, fmt.Errorf("failed to deliver test event: %w", err)
	}

	rt.Logger.Info(ctx, "Test event delivered", map[string]interface{}{
		"event_id": event.ID,
		"project":  event.Project,
		"tool":     rt.Config.Observability.Tool,
	})
	return event, nil
}

// Run executes the named agent
func (rt *Runtime) Run(ctx context.Context, name string, req interfaces.Request) (interfaces.Response, error) {
	a, err := rt.Registry.Get(name)
	if err != nil {
		return nil, err
	}
	return a.Run(ctx, req)
}

// Close shuts agents down, drains the sinks and flushes tracing
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Registry != nil {
		if err := rt.Registry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.sinkCloser != nil {
		if err := rt.sinkCloser.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sinks: %w", err))
		}
	}
	if rt.Tracing != nil {
		if err := rt.Tracing.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
