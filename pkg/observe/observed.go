package observe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
)

// ObservedAgent wraps an agent and emits exactly one Event per Run
type ObservedAgent struct {
	agent     interfaces.Agent
	sink      Sink
	logger    logging.Logger
	project   string
	operation string
	tracer    trace.Tracer
	capture   bool
	now       func() time.Time
}

// Option represents an option for configuring the wrapper
type Option func(*ObservedAgent)

// WithLogger sets the logger used for lifecycle and sink failure logs
func WithLogger(logger logging.Logger) Option {
	return func(o *ObservedAgent) {
		o.logger = logger
	}
}

// WithProject sets the project name stamped on every event
func WithProject(project string) Option {
	return func(o *ObservedAgent) {
		o.project = project
	}
}

// WithOperation sets the operation name stamped on every event
func WithOperation(operation string) Option {
	return func(o *ObservedAgent) {
		o.operation = operation
	}
}

// WithTracer opens a live span around every invocation
func WithTracer(tracer trace.Tracer) Option {
	return func(o *ObservedAgent) {
		o.tracer = tracer
	}
}

// WithCapturePayloads copies the request and response into each event
func WithCapturePayloads(capture bool) Option {
	return func(o *ObservedAgent) {
		o.capture = capture
	}
}

// WithClock replaces time.Now, used by tests
func WithClock(now func() time.Time) Option {
	return func(o *ObservedAgent) {
		o.now = now
	}
}

// Wrap decorates agent so that every invocation is reported to sink
func Wrap(agent interfaces.Agent, sink Sink, opts ...Option) *ObservedAgent {
	o := &ObservedAgent{
		agent:     agent,
		sink:      sink,
		logger:    logging.NewNoOpLogger(),
		operation: "run",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sink == nil {
		o.sink = NoopSink{}
	}
	return o
}

// Observe runs agent once through a wrapper
func Observe(ctx context.Context, agent interfaces.Agent, sink Sink, req interfaces.Request, opts ...Option) (interfaces.Response, error) {
	return Wrap(agent, sink, opts...).Run(ctx, req)
}

// Name returns the wrapped agent's name
func (o *ObservedAgent) Name() string {
	return o.agent.Name()
}

// Unwrap returns the wrapped agent
func (o *ObservedAgent) Unwrap() interfaces.Agent {
	return o.agent
}

// Init forwards to the wrapped agent when it has an init hook
func (o *ObservedAgent) Init(ctx context.Context) error {
	if initializer, ok := o.agent.(interfaces.Initializer); ok {
		return initializer.Init(ctx)
	}
	return nil
}

// Shutdown forwards to the wrapped agent when it has a shutdown hook
func (o *ObservedAgent) Shutdown(ctx context.Context) error {
	if shutdowner, ok := o.agent.(interfaces.Shutdowner); ok {
		return shutdowner.Shutdown(ctx)
	}
	return nil
}

// Run invokes the wrapped agent and returns its response and error unchanged
func (o *ObservedAgent) Run(ctx context.Context, req interfaces.Request) (interfaces.Response, error) {
	event := Event{
		ID:        newEventID(),
		Agent:     o.agent.Name(),
		Project:   o.project,
		Operation: o.operation,
		StartTime: o.now(),
	}
	event.SessionID, _ = req.String("session_id")
	event.UserID, _ = req.String("user_id")
	if o.capture {
		event.Request = copyMap(req)
	}

	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, "agent."+o.operation,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("openinference.span.kind", "AGENT"),
				attribute.String("agent.name", event.Agent),
				attribute.String("llmops.project", o.project),
			),
		)
		sc := span.SpanContext()
		event.TraceID = sc.TraceID().String()
		event.SpanID = sc.SpanID().String()
		if event.SessionID != "" {
			span.SetAttributes(attribute.String("session.id", event.SessionID))
		}
		if event.UserID != "" {
			span.SetAttributes(attribute.String("user.id", event.UserID))
		}
	}

	o.logger.Debug(ctx, "Agent invocation started", map[string]interface{}{
		"agent":    event.Agent,
		"event_id": event.ID,
	})

	completed := false
	defer func() {
		if completed {
			return
		}
		recovered := recover()
		if recovered == nil {
			// runtime.Goexit
			o.finish(ctx, span, event, nil, errors.New("agent exited without returning"))
			return
		}
		o.finish(ctx, span, event, nil, fmt.Errorf("panic: %v", recovered))
		panic(recovered)
	}()

	resp, err := o.agent.Run(ctx, req)
	completed = true

	o.finish(ctx, span, event, resp, err)
	return resp, err
}

// finish closes the span, logs the outcome and emits the event
func (o *ObservedAgent) finish(ctx context.Context, span trace.Span, event Event, resp interfaces.Response, err error) {
	event.EndTime = o.now()
	event.Outcome = OutcomeSuccess
	if err != nil {
		event.Outcome = OutcomeError
		event.Error = err.Error()
	}
	if o.capture && resp != nil {
		event.Response = copyMap(resp)
	}
	event.Metadata = map[string]interface{}{
		"duration_ms": event.Duration().Milliseconds(),
	}

	var execErr *interfaces.AgentExecutionError
	if errors.As(err, &execErr) {
		event.Metadata["error_type"] = "agent_execution_error"
	} else if interfaces.IsPromptNotFound(err) {
		event.Metadata["error_type"] = "prompt_not_found"
	}

	if span != nil {
		span.SetAttributes(attribute.String("agent.outcome", string(event.Outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	fields := map[string]interface{}{
		"agent":       event.Agent,
		"event_id":    event.ID,
		"outcome":     string(event.Outcome),
		"duration_ms": event.Duration().Milliseconds(),
	}
	if err != nil {
		fields["error"] = event.Error
		o.logger.Info(ctx, "Agent invocation failed", fields)
	} else {
		o.logger.Debug(ctx, "Agent invocation completed", fields)
	}

	o.emit(ctx, event)
}

// emit delivers the event on a context detached from caller cancellation, logging any failure
func (o *ObservedAgent) emit(ctx context.Context, event Event) {
	if err := safeEmit(context.WithoutCancel(ctx), o.sink, event); err != nil {
		sinkErr, ok := err.(*interfaces.SinkError) //nolint:errorlint // only a top-level SinkError carries the full cause
		if !ok {
			sinkErr = interfaces.NewSinkError(sinkName(o.sink), err)
		}
		o.logger.Warn(ctx, "Failed to emit observability event", map[string]interface{}{
			"agent":    event.Agent,
			"event_id": event.ID,
			"sink":     sinkErr.Sink,
			"error":    sinkErr.Error(),
		})
	}
}

func safeEmit(ctx context.Context, sink Sink, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Emit(ctx, event)
}

func copyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
