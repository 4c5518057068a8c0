package observe

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result class of an observed invocation
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Event is the lifecycle record emitted once per agent invocation
type Event struct {
	ID        string    `json:"id"`
	Agent     string    `json:"agent"`
	Project   string    `json:"project,omitempty"`
	Operation string    `json:"operation,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
	SpanID    string    `json:"span_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`

	Request  map[string]interface{} `json:"request,omitempty"`
	Response map[string]interface{} `json:"response,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Duration returns the wall time of the invocation
func (e Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Failed reports whether the invocation ended in error
func (e Event) Failed() bool {
	return e.Outcome == OutcomeError
}

func newEventID() string {
	return uuid.NewString()
}

// Sink receives observability events
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, event Event) error

// Emit calls f(ctx, event)
func (f SinkFunc) Emit(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Closer is implemented by sinks that hold resources or buffered events
type Closer interface {
	Close(ctx context.Context) error
}

// named is implemented by sinks that report a stable name in errors and logs
type named interface {
	Name() string
}

func sinkName(sink Sink) string {
	if n, ok := sink.(named); ok {
		return n.Name()
	}
	return "sink"
}
