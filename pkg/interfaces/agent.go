package interfaces

import (
	"context"
	"fmt"
)

// Request is the structured input handed to an agent
type Request map[string]interface{}

// Response is the structured output produced by an agent, one per Request
type Response map[string]interface{}

// String returns the value stored under key when it is a non-empty string
func (r Request) String(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	value, exists := r[key]
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	if !ok || str == "" {
		return "", false
	}
	return str, true
}

// StringValues returns every string field of the request, used for prompt variables
func (r Request) StringValues() map[string]string {
	values := make(map[string]string, len(r))
	for key, value := range r {
		switch v := value.(type) {
		case string:
			values[key] = v
		case fmt.Stringer:
			values[key] = v.String()
		}
	}
	return values
}

// Agent represents a named unit of behavior that turns a request into a response
type Agent interface {
	// Name returns the name the agent is registered and observed under
	Name() string

	// Run executes the agent with the given request
	Run(ctx context.Context, req Request) (Response, error)
}

// Initializer is implemented by agents that need a one-time setup step before serving
type Initializer interface {
	Init(ctx context.Context) error
}

// Shutdowner is implemented by agents that hold resources to release on shutdown
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}
