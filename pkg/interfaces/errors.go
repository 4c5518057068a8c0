package interfaces

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAgentNotFound is returned when no agent is registered under a name
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentAlreadyRegistered is returned when registering a duplicate agent name
	ErrAgentAlreadyRegistered = errors.New("agent already registered")

	// ErrPromptNotFound matches every PromptNotFoundError via errors.Is
	ErrPromptNotFound = errors.New("prompt not found")

	// ErrSinkBufferFull is returned by asynchronous sinks that cannot accept more events
	ErrSinkBufferFull = errors.New("sink buffer full")

	// ErrSinkClosed is returned when emitting to a sink that has been closed
	ErrSinkClosed = errors.New("sink closed")
)

// AgentExecutionError signals that an agent's business logic could not complete
type AgentExecutionError struct {
	Agent   string // Name of the agent that failed
	Message string // Human-readable description
	Cause   error  // The underlying error
}

// NewAgentExecutionError creates a new AgentExecutionError
func NewAgentExecutionError(agent, message string, cause error) *AgentExecutionError {
	return &AgentExecutionError{
		Agent:   agent,
		Message: message,
		Cause:   cause,
	}
}

// Error implements the error interface
func (e *AgentExecutionError) Error() string {
	var parts []string

	if e.Agent != "" {
		parts = append(parts, fmt.Sprintf("agent '%s' execution failed", e.Agent))
	} else {
		parts = append(parts, "agent execution failed")
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	message := strings.Join(parts, ": ")
	if e.Cause != nil {
		message += fmt.Sprintf(": %v", e.Cause)
	}
	return message
}

// Unwrap returns the underlying error
func (e *AgentExecutionError) Unwrap() error {
	return e.Cause
}

// PromptNotFoundError signals that a prompt identifier does not resolve to stored content
type PromptNotFoundError struct {
	ID     string // Prompt identifier that was requested
	Source string // Name of the store that was searched
}

// NewPromptNotFoundError creates a new PromptNotFoundError
func NewPromptNotFoundError(id, source string) *PromptNotFoundError {
	return &PromptNotFoundError{ID: id, Source: source}
}

// Error implements the error interface
func (e *PromptNotFoundError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("prompt '%s' not found in %s store", e.ID, e.Source)
	}
	return fmt.Sprintf("prompt '%s' not found", e.ID)
}

// Is reports whether target is ErrPromptNotFound
func (e *PromptNotFoundError) Is(target error) bool {
	return target == ErrPromptNotFound
}

// SinkError signals that a telemetry sink could not accept an event
type SinkError struct {
	Sink  string // Name of the sink
	Cause error  // The underlying error
}

// NewSinkError creates a new SinkError
func NewSinkError(sink string, cause error) *SinkError {
	return &SinkError{Sink: sink, Cause: cause}
}

// Error implements the error interface
func (e *SinkError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("observability sink '%s' failed", e.Sink)
	}
	return fmt.Sprintf("observability sink '%s' failed: %v", e.Sink, e.Cause)
}

// Unwrap returns the underlying error
func (e *SinkError) Unwrap() error {
	return e.Cause
}

// IsAgentExecutionError reports whether err is or wraps an AgentExecutionError
func IsAgentExecutionError(err error) bool {
	var execErr *AgentExecutionError
	return errors.As(err, &execErr)
}

// IsPromptNotFound reports whether err is or wraps a PromptNotFoundError
func IsPromptNotFound(err error) bool {
	return errors.Is(err, ErrPromptNotFound)
}
