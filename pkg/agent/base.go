package agent

import (
	"context"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
)

// Base carries the name every agent is registered and observed under. Embed it in concrete agents.
type Base struct {
	name string
}

// NewBase creates a Base with the given name
func NewBase(name string) Base {
	return Base{name: name}
}

// Name returns the agent name
func (b Base) Name() string {
	return b.name
}

// RunFunc is the signature of an agent body
type RunFunc func(ctx context.Context, req interfaces.Request) (interfaces.Response, error)

// Func adapts a plain function to interfaces.Agent
type Func struct {
	Base
	fn RunFunc
}

// NewFunc creates an agent named name that delegates Run to fn
func NewFunc(name string, fn RunFunc) *Func {
	return &Func{Base: NewBase(name), fn: fn}
}

// Run implements interfaces.Agent.Run
func (f *Func) Run(ctx context.Context, req interfaces.Request) (interfaces.Response, error) {
	return f.fn(ctx, req)
}
