package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
)

// Registry manages a collection of agents keyed by name
type Registry struct {
	mu     sync.RWMutex
	agents map[string]interfaces.Agent
	order  []string
}

// NewRegistry creates a new agent registry
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]interfaces.Agent),
	}
}

// Register adds an agent under its own name
func (r *Registry) Register(agent interfaces.Agent) error {
	if agent == nil {
		return fmt.Errorf("agent is required")
	}
	name := agent.Name()
	if name == "" {
		return fmt.Errorf("agent name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("%w: %s", interfaces.ErrAgentAlreadyRegistered, name)
	}
	r.agents[name] = agent
	r.order = append(r.order, name)
	return nil
}

// Get retrieves an agent by name
func (r *Registry) Get(name string) (interfaces.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAgentNotFound, name)
	}
	return agent, nil
}

// Unregister removes an agent from the registry
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; !exists {
		return
	}
	delete(r.agents, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// List returns all registered agent names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Init calls Init on every agent implementing interfaces.Initializer, in registration order.
// It stops at the first failure.
func (r *Registry) Init(ctx context.Context) error {
	for _, agent := range r.snapshot() {
		initializer, ok := agent.(interfaces.Initializer)
		if !ok {
			continue
		}
		if err := initializer.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize agent %s: %w", agent.Name(), err)
		}
	}
	return nil
}

// Shutdown calls Shutdown on every agent implementing interfaces.Shutdowner, in reverse
// registration order, and joins the failures.
func (r *Registry) Shutdown(ctx context.Context) error {
	agents := r.snapshot()
	var errs []error
	for i := len(agents) - 1; i >= 0; i-- {
		shutdowner, ok := agents[i].(interfaces.Shutdowner)
		if !ok {
			continue
		}
		if err := shutdowner.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down agent %s: %w", agents[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) snapshot() []interfaces.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]interfaces.Agent, 0, len(r.order))
	for _, name := range r.order {
		agents = append(agents, r.agents[name])
	}
	return agents
}
