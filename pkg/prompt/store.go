package prompt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/storage"
)

// Store resolves prompt identifiers to prompts
type Store interface {
	// Get returns the prompt for id, or a *interfaces.PromptNotFoundError
	Get(ctx context.Context, id string) (*Prompt, error)

	// List returns the known prompt identifiers, sorted
	List(ctx context.Context) ([]string, error)
}

// BackendStore reads prompts from a storage backend
type BackendStore struct {
	backend storage.Store
}

// NewStore creates a prompt store on top of a storage backend
func NewStore(backend storage.Store) *BackendStore {
	return &BackendStore{backend: backend}
}

// Get tries each known file form for id and parses the first one found
func (s *BackendStore) Get(ctx context.Context, id string) (*Prompt, error) {
	if id == "" {
		return nil, interfaces.NewPromptNotFoundError(id, s.backend.Name())
	}

	for _, name := range candidates(id) {
		data, err := s.backend.Read(ctx, name)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load prompt %s: %w", id, err)
		}
		return Parse(idFromName(id), name, data)
	}

	return nil, interfaces.NewPromptNotFoundError(id, s.backend.Name())
}

// List returns the identifiers of every stored prompt with extensions removed
func (s *BackendStore) List(ctx context.Context) ([]string, error) {
	names, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}

	seen := make(map[string]bool, len(names))
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id := idFromName(name)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// MemoryStore holds prompts in memory, used by tests and embedded defaults
type MemoryStore struct {
	mu      sync.RWMutex
	prompts map[string]*Prompt
}

// NewMemoryStore creates a memory store seeded with the given prompts
func NewMemoryStore(prompts ...*Prompt) *MemoryStore {
	s := &MemoryStore{prompts: make(map[string]*Prompt, len(prompts))}
	for _, p := range prompts {
		s.Put(p)
	}
	return s
}

// Put adds or replaces a prompt
func (s *MemoryStore) Put(p *Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[p.ID] = p
}

// Get returns a copy of the prompt stored under id
func (s *MemoryStore) Get(_ context.Context, id string) (*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[id]
	if !ok {
		return nil, interfaces.NewPromptNotFoundError(id, "memory")
	}
	clone := *p
	return &clone, nil
}

// List returns the stored identifiers, sorted
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.prompts))
	for id := range s.prompts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
