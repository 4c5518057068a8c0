package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Ingenimax/llmops-agent/pkg/storage"
)

func init() {
	// Register the local storage factory
	storage.NewLocalStore = New
}

// Storage implements storage.Store for a local directory
type Storage struct {
	basePath string
}

// Option represents an option for configuring local storage
type Option func(*Storage)

// WithPath sets the base directory
func WithPath(path string) Option {
	return func(s *Storage) {
		s.basePath = path
	}
}

// New creates a new local filesystem store
func New(cfg storage.LocalConfig) (storage.Store, error) {
	return NewWithOptions(WithPath(cfg.Path))
}

// NewWithOptions creates a new local store with functional options
func NewWithOptions(options ...Option) (*Storage, error) {
	s := &Storage{
		basePath: "prompts",
	}

	for _, opt := range options {
		opt(s)
	}

	if s.basePath == "" {
		s.basePath = "prompts"
	}

	info, err := os.Stat(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage directory %s: %w", s.basePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage path %s is not a directory", s.basePath)
	}

	return s, nil
}

// Name returns the storage backend name
func (s *Storage) Name() string {
	return "local"
}

// Read returns the content of the named file. Names that leave the base directory,
// directly or through a symlink, and names of directories are reported as not found.
func (s *Storage) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, err := s.resolve(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, storage.ErrObjectNotFound)
	}

	root, err := os.OpenRoot(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage directory %s: %w", s.basePath, err)
	}
	defer root.Close()

	info, err := root.Stat(rel)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return nil, fmt.Errorf("%s: %w", name, storage.ErrObjectNotFound)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", name, storage.ErrObjectNotFound)
	}

	data, err := root.ReadFile(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, storage.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// List returns every regular file below the base directory using slash separated names
func (s *Storage) List(ctx context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.basePath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.basePath, err)
	}

	sort.Strings(names)
	return names, nil
}

// resolve maps an object name to a path relative to the base directory, refusing names that escape it
func (s *Storage) resolve(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == "." || filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return cleaned, nil
}
