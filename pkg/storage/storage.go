package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned when a named object does not exist in the backend
var ErrObjectNotFound = errors.New("object not found")

// Store defines the interface for reading prompt files from a backend
type Store interface {
	// Read returns the content of the named object
	Read(ctx context.Context, name string) ([]byte, error)

	// List returns the names of all objects, relative to the store root
	List(ctx context.Context) ([]string, error)

	// Name returns the storage backend name
	Name() string
}

// Config contains configuration for storage backends
type Config struct {
	// Type is the storage backend type ("local", "gcs")
	Type string

	// Local storage configuration
	Local LocalConfig

	// GCS storage configuration
	GCS GCSConfig
}

// LocalConfig contains configuration for local filesystem storage
type LocalConfig struct {
	// Path is the directory holding the objects
	Path string
}

// GCSConfig contains configuration for Google Cloud Storage
type GCSConfig struct {
	// Bucket is the GCS bucket name
	Bucket string

	// Prefix is the path prefix within the bucket
	Prefix string

	// CredentialsFile is the path to the service account JSON file (optional)
	// If empty, uses Application Default Credentials
	CredentialsFile string

	// CredentialsJSON is the service account JSON content (optional)
	// Can be raw JSON or base64 encoded. Takes precedence over CredentialsFile.
	CredentialsJSON string

	// Endpoint overrides the GCS API endpoint, used for emulators
	Endpoint string
}

// NewStoreFromConfig creates a storage backend from configuration
func NewStoreFromConfig(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "local", "":
		if NewLocalStore == nil {
			return nil, fmt.Errorf("local storage backend not linked")
		}
		return NewLocalStore(cfg.Local)
	case "gcs":
		if NewGCSStore == nil {
			return nil, fmt.Errorf("gcs storage backend not linked")
		}
		return NewGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// NewLocalStore creates a new local filesystem store
// This is a placeholder that will be implemented in the local package
var NewLocalStore func(cfg LocalConfig) (Store, error)

// NewGCSStore creates a new GCS store
// This is a placeholder that will be implemented in the gcs package
var NewGCSStore func(ctx context.Context, cfg GCSConfig) (Store, error)
