package gcs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	promptstorage "github.com/Ingenimax/llmops-agent/pkg/storage"
)

func init() {
	// Register the GCS storage factory
	promptstorage.NewGCSStore = New
}

// Storage implements storage.Store for a Google Cloud Storage bucket
type Storage struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a new GCS store
func New(ctx context.Context, cfg promptstorage.GCSConfig) (promptstorage.Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("GCS bucket name is required")
	}

	// Build client options
	var opts []option.ClientOption

	// CredentialsJSON takes precedence over CredentialsFile
	if cfg.CredentialsJSON != "" {
		//nolint:staticcheck // SA1019: WithCredentialsJSON is deprecated but needed for programmatic credentials
		opts = append(opts, option.WithCredentialsJSON([]byte(parseCredentialsJSON(cfg.CredentialsJSON))))
	} else if cfg.CredentialsFile != "" {
		//nolint:staticcheck // SA1019: WithCredentialsFile is deprecated but needed for file-based credentials
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Name returns the storage backend name
func (s *Storage) Name() string {
	return "gcs"
}

// Read downloads the named object
func (s *Storage) Read(ctx context.Context, name string) ([]byte, error) {
	objectPath := joinPath(s.prefix, strings.TrimPrefix(name, "/"))

	rc, err := s.client.Bucket(s.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", name, promptstorage.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to read from GCS: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}

	return data, nil
}

// List returns the object names under the configured prefix, relative to it
func (s *Storage) List(ctx context.Context) ([]string, error) {
	query := &storage.Query{}
	if s.prefix != "" {
		query.Prefix = s.prefix + "/"
	}

	var names []string
	it := s.client.Bucket(s.bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list GCS objects: %w", err)
		}
		name := strings.TrimPrefix(attrs.Name, query.Prefix)
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

// Close releases the underlying client
func (s *Storage) Close() error {
	return s.client.Close()
}

// joinPath joins path components with forward slashes
func joinPath(base, path string) string {
	if base == "" {
		return path
	}
	if path == "" {
		return base
	}
	return base + "/" + path
}

// parseCredentialsJSON parses credentials that may be base64 encoded or raw JSON
func parseCredentialsJSON(creds string) string {
	// Try to decode as base64 first
	if decoded, err := base64.StdEncoding.DecodeString(creds); err == nil {
		// Check if decoded content looks like JSON
		if len(decoded) > 0 && decoded[0] == '{' {
			return string(decoded)
		}
	}
	// Return as-is (assuming it's raw JSON)
	return creds
}
