// Package blob stores uploaded document bytes under their server-generated
// names. Backends: memory for tests and single-node runs, fs for a local
// directory and s3 for any S3-compatible object store.
package blob

import (
	"context"
	"fmt"
	"strings"

	"kycgate/internal/platform/config"
)

// Store persists document content.
type Store interface {
	Put(ctx context.Context, name string, content []byte, contentType string) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

// New selects a backend from configuration.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemory(), nil
	case "fs":
		return NewFS(cfg.Dir)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
