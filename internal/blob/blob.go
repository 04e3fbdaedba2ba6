// Package blob persists processed image bytes behind one interface, backed
// by local disk or S3-compatible object storage.
package blob

import (
	"context"
	"fmt"

	"github.com/varunv-ux/getglow/internal/config"
)

// Store persists raw bytes and returns a retrievable URL.
type Store interface {
	// Put writes data under a name derived from suggestedName and returns the
	// public URL of the stored object.
	Put(ctx context.Context, data []byte, suggestedName, contentType string) (string, error)
	// Get reads back the object behind url.
	Get(ctx context.Context, url string) ([]byte, error)
	// Delete removes the object behind url. Best-effort: callers log failures
	// rather than propagate them.
	Delete(ctx context.Context, url string) error
}

// NewStore constructs the configured blob backend.
func NewStore(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStore(cfg.Local)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob backend %q: must be one of local, s3", cfg.Backend)
	}
}
