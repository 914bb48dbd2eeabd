// Package objectstore stores uploaded images and hands out their public URLs.
package objectstore

import (
	"context"

	"github.com/rybaukrainy/portal/internal/config"
)

// Store is a bucket of publicly readable objects
type Store interface {
	// EnsureBucket creates the bucket with public read access when missing
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PublicURL(key string) string
}

// New returns an S3 store when an endpoint is configured, a disk store otherwise
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.UsesS3() {
		return NewS3Store(ctx, cfg)
	}
	return NewDiskStore(cfg.UploadDir, "/uploads"), nil
}
