package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes objects below a directory served as static files
type DiskStore struct {
	dir       string
	urlPrefix string
}

func NewDiskStore(dir, urlPrefix string) *DiskStore {
	return &DiskStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

func (d *DiskStore) EnsureBucket(ctx context.Context) error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	return nil
}

func (d *DiskStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if strings.Contains(key, "..") || strings.ContainsRune(key, os.PathSeparator) {
		return fmt.Errorf("invalid object key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(d.dir, key), body, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (d *DiskStore) PublicURL(key string) string {
	return d.urlPrefix + "/" + key
}
