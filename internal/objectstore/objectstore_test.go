package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rybaukrainy/portal/internal/config"
)

func TestDiskStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := NewDiskStore(dir, "/static/uploads/")
	ctx := context.Background()

	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "a.jpg", []byte("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "a.jpg"))
	if err != nil || string(data) != "jpeg" {
		t.Errorf("file = %q, %v", data, err)
	}
	if got := store.PublicURL("a.jpg"); got != "/static/uploads/a.jpg" {
		t.Errorf("PublicURL() = %q", got)
	}
	if err := store.Put(ctx, "../escape.jpg", nil, "image/jpeg"); err == nil {
		t.Error("Put() should reject keys leaving the directory")
	}
}

func TestNewPicksDiskWithoutEndpoint(t *testing.T) {
	s, err := New(context.Background(), &config.Config{UploadDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*DiskStore); !ok {
		t.Errorf("New() = %T, want *DiskStore", s)
	}
}

func TestS3StorePublicURL(t *testing.T) {
	cfg := &config.Config{
		R2Endpoint:  "https://acc.r2.cloudflarestorage.com/",
		R2AccessKey: "k", R2SecretKey: "s",
		R2Bucket: "images", R2Region: "auto",
	}
	s, err := NewS3Store(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}
	if got := s.PublicURL("x.jpg"); got != "https://acc.r2.cloudflarestorage.com/images/x.jpg" {
		t.Errorf("PublicURL() = %q", got)
	}

	cfg.R2PublicBaseURL = "https://cdn.ryba.ua/"
	s, _ = NewS3Store(context.Background(), cfg)
	if got := s.PublicURL("x.jpg"); got != "https://cdn.ryba.ua/x.jpg" {
		t.Errorf("PublicURL() with base = %q", got)
	}
}
