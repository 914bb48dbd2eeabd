package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rybaukrainy/portal/internal/config"
)

// ErrMiss is returned when no role is cached for a profile
var ErrMiss = errors.New("cache miss")

// RoleCache remembers the role of a profile between requests
type RoleCache interface {
	GetRole(ctx context.Context, profileID string) (string, error)
	SetRole(ctx context.Context, profileID, role string, ttl time.Duration) error
	InvalidateRole(ctx context.Context, profileID string) error
	Close() error
}

// New returns a Redis backed cache when a URL is configured, memory otherwise
func New(cfg *config.Config) (RoleCache, error) {
	if cfg.RedisURL == "" {
		return NewMockRedisClient(), nil
	}
	return NewRedisClient(cfg)
}
