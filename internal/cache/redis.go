package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rybaukrainy/portal/internal/config"
)

type RedisClient struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		prefix: cfg.RedisPrefix + "role:",
	}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) GetRole(ctx context.Context, profileID string) (string, error) {
	role, err := r.client.Get(ctx, r.prefix+profileID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get error: %w", err)
	}
	return role, nil
}

func (r *RedisClient) SetRole(ctx context.Context, profileID, role string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+profileID, role, ttl).Err()
}

func (r *RedisClient) InvalidateRole(ctx context.Context, profileID string) error {
	if err := r.client.Del(ctx, r.prefix+profileID).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}
