// Package cache provides the optional Redis-backed processed-message cache,
// a fast path for deduplicating redelivered platform events. The store's
// message-ID lookup stays authoritative; losing the cache loses nothing.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

type ProcessedCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func New(redisURL string) (*ProcessedCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *redis.Client) *ProcessedCache {
	return &ProcessedCache{client: client, prefix: "processed:", ttl: defaultTTL}
}

// Seen marks the message as processed and reports whether it had already been
// marked. The mark expires after the TTL; old redeliveries then fall through
// to the store lookup.
func (c *ProcessedCache) Seen(ctx context.Context, messageID string) (bool, error) {
	set, err := c.client.SetNX(ctx, c.prefix+messageID, 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return !set, nil
}

func (c *ProcessedCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *ProcessedCache) Close() error {
	return c.client.Close()
}
