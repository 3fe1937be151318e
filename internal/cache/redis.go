// Package cache keeps computed sale indicators in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pauljones0/brick-resale-tracker/internal/stats"
)

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

const (
	connectionTimeout = 5 * time.Second
	generationKey     = "indicators:gen"
)

// IndicatorCache stores indicators under a generation number. Invalidate
// bumps the generation so every entry written before it is ignored and left
// to expire.
type IndicatorCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIndicatorCache connects to Redis and verifies the connection.
func NewIndicatorCache(addr, password string, db int, ttl time.Duration) (*IndicatorCache, error) {
	if addr == "" {
		return nil, ErrEmptyAddress
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &IndicatorCache{client: client, ttl: ttl}, nil
}

func (c *IndicatorCache) Close() error {
	return c.client.Close()
}

// Get looks catalogID up in the current generation and returns that
// generation. Pass it back to Set so an entry computed before an Invalidate
// lands in the retired generation and is never read.
func (c *IndicatorCache) Get(ctx context.Context, catalogID string) (stats.Stats, int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return stats.Stats{}, 0, false, err
	}
	key := entryKey(gen, catalogID)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return stats.Stats{}, gen, false, nil
	}
	if err != nil {
		return stats.Stats{}, gen, false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var s stats.Stats
	if err := json.Unmarshal(data, &s); err != nil {
		return stats.Stats{}, gen, false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return s, gen, true, nil
}

// Set stores s for catalogID under gen, as returned by Get.
func (c *IndicatorCache) Set(ctx context.Context, catalogID string, gen int64, s stats.Stats) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode indicators for %s: %w", catalogID, err)
	}
	key := entryKey(gen, catalogID)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Invalidate drops every cached entry by moving to a new generation.
func (c *IndicatorCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("failed to bump indicator generation: %w", err)
	}
	return nil
}

func (c *IndicatorCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to read indicator generation: %w", err)
	}
	return gen, nil
}

func entryKey(gen int64, catalogID string) string {
	return fmt.Sprintf("indicators:%d:%s", gen, catalogID)
}
