package modelsource

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
)

var errCacheMiss = errors.New("cache miss")

// KV is the key/value surface the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(addr string) *RedisKV {
	return &RedisKV{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	return data, err
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}

const (
	cacheKeyPrefix  = "viz:model:"
	DefaultCacheTTL = 6 * time.Hour
)

// CachedFetcher serves raw models from a KV cache, falling back to the next
// fetcher on a miss. Cache failures are logged and never fail a fetch.
type CachedFetcher struct {
	next Fetcher
	kv   KV
	ttl  time.Duration
}

func NewCachedFetcher(next Fetcher, kv KV, ttl time.Duration) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedFetcher{next: next, kv: kv, ttl: ttl}
}

func (c *CachedFetcher) Fetch(ctx context.Context, lineName string) (*feeder.Model, error) {
	key := cacheKeyPrefix + lineName

	data, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		var m feeder.Model
		if err := json.Unmarshal(data, &m); err == nil {
			return &m, nil
		}
		slog.Warn("discarding corrupt cached model", "line", lineName)
	case !errors.Is(err, errCacheMiss):
		slog.Warn("model cache read failed", "line", lineName, "error", err)
	}

	m, err := c.next.Fetch(ctx, lineName)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(m); err == nil {
		if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
			slog.Warn("model cache write failed", "line", lineName, "error", err)
		}
	}
	return m, nil
}
