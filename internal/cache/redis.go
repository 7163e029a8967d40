// Package cache keeps read-mostly resource documents in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/enrollhub/internal/config"
	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// ErrDisabled is returned by every call on a disabled cache.
var ErrDisabled = errors.New("cache is disabled")

// ErrMiss is returned when the key is not cached.
var ErrMiss = errors.New("key not found in cache")

// ErrStale is returned by SetResource when the resource was invalidated after
// the caller read its generation.
var ErrStale = errors.New("resource invalidated since read")

// RedisCache caches resources by id. A disabled cache answers every call
// with ErrDisabled so callers treat it as a permanent miss.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
}

// NewRedisCache creates a new Redis cache and checks the connection.
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return Disabled(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewRedisCacheFromClient(client, cfg.TTL), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, enabled: true}
}

// Disabled returns a cache that never stores anything.
func Disabled() *RedisCache {
	return &RedisCache{enabled: false}
}

// ResourceKey generates the cache key for a resource.
func ResourceKey(id string) string {
	return fmt.Sprintf("resource:%s", id)
}

// GenerationKey is bumped on every invalidation of the resource.
func GenerationKey(id string) string {
	return fmt.Sprintf("resource:%s:gen", id)
}

// Generation returns the resource's invalidation counter. Read it before
// loading the resource from the store and hand it to SetResource.
func (c *RedisCache) Generation(ctx context.Context, id string) (int64, error) {
	if !c.enabled {
		return 0, ErrDisabled
	}
	gen, err := c.client.Get(ctx, GenerationKey(id)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to get resource generation from Redis")
	}
	return gen, nil
}

// GetResource returns the cached resource or ErrMiss.
func (c *RedisCache) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}

	data, err := c.client.Get(ctx, ResourceKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, errors.Wrap(err, "failed to get resource from Redis")
	}

	var r model.Resource
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal cached resource")
	}
	return &r, nil
}

// SetResource stores r until the configured TTL elapses, unless the resource
// was invalidated after gen was read. That case returns ErrStale.
func (c *RedisCache) SetResource(ctx context.Context, r *model.Resource, gen int64) error {
	if !c.enabled {
		return ErrDisabled
	}

	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "failed to marshal resource for caching")
	}

	genKey := GenerationKey(r.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != gen {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, ResourceKey(r.ID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return nil
	case err == ErrStale, err == redis.TxFailedErr:
		return ErrStale
	default:
		return errors.Wrap(err, "failed to set resource in Redis")
	}
}

// InvalidateResource drops the cached copy of a resource.
func (c *RedisCache) InvalidateResource(ctx context.Context, id string) error {
	if !c.enabled {
		return ErrDisabled
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ResourceKey(id))
		pipe.Incr(ctx, GenerationKey(id))
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to invalidate resource in Redis")
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}
	return c.client.Close()
}
