package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is a read-through store with a tag index so catalog edits can drop
// every cached query that touched an entity.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error
	Invalidate(ctx context.Context, tags ...string) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "catalog"}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.valueKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	valueKey := r.valueKey(key)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, valueKey, value, ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, r.tagKey(tag), valueKey)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tagKey := r.tagKey(tag)
		members, err := r.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return fmt.Errorf("redis smembers failed: %w", err)
		}

		keys := append(members, tagKey)
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis delete failed: %w", err)
		}
	}
	return nil
}

func (r *RedisCache) valueKey(key string) string {
	return fmt.Sprintf("%s:value:%s", r.prefix, key)
}

func (r *RedisCache) tagKey(tag string) string {
	return fmt.Sprintf("%s:tag:%s", r.prefix, tag)
}

// NoopCache always misses; used when no Redis is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoopCache) Set(context.Context, string, []byte, time.Duration, []string) error {
	return nil
}

func (NoopCache) Invalidate(context.Context, ...string) error {
	return nil
}
