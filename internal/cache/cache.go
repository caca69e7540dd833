package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotTTL bounds how long a meal or plan snapshot may serve reads.
const SnapshotTTL = 10 * time.Minute

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisCache implements the Cache interface using go-redis/v9. It also backs
// the offline controller's generation storage.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *RedisCache) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.client.Publish(ctx, channel, payload).Err()
}

// Subscribe returns a subscription to channel. The caller must Close it.
func (c *RedisCache) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.client.Subscribe(ctx, channel)
}

// --- offline generation storage ---

// PutEntry stores one response under generation and registers the generation.
func (c *RedisCache) PutEntry(ctx context.Context, generation, key string, value []byte) error {
	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, OfflineGenerationsKey, generation)
	pipe.HSet(ctx, OfflineGenerationKey(generation), key, value)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) GetEntry(ctx context.Context, generation, key string) ([]byte, bool, error) {
	val, err := c.client.HGet(ctx, OfflineGenerationKey(generation), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// OpenGeneration registers generation without storing anything in it.
func (c *RedisCache) OpenGeneration(ctx context.Context, generation string) error {
	return c.client.SAdd(ctx, OfflineGenerationsKey, generation).Err()
}

func (c *RedisCache) Generations(ctx context.Context) ([]string, error) {
	return c.client.SMembers(ctx, OfflineGenerationsKey).Result()
}

func (c *RedisCache) DeleteGeneration(ctx context.Context, generation string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, OfflineGenerationKey(generation))
	pipe.SRem(ctx, OfflineGenerationsKey, generation)
	_, err := pipe.Exec(ctx)
	return err
}
