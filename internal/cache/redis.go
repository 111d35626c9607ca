package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisInvalidator talks to a Redis instance shared with the consumers of
// the prediction cache.
type RedisInvalidator struct {
	client *redis.Client
}

var _ Invalidator = (*RedisInvalidator)(nil)

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(addr, password string, db int) (*RedisInvalidator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisInvalidator{client: client}, nil
}

// Invalidate drops the predictability and prediction entries for a ticker.
func (r *RedisInvalidator) Invalidate(ctx context.Context, ticker string) error {
	keys := []string{PredictabilityKey(ticker), PredictionKey(ticker)}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// InvalidatePattern drops every key matching the glob pattern. The keyspace
// this application owns is small, so KEYS is acceptable here.
func (r *RedisInvalidator) InvalidatePattern(ctx context.Context, pattern string) error {
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("redis keys: %w", err)
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis clear: %w", err)
		}
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisInvalidator) Close() error {
	return r.client.Close()
}
