package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medbook/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps each session slot under its own key with a TTL that
// is refreshed on every write, so a session expires after a period of inactivity.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(sessionID, key string) string {
	return fmt.Sprintf("session:%s:%s", sessionID, key)
}

func (r *RedisSessionStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, sessionKey(sessionID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	return val, nil
}

func (r *RedisSessionStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Set(ctx, sessionKey(sessionID, key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, sessionID, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, sessionKey(sessionID, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *RedisSessionStore) Ping(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return Ping(ctx, r.client)
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
