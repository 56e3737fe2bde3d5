// Package redis implements the durable key/value store on Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/degenrun/degenrun/internal/persistence"
)

// KVStore implements persistence.KVStore on a Redis client.
type KVStore struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
}

// NewKVStore creates a KV store with the degenrun key namespace.
func NewKVStore(client *redis.Client) *KVStore {
	return &KVStore{
		client:    client,
		keyPrefix: "degenrun:kv:",
		timeout:   3 * time.Second,
	}
}

// NewClient dials Redis with the connection settings used across the agent.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// GetValue returns the value stored under key, or persistence.ErrNotFound.
func (s *KVStore) GetValue(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	val, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if err == redis.Nil {
		return "", persistence.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	return val, nil
}

// SetValue stores value under key without expiry; KV entries are durable
// scalars, not cache.
func (s *KVStore) SetValue(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}
