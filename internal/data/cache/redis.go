package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisCache implements Cache on Redis so market-data survives restarts and
// is shared across processes. Values are stored as a JSON envelope carrying
// the cached-at timestamp.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string

	mu        sync.Mutex
	hits      int64
	misses    int64
	errors    int64
}

type redisEnvelope struct {
	Data     json.RawMessage `json:"data"`
	CachedAt time.Time       `json:"cached_at"`
}

// NewRedisCache connects a cache to the given Redis instance.
func NewRedisCache(addr, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	return &RedisCache{
		client:    client,
		keyPrefix: "degenrun:cache:",
	}
}

// Get returns the raw JSON payload cached under key. Callers unmarshal into
// their own type.
func (r *RedisCache) Get(key string) (interface{}, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	raw, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		r.mu.Lock()
		if err != redis.Nil {
			r.errors++
			log.Warn().Err(err).Str("key", key).Msg("redis cache get failed")
		}
		r.misses++
		r.mu.Unlock()
		return nil, false
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.mu.Lock()
		r.errors++
		r.misses++
		r.mu.Unlock()
		return nil, false
	}

	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
	return env.Data, true
}

// Set stores value under key for ttl. Marshal failures are logged, not
// returned: a cache write must never fail the read path it serves.
func (r *RedisCache) Set(key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis cache marshal failed")
		return
	}
	env, err := json.Marshal(redisEnvelope{Data: data, CachedAt: time.Now()})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := r.client.Set(ctx, r.keyPrefix+key, env, ttl).Err(); err != nil {
		r.mu.Lock()
		r.errors++
		r.mu.Unlock()
		log.Warn().Err(err).Str("key", key).Msg("redis cache set failed")
	}
}

// Delete removes key.
func (r *RedisCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = r.client.Del(ctx, r.keyPrefix+key).Err()
}

// Stats returns hit/miss counters for this process.
func (r *RedisCache) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := r.hits + r.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(r.hits) / float64(total)
	}
	return Stats{Hits: r.hits, Misses: r.misses, HitRatio: ratio}
}

// Close releases the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
