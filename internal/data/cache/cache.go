// Package cache provides the market-data cache used by the aggregator.
// Implementations are injected rather than shared as module singletons.
package cache

import "time"

// Cache is a key/value store with per-entry TTL.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Delete(key string)
	Stats() Stats
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Entries   int     `json:"entries"`
	HitRatio  float64 `json:"hit_ratio"`
}
