package database

import (
	"context"
	"encoding/json"
	"time"
)

const (
	// Cache key prefixes
	CacheKeySettings     = "licensegate:settings"
	CacheKeyPolicy       = "licensegate:policy:"
	CacheKeyEnvato       = "licensegate:envato:"
	CacheKeyVerification = "licensegate:verify:"

	// Cache TTLs
	CacheTTLSettings = 5 * time.Minute
	CacheTTLPolicy   = time.Hour
	CacheTTLEnvato   = time.Minute
)

// CacheGet retrieves a value from Redis cache and unmarshals it into dest
func CacheGet(key string, dest interface{}) error {
	ctx := context.Background()
	data, err := Redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// CacheSet stores a value in Redis cache with TTL
func CacheSet(key string, value interface{}, ttl time.Duration) error {
	ctx := context.Background()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return Redis.Set(ctx, key, data, ttl).Err()
}

// CacheDelete removes a key from Redis cache
func CacheDelete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx := context.Background()
	return Redis.Del(ctx, keys...).Err()
}

// CacheDeletePattern deletes all keys matching a pattern (use with caution)
func CacheDeletePattern(pattern string) error {
	ctx := context.Background()
	iter := Redis.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return Redis.Del(ctx, keys...).Err()
	}
	return nil
}

// InvalidateSettingsCache clears the settings list cache and all cached
// policy values
func InvalidateSettingsCache() {
	CacheDelete(CacheKeySettings)
	CacheDeletePattern(CacheKeyPolicy + "*")
}

// InvalidateEnvatoCache clears the cached Envato configuration state
func InvalidateEnvatoCache() {
	CacheDeletePattern(CacheKeyEnvato + "*")
}

// InvalidateVerificationCache clears cached verification results
func InvalidateVerificationCache() {
	CacheDeletePattern(CacheKeyVerification + "*")
}

// RedisCache adapts the Redis helpers to the store.Cache port so services
// take an injected cache instead of reaching for the global client.
type RedisCache struct{}

func NewRedisCache() *RedisCache {
	return &RedisCache{}
}

func (c *RedisCache) Get(key string, dest interface{}) error {
	return CacheGet(key, dest)
}

func (c *RedisCache) Set(key string, value interface{}, ttl time.Duration) error {
	return CacheSet(key, value, ttl)
}

func (c *RedisCache) Delete(keys ...string) error {
	return CacheDelete(keys...)
}

func (c *RedisCache) DeletePattern(pattern string) error {
	return CacheDeletePattern(pattern)
}
