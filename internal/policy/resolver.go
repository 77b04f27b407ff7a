package policy

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/licensegate/backend/internal/store"
)

const (
	cachePrefix = "licensegate:policy:"
	cacheTTL    = time.Hour
)

// Resolver resolves named policy values with a three-tier fallback:
// cache, then the settings store, then the static default. Lookups never
// fail: any storage or cache error degrades to the default so a policy
// read can never take down a verification request.
type Resolver struct {
	store store.SettingStore
	cache store.Cache
	ttl   time.Duration
}

func NewResolver(settings store.SettingStore, cache store.Cache) *Resolver {
	return &Resolver{store: settings, cache: cache, ttl: cacheTTL}
}

func cacheKey(name string) string {
	sum := md5.Sum([]byte(name))
	return cachePrefix + hex.EncodeToString(sum[:])
}

// lookup resolves the raw string value for a key. The boolean reports
// whether any tier produced a value.
func (r *Resolver) lookup(key string) (string, bool) {
	var cached string
	if err := r.cache.Get(cacheKey(key), &cached); err == nil {
		return cached, true
	}

	value, err := r.store.Value(key)
	if err == nil {
		if err := r.cache.Set(cacheKey(key), value, r.ttl); err != nil {
			log.Printf("policy: cache write failed for %s: %v", key, err)
		}
		return value, true
	}
	if err != store.ErrNotFound {
		log.Printf("policy: settings lookup failed for %s, using default: %v", key, err)
	}

	if def, ok := Defaults[key]; ok {
		return def, true
	}
	return "", false
}

// GetString resolves a string policy value
func (r *Resolver) GetString(key, def string) string {
	value, ok := r.lookup(key)
	if !ok || value == "" {
		return def
	}
	return value
}

// GetBool resolves a boolean policy value with permissive truthy parsing
func (r *Resolver) GetBool(key string, def bool) bool {
	value, ok := r.lookup(key)
	if !ok {
		return def
	}
	parsed, ok := parseBool(value)
	if !ok {
		return def
	}
	return parsed
}

// GetInt resolves an integer policy value
func (r *Resolver) GetInt(key string, def int) int {
	value, ok := r.lookup(key)
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

// GetDuration resolves an integer policy value expressed in the given unit,
// e.g. GetDuration(KeyDomainCooldown, 24, time.Hour)
func (r *Resolver) GetDuration(key string, def int, unit time.Duration) time.Duration {
	return time.Duration(r.GetInt(key, def)) * unit
}

// GetFloat resolves a float policy value
func (r *Resolver) GetFloat(key string, def float64) float64 {
	value, ok := r.lookup(key)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return def
	}
	return parsed
}

// GetStrings resolves a list value stored as a JSON array
func (r *Resolver) GetStrings(key string, def []string) []string {
	value, ok := r.lookup(key)
	if !ok || value == "" {
		return def
	}
	var parsed []string
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		return def
	}
	return parsed
}

// GetMany resolves a batch of keys: one cache pass, then a single store
// query for the miss subset, writing each resolved value back into cache.
func (r *Resolver) GetMany(keys []string) map[string]string {
	values := make(map[string]string, len(keys))
	var misses []string

	for _, key := range keys {
		var cached string
		if err := r.cache.Get(cacheKey(key), &cached); err == nil {
			values[key] = cached
		} else {
			misses = append(misses, key)
		}
	}

	if len(misses) > 0 {
		fetched, err := r.store.Values(misses)
		if err != nil {
			log.Printf("policy: batch settings lookup failed: %v", err)
			fetched = nil
		}
		for _, key := range misses {
			value, ok := fetched[key]
			if !ok {
				if def, has := Defaults[key]; has {
					values[key] = def
				}
				continue
			}
			values[key] = value
			if err := r.cache.Set(cacheKey(key), value, r.ttl); err != nil {
				log.Printf("policy: cache write failed for %s: %v", key, err)
			}
		}
	}

	return values
}

// Clear invalidates the cached value for one key. Must be called whenever
// the underlying settings row changes.
func (r *Resolver) Clear(key string) {
	if err := r.cache.Delete(cacheKey(key)); err != nil {
		log.Printf("policy: cache invalidation failed for %s: %v", key, err)
	}
}

// ClearAll invalidates every cached policy value
func (r *Resolver) ClearAll() {
	if err := r.cache.DeletePattern(cachePrefix + "*"); err != nil {
		log.Printf("policy: cache flush failed: %v", err)
	}
}

// parseBool accepts the permissive truthy spellings admin tooling writes
func parseBool(value string) (parsed, ok bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off", "":
		return false, true
	}
	return false, false
}
