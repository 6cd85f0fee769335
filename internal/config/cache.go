package config

import "time"

// CacheConfig defines settings for the catalog cache.  When Enabled is false
// or no Redis client is configured, catalog queries always hit the store.
// Only immutable catalog data (events and showings) is cached; seat
// availability is never cached.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 30*time.Second),
		Prefix:  getenv("CACHE_PREFIX", "cache"),
	}
	if c.TTL <= 0 {
		c.TTL = time.Second
	}
	return c
}
