package config

import "time"

// CacheConfig tunes the Redis snapshot cache of public wishlist views.  TTL
// caps the life of an entry whose invalidation was lost.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

func loadCache(e *env) CacheConfig {
	cfg := CacheConfig{
		Enabled: e.boolean("CACHE_ENABLED", true),
		TTL:     e.duration("CACHE_TTL", 30*time.Second),
		Prefix:  e.str("CACHE_PREFIX", "wishly:snap"),
	}
	if cfg.TTL <= 0 {
		cfg.Enabled = false
	}
	return cfg
}
