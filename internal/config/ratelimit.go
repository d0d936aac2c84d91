package config

import "time"

// RateLimitConfig configures the token bucket in front of the guest
// mutation routes (reserve, unreserve, contribute).  Burst tokens are
// available up front and one token comes back every RefillEvery.
//
// KeyBy picks what a bucket is keyed on: "ip", "guest", "ip_guest" or
// "ip_guest_route" (default).  Guests are anonymous, so the identifier
// alone is easy to rotate and the IP alone punishes shared networks.
type RateLimitConfig struct {
	Enabled     bool
	Burst       int
	RefillEvery time.Duration
	KeyBy       string
	Prefix      string
}

// TTL is how long an idle bucket is kept: long enough to refill fully.
func (c RateLimitConfig) TTL() time.Duration {
	return time.Duration(c.Burst+1) * c.RefillEvery
}

func loadRateLimit(e *env) RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:     e.boolean("RATE_LIMIT_ENABLED", true),
		Burst:       e.integer("RATE_LIMIT_BURST", 20),
		RefillEvery: e.duration("RATE_LIMIT_REFILL_EVERY", 3*time.Second),
		KeyBy:       e.str("RATE_LIMIT_KEY_BY", "ip_guest_route"),
		Prefix:      e.str("RATE_LIMIT_PREFIX", "wishly:rl"),
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillEvery <= 0 {
		cfg.RefillEvery = time.Second
	}
	return cfg
}
