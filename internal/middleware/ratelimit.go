package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/config"
)

// gcraScript is a generic cell rate limiter.  The key holds the theoretical
// arrival time (ms) of the next request; a request is allowed while that
// time is no more than burst intervals in the future.
// Returns {allowed, remaining, retry_after_ms}.
var gcraScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tat = tonumber(redis.call('GET', KEYS[1]))
if tat == nil or tat < now then
	tat = now
end

local window = interval * burst
local next_tat = tat + interval
local allow_at = next_tat - window
if now < allow_at then
	return {0, 0, allow_at - now}
end

redis.call('SET', KEYS[1], next_tat, 'PX', ttl)
return {1, math.floor((window - (next_tat - now)) / interval), 0}
`)

var errUnexpectedResult = errors.New("ratelimit: unexpected script result")

// Decision is the outcome of one Limiter.Take.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a Redis-backed rate limiter shared by every server instance.
type Limiter struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
	now func() time.Time
}

func NewLimiter(rdb *redis.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{rdb: rdb, cfg: cfg, now: time.Now}
}

// Take spends one token from key's bucket.
func (l *Limiter) Take(ctx context.Context, key string) (Decision, error) {
	res, err := gcraScript.Run(ctx, l.rdb, []string{key},
		l.now().UnixMilli(),
		l.cfg.RefillEvery.Milliseconds(),
		l.cfg.Burst,
		l.cfg.TTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 3 {
		return Decision{}, errUnexpectedResult
	}
	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// GuestRateLimit limits the guest mutation routes.  Without Redis, or when
// disabled, it passes everything through; Redis errors fail open.
func GuestRateLimit(cfg config.RateLimitConfig, rdb *redis.Client, log *logrus.Entry) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	limiter := NewLimiter(rdb, cfg)
	limit := strconv.Itoa(cfg.Burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			d, err := limiter.Take(c.Request().Context(), key)
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("ratelimit: redis unavailable, allowing request")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if d.Allowed {
				return next(c)
			}

			secs := int((d.RetryAfter + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			log.WithFields(logrus.Fields{"key": key, "retry_after": d.RetryAfter}).Debug("ratelimit: blocked")
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       "rate limit exceeded",
				"code":        "too_many_requests",
				"retry_after": secs,
			})
		}
	}
}

func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyBy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "guest":
		parts = append(parts, "guest", guestKey(c))
	case "ip_guest":
		parts = append(parts, "ip", ip, "guest", guestKey(c))
	default:
		parts = append(parts, "ip", ip, "guest", guestKey(c), "route", c.Request().Method+" "+c.Path())
	}
	return strings.Join(parts, ":")
}
