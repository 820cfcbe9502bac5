package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/onstream-api/internal/config"
	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/metrics"
)

// tokenBucketScript refills KEYS[1] by whole intervals, takes one token if
// any is left and returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// RateLimiter hands out Redis token-bucket middleware. Every route gets
// its own bucket per client (see KeyStrategy). Without Redis, or with
// limiting disabled, the middleware pass requests through; Redis errors
// fail open.
type RateLimiter struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) *RateLimiter {
	return &RateLimiter{cfg: cfg.Normalize(), rdb: rdb}
}

// Default applies the configured bucket.
func (l *RateLimiter) Default() echo.MiddlewareFunc {
	if l == nil {
		return passThrough
	}
	return l.bucket(l.cfg)
}

// PerMinute allows n requests per minute with bursts up to n, refilling
// one token every minute/n.
func (l *RateLimiter) PerMinute(n int) echo.MiddlewareFunc {
	if l == nil {
		return passThrough
	}
	if n < 1 {
		n = 1
	}
	cfg := l.cfg
	cfg.Capacity = n
	cfg.RefillTokens = 1
	cfg.RefillInterval = time.Minute / time.Duration(n)
	cfg.TTL = 0
	return l.bucket(cfg.Normalize())
}

func (l *RateLimiter) bucket(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if !cfg.Enabled || l.rdb == nil {
		return passThrough
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			args := []any{
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(math.Ceil(cfg.TTL.Seconds())),
			}

			vals, err := tokenBucketScript.Run(c.Request().Context(), l.rdb, []string{key}, args...).Int64Slice()
			if err != nil || len(vals) != 3 {
				logging.Ctx(c.Request().Context()).Warn().Err(err).Str("key", key).Msg("ratelimit: script failed; allowing request")
				return next(c)
			}
			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}

			if !allowed {
				secs := max(int(math.Ceil(float64(retryMs)/1000.0)), 1)
				h.Set("Retry-After", strconv.Itoa(secs))
				metrics.APIRateLimitHits.WithLabelValues(c.Path()).Inc()
				return deny(c, http.StatusTooManyRequests, "RATE_LIMITED",
					fmt.Sprintf("rate limit exceeded, retry in %ds", secs))
			}
			return next(c)
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := currentUser(c)
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
