package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/config"
)

// bucketScript refills continuously at rate tokens per millisecond and
// takes one token per call.  It returns {allowed, remaining, retry_ms}.
var bucketScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local b = redis.call('HMGET', KEYS[1], 'level', 'ts')
local level = tonumber(b[1]) or cap
local ts = tonumber(b[2]) or now
if now > ts then
	level = math.min(cap, level + (now - ts) * rate)
end

local ok, wait = 0, 0
if level >= 1 then
	ok = 1
	level = level - 1
else
	wait = math.ceil((1 - level) / rate)
end

redis.call('HSET', KEYS[1], 'level', tostring(level), 'ts', now)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, math.floor(level), wait}
`)

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// NewTokenBucket limits requests with a Redis-backed token bucket.  With no
// Redis client, or when disabled, it is a no-op.  Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	log = log.Named("ratelimit")
	perMs := float64(cfg.RefillTokens) / float64(cfg.RefillInterval.Milliseconds())
	ttlSecs := int64(cfg.TTL / time.Second)
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, perMs, ttlSecs).Int64Slice()
			if err != nil || len(res) != 3 {
				if cfg.Debug {
					log.Warn("bucket unavailable", zap.String("key", key), zap.Error(err))
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res[0] == 1 {
				return next(c)
			}

			secs := retrySeconds(res[2])
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.Info("blocked", zap.String("key", key), zap.Int64("retry_ms", res[2]))
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"success":     false,
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

// retrySeconds rounds a millisecond wait up to whole seconds, at least one.
func retrySeconds(ms int64) int {
	secs := int((ms + 999) / 1000)
	if secs < 1 {
		secs = 1
	}
	return secs
}

var rateKeyParts = map[string]bool{"ip": true, "user": true, "route": true}

// buildRateKey joins the prefix with the parts named by cfg.KeyStrategy,
// e.g. "ip_route".  Unknown strategies key on ip, user and route.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	names := strings.Split(strings.ToLower(cfg.KeyStrategy), "_")
	for _, n := range names {
		if !rateKeyParts[n] {
			names = []string{"ip", "user", "route"}
			break
		}
	}

	parts := []string{cfg.Prefix}
	for _, n := range names {
		switch n {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", currentUserID(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(parts, ":")
}
