package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/config"
)

// cachedResponse is what one cache entry holds.
type cachedResponse struct {
	Status int         `json:"s"`
	Header http.Header `json:"h,omitempty"`
	Body   []byte      `json:"b"`
}

// teeWriter forwards to the client and keeps a copy of at most limit bytes.
// overflow records that the copy is incomplete.
type teeWriter struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	limit    int
	overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.body.Len()+len(b) > w.limit {
			w.overflow = true
			w.body.Reset()
		} else {
			w.body.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cacheKeyFrom builds "<prefix>:<sha256>" so every entry can be purged by prefix.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var src string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		src = c.Path()
	case "method_route":
		src = r.Method + " " + c.Path()
	case "method_route_query":
		src = r.Method + " " + c.Path() + "?" + r.URL.RawQuery
	default:
		src = c.Path() + "?" + r.URL.RawQuery
	}
	sum := sha256.Sum256([]byte(src))
	return cfg.Prefix + ":" + hex.EncodeToString(sum[:16])
}

func encodeEntry(e cachedResponse) ([]byte, error) {
	return sonic.Marshal(e)
}

func decodeEntry(raw []byte) (cachedResponse, bool) {
	var e cachedResponse
	if err := sonic.Unmarshal(raw, &e); err != nil || e.Status == 0 {
		return cachedResponse{}, false
	}
	return e, true
}

func replay(c echo.Context, e cachedResponse) error {
	h := c.Response().Header()
	for k, vals := range e.Header {
		if strings.EqualFold(k, echo.HeaderContentLength) {
			continue
		}
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	h.Set("X-Cache", "HIT")
	c.Response().WriteHeader(e.Status)
	_, err := c.Response().Write(e.Body)
	return err
}

// NewRedisCache replays successful responses from Redis for cfg.TTL.
// Entries vary by route and query only, so mount it on routes whose output
// is the same for every caller, such as the ranking.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	log = log.Named("cache")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKeyFrom(cfg, c)

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if e, ok := decodeEntry(raw); ok {
					return replay(c, e)
				}
			}

			w := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = w
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if w.status != http.StatusOK || w.overflow {
				return nil
			}

			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			raw, err := encodeEntry(cachedResponse{Status: w.status, Header: hdr, Body: w.body.Bytes()})
			if err != nil {
				return nil
			}
			if err := rdb.SetEx(context.WithoutCancel(ctx), key, raw, ttl).Err(); err != nil {
				log.Debug("store failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

// RedisCachePurger drops every cached response under the cache prefix.
type RedisCachePurger struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCachePurger(cfg config.CacheConfig, rdb *redis.Client) *RedisCachePurger {
	return &RedisCachePurger{rdb: rdb, prefix: cfg.Prefix}
}

// Invalidate unlinks every "<prefix>:*" key.  A nil client makes it a no-op.
func (p *RedisCachePurger) Invalidate(ctx context.Context) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	var keys []string
	iter := p.rdb.Scan(ctx, 0, p.prefix+":*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	for len(keys) > 0 {
		n := min(len(keys), 200)
		if err := p.rdb.Unlink(ctx, keys[:n]...).Err(); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}
