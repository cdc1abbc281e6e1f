// Package ratelimit provides per-client request limiting for the public API.
// Brute-forcing domain reservations is the main abuse vector; the limiter caps
// mutating traffic per client IP before it reaches the service layer.
package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// BucketStore answers whether a keyed request fits in the current window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

// InMemoryStore is a sliding-window store for single-process deployments and
// tests. Entries are pruned lazily on access.
type InMemoryStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{buckets: make(map[string][]time.Time)}
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	kept := s.buckets[key][:0]
	for _, ts := range s.buckets[key] {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	s.buckets[key] = kept

	if len(kept) >= limit {
		return false, kept[0].Add(window).Sub(now), nil
	}
	s.buckets[key] = append(kept, now)
	return true, 0, nil
}

// RedisStore counts requests in fixed windows so limits hold across replicas.
type RedisStore struct {
	client *goredis.Client
}

func NewRedis(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	redisKey := "ratelimit:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count > int64(limit) {
		ttl, err := s.client.TTL(ctx, redisKey).Result()
		if err != nil || ttl < 0 {
			ttl = window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

// Middleware rejects clients that exceed limit requests per window with 429.
// Store errors fail open: an unavailable limiter must not take the API down.
func Middleware(store BucketStore, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			allowed, retryAfter, err := store.Allow(r.Context(), clientKey(r), limit, window)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limit check failed, allowing request",
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				seconds := int(retryAfter.Round(time.Second).Seconds())
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","error_description":"too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey buckets by client IP. RealIP middleware runs first, so RemoteAddr
// reflects X-Forwarded-For when a proxy sits in front.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
