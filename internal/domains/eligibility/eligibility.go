// Package eligibility answers the serving path's only question: may this
// hostname serve redirects right now?
//
// The answer is cached in Redis with a short TTL because redirect serving is
// far hotter than lifecycle mutation. Every state-changing operation
// invalidates the cached entry, so blacklisting takes effect on the next
// request rather than at TTL expiry.
package eligibility

import (
	"context"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"linkforge/internal/domains/models"
	"linkforge/pkg/platform/sentinel"
)

// DomainReader resolves a live domain record by hostname.
type DomainReader interface {
	FindByName(ctx context.Context, name string) (*models.Domain, error)
}

// Cache is the subset of the Redis API the checker uses.
type Cache interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// Checker serves eligibility lookups with an optional cache in front of the
// store. A nil cache degrades to store-only lookups.
type Checker struct {
	store  DomainReader
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewChecker(store DomainReader, cache Cache, ttl time.Duration, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Checker{store: store, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(hostname string) string { return "domains:eligible:" + hostname }

// IsEligible reports whether the hostname may serve redirects. Unknown
// hostnames are ineligible, not an error. Cache failures fall through to the
// store; serving must not depend on Redis being up.
func (c *Checker) IsEligible(ctx context.Context, hostname string) (bool, error) {
	normalized := models.NormalizeHostname(hostname)

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, cacheKey(normalized)).Result()
		switch {
		case err == nil:
			return cached == "1", nil
		case !errors.Is(err, goredis.Nil):
			c.logger.WarnContext(ctx, "eligibility cache read failed", "hostname", normalized, "error", err)
		}
	}

	eligible, err := c.lookup(ctx, normalized)
	if err != nil {
		return false, err
	}

	if c.cache != nil {
		value := "0"
		if eligible {
			value = "1"
		}
		if err := c.cache.Set(ctx, cacheKey(normalized), value, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "eligibility cache write failed", "hostname", normalized, "error", err)
		}
	}
	return eligible, nil
}

// Invalidate drops the cached verdict for a hostname. Called by the
// lifecycle service after every persisted state change.
func (c *Checker) Invalidate(ctx context.Context, hostname string) {
	if c.cache == nil {
		return
	}
	normalized := models.NormalizeHostname(hostname)
	if err := c.cache.Del(ctx, cacheKey(normalized)).Err(); err != nil {
		c.logger.WarnContext(ctx, "eligibility cache invalidation failed", "hostname", normalized, "error", err)
	}
}

func (c *Checker) lookup(ctx context.Context, hostname string) (bool, error) {
	d, err := c.store.FindByName(ctx, hostname)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return d.IsEligibleToServe(), nil
}
