package referral

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "giftstream:referral-chain:"

// ChainResolver is satisfied by Resolver and CachedResolver.
type ChainResolver interface {
	ResolveChain(ctx context.Context, accountID string, maxDepth int) ([]Ancestor, error)
}

// CachedResolver memoizes chains in Redis. Edges are written once at
// registration and never re-parented, so a cached chain stays valid for its
// whole TTL. Redis errors fall through to the underlying resolver.
type CachedResolver struct {
	next   *Resolver
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedResolver wraps next. A nil cache disables caching.
func NewCachedResolver(next *Resolver, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedResolver {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedResolver{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedResolver) ResolveChain(ctx context.Context, accountID string, maxDepth int) ([]Ancestor, error) {
	if maxDepth <= 0 {
		maxDepth = c.next.DefaultDepth()
	}
	if c.cache == nil {
		return c.next.ResolveChain(ctx, accountID, maxDepth)
	}

	key := fmt.Sprintf("%s%s:%d", cachePrefix, accountID, maxDepth)
	raw, err := c.cache.Get(ctx, key).Bytes()
	if err == nil {
		var chain []Ancestor
		if err := json.Unmarshal(raw, &chain); err == nil {
			return chain, nil
		}
	} else if err != redis.Nil {
		c.warn("referral cache read failed", accountID, err)
	}

	chain, err := c.next.ResolveChain(ctx, accountID, maxDepth)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(chain); err == nil {
		if err := c.cache.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.warn("referral cache write failed", accountID, err)
		}
	}
	return chain, nil
}

func (c *CachedResolver) warn(msg, accountID string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, "account_id", accountID, "error", err)
}
