package receiving

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const availabilityTTL = 5 * time.Minute

// AvailabilityCache caches per-product availability sums in Redis. Every
// ledger mutation invalidates the touched products; a stale read is
// bounded by the TTL either way.
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache constructs the cache. A nil client disables it.
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

func availabilityKey(product string) string {
	return "availability:" + product
}

// Get returns the cached availability for the product, if present.
func (c *AvailabilityCache) Get(ctx context.Context, product string) (decimal.Decimal, bool) {
	if c == nil || c.client == nil {
		return decimal.Decimal{}, false
	}
	raw, err := c.client.Get(ctx, availabilityKey(product)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return decimal.Decimal{}, false
		}
		return decimal.Decimal{}, false
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}

// Set stores the availability for the product.
func (c *AvailabilityCache) Set(ctx context.Context, product string, amount decimal.Decimal) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, availabilityKey(product), amount.String(), availabilityTTL).Err()
}

// Invalidate drops the cached sums for the given products.
func (c *AvailabilityCache) Invalidate(ctx context.Context, products ...string) {
	if c == nil || c.client == nil || len(products) == 0 {
		return
	}
	keys := make([]string, 0, len(products))
	seen := make(map[string]struct{}, len(products))
	for _, product := range products {
		if product == "" {
			continue
		}
		if _, ok := seen[product]; ok {
			continue
		}
		seen[product] = struct{}{}
		keys = append(keys, availabilityKey(product))
	}
	if len(keys) > 0 {
		_ = c.client.Del(ctx, keys...).Err()
	}
}
