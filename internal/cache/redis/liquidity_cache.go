package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// liquidityTTL is deliberately long: sales-per-day estimates move slowly and
// each refresh costs a heavily throttled marketplace call.
const liquidityTTL = 7 * 24 * time.Hour

// LiquidityCache implements domain.LiquidityCache on Redis strings.
//
// Key schema:
//
//	liquidity:{appID}:{itemName} - integer sales-per-day estimate
type LiquidityCache struct {
	rdb *redis.Client
}

// NewLiquidityCache creates a LiquidityCache backed by the given Client.
func NewLiquidityCache(c *Client) *LiquidityCache {
	return &LiquidityCache{rdb: c.Underlying()}
}

func liquidityKey(appID int, itemName string) string {
	return fmt.Sprintf("liquidity:%d:%s", appID, itemName)
}

// Get retrieves the cached estimate, or domain.ErrNotFound when the item has
// no live entry.
func (lc *LiquidityCache) Get(ctx context.Context, appID int, itemName string) (int, error) {
	v, err := lc.rdb.Get(ctx, liquidityKey(appID, itemName)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("redis: get liquidity %q: %w", itemName, err)
	}
	return v, nil
}

// Set stores an estimate with the standard TTL.
func (lc *LiquidityCache) Set(ctx context.Context, appID int, itemName string, salesPerDay int) error {
	if err := lc.rdb.Set(ctx, liquidityKey(appID, itemName), salesPerDay, liquidityTTL).Err(); err != nil {
		return fmt.Errorf("redis: set liquidity %q: %w", itemName, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LiquidityCache = (*LiquidityCache)(nil)
