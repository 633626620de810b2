package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// orderBookTTL keeps dashboard reads fresh without re-fetching on every
// page load.
const orderBookTTL = 5 * time.Minute

// OrderBookCache implements domain.OrderBookCache using JSON-serialized
// snapshots.
//
// Key schema:
//
//	orderbook:{appID}:{itemName} - JSON OrderBookSnapshot
type OrderBookCache struct {
	rdb *redis.Client
}

// NewOrderBookCache creates an OrderBookCache backed by the given Client.
func NewOrderBookCache(c *Client) *OrderBookCache {
	return &OrderBookCache{rdb: c.Underlying()}
}

func orderBookKey(appID int, itemName string) string {
	return fmt.Sprintf("orderbook:%d:%s", appID, itemName)
}

// SetSnapshot stores a snapshot with the standard TTL.
func (oc *OrderBookCache) SetSnapshot(ctx context.Context, appID int, snap domain.OrderBookSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %q: %w", snap.ItemName, err)
	}
	if err := oc.rdb.Set(ctx, orderBookKey(appID, snap.ItemName), data, orderBookTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %q: %w", snap.ItemName, err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot, or domain.ErrNotFound when none is
// cached.
func (oc *OrderBookCache) GetSnapshot(ctx context.Context, appID int, itemName string) (domain.OrderBookSnapshot, error) {
	data, err := oc.rdb.Get(ctx, orderBookKey(appID, itemName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderBookSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: get snapshot %q: %w", itemName, err)
	}

	var snap domain.OrderBookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: unmarshal snapshot %q: %w", itemName, err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.OrderBookCache = (*OrderBookCache)(nil)
