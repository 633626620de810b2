package domain

import "context"

// LiquidityCache stores sales-per-day estimates. Entries are expensive to
// compute (one throttled marketplace call each) and move slowly, so they are
// cached with a long TTL.
type LiquidityCache interface {
	Get(ctx context.Context, appID int, itemName string) (int, error)
	Set(ctx context.Context, appID int, itemName string, salesPerDay int) error
}

// OrderBookCache stores recent order-book snapshots so the dashboard can
// display them without hitting the marketplace again.
type OrderBookCache interface {
	SetSnapshot(ctx context.Context, appID int, snap OrderBookSnapshot) error
	GetSnapshot(ctx context.Context, appID int, itemName string) (OrderBookSnapshot, error)
}

// SignalBus provides ephemeral pub/sub for bot events (trades, session
// transitions, batch halts). Consumers include the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
