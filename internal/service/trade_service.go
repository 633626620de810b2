// Package service contains the orchestration layer: the trading cycle that
// manages buy orders, sell listings and inventory for one app, and the
// ledger aggregation that folds market history into running totals.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
	"github.com/tradebotlabs/steambot/internal/items"
	"github.com/tradebotlabs/steambot/internal/notify"
	"github.com/tradebotlabs/steambot/internal/pricing"
)

// cancelAttempts is how many times a sell-listing cancellation is retried
// before the item is given up on for the cycle.
const cancelAttempts = 4

// MarketAPI is the marketplace surface the trading cycle needs. Implemented
// by the steam client.
type MarketAPI interface {
	AppID() int
	FetchOrderBook(ctx context.Context, itemName string) (domain.OrderBookSnapshot, error)
	SalesPerDay(ctx context.Context, itemName string) (int, error)
	PlaceBuyOrder(ctx context.Context, itemName string, price float64, quantity int) (domain.OrderResult, error)
	SellItem(ctx context.Context, assetID string, amount int, buyerPrice float64) (domain.OrderResult, error)
	CancelSellListing(ctx context.Context, listingID string) error
	CancelBuyOrder(ctx context.Context, orderID string) error
	MyListings(ctx context.Context) ([]domain.SellListing, error)
	BuyOrders(ctx context.Context) (map[string]domain.BuyOrder, error)
	Inventory(ctx context.Context) ([]domain.InventoryAsset, error)
	PendingConfirmations(ctx context.Context) ([]domain.Confirmation, error)
	AcceptConfirmation(ctx context.Context, conf domain.Confirmation) error
}

// SessionKeeper revalidates the marketplace session before a cycle touches
// authenticated endpoints.
type SessionKeeper interface {
	EnsureValid(ctx context.Context) error
}

// TradeService runs the trading cycle for one app: keep buy orders aligned
// with the order book, prune overpriced sell listings and list sellable
// inventory.
type TradeService struct {
	logger    *slog.Logger
	market    MarketAPI
	session   SessionKeeper
	engine    *pricing.Engine
	tradeList *items.TradeList
	paused    *items.Paused
	books     domain.OrderBookCache // optional
	bus       domain.SignalBus      // optional
	notifier  *notify.Notifier      // optional
}

// NewTradeService creates a TradeService. The cache, bus and notifier may be
// nil; the cycle then runs without snapshot caching, events or alerts.
func NewTradeService(
	logger *slog.Logger,
	market MarketAPI,
	session SessionKeeper,
	engine *pricing.Engine,
	tradeList *items.TradeList,
	paused *items.Paused,
	books domain.OrderBookCache,
	bus domain.SignalBus,
	notifier *notify.Notifier,
) *TradeService {
	return &TradeService{
		logger:    logger.With(slog.String("component", "trade_service"), slog.Int("app_id", market.AppID())),
		market:    market,
		session:   session,
		engine:    engine,
		tradeList: tradeList,
		paused:    paused,
		books:     books,
		bus:       bus,
		notifier:  notifier,
	}
}

// RunCycle executes one full trading pass. A 429 from the marketplace halts
// the whole cycle: continuing would only dig the account deeper into the
// penalty window.
func (s *TradeService) RunCycle(ctx context.Context) error {
	if err := s.session.EnsureValid(ctx); err != nil {
		return fmt.Errorf("trade_service: session: %w", err)
	}

	// Item files are edited by hand between cycles; pick up changes.
	if err := s.tradeList.Reload(); err != nil {
		return fmt.Errorf("trade_service: reload trade list: %w", err)
	}
	if err := s.paused.Reload(); err != nil {
		return fmt.Errorf("trade_service: reload paused list: %w", err)
	}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"update_buy_orders", s.UpdateBuyOrders},
		{"prune_sell_listings", s.PruneSellListings},
		{"sell_inventory", s.SellInventory},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			if errors.Is(err, domain.ErrTooManyRequests) {
				s.logger.WarnContext(ctx, "cycle halted by rate limit", slog.String("step", step.name))
				s.alert(ctx, notify.EventRateLimited, "Rate limited",
					fmt.Sprintf("Trading cycle for app %d halted during %s; backing off until the next cycle.", s.market.AppID(), step.name))
				return err
			}
			return fmt.Errorf("trade_service: %s: %w", step.name, err)
		}
	}
	return nil
}

// UpdateBuyOrders reconciles outstanding buy orders against the trade list:
// orders that no longer clear the minimum profit threshold are cancelled,
// and items without an order get a new one at the recommended price.
func (s *TradeService) UpdateBuyOrders(ctx context.Context) error {
	orders, err := s.market.BuyOrders(ctx)
	if err != nil {
		return err
	}

	for name, target := range s.tradeList.Items() {
		order, hasOrder := orders[name]
		// Target zero means: manage what exists, place nothing new.
		if target == 0 && !hasOrder {
			continue
		}

		snap, sales, err := s.fetchBook(ctx, name)
		if err != nil {
			if errors.Is(err, domain.ErrTooManyRequests) {
				return err
			}
			s.logger.WarnContext(ctx, "skipping item, order book unavailable",
				slog.String("item", name), slog.String("error", err.Error()))
			continue
		}
		maxPrices := maxPricesUsed(sales)

		if hasOrder {
			if s.engine.IsBuyOrderRelevant(snap, sales, order, maxPrices) {
				continue
			}
			if err := s.market.CancelBuyOrder(ctx, order.OrderID); err != nil {
				if errors.Is(err, domain.ErrTooManyRequests) {
					return err
				}
				s.logger.WarnContext(ctx, "cancel buy order failed",
					slog.String("item", name), slog.String("error", err.Error()))
				continue
			}
			s.logger.InfoContext(ctx, "cancelled stale buy order",
				slog.String("item", name), slog.Float64("price", order.Price))
		}

		if target == 0 {
			continue
		}

		price, ok := s.engine.RecommendBuyPrice(snap, sales, maxPrices)
		if !ok {
			s.logger.DebugContext(ctx, "no profitable buy price", slog.String("item", name))
			continue
		}

		res, err := s.market.PlaceBuyOrder(ctx, name, price, target)
		if err != nil {
			if errors.Is(err, domain.ErrTooManyRequests) {
				return err
			}
			s.logger.WarnContext(ctx, "place buy order failed",
				slog.String("item", name), slog.String("error", err.Error()))
			continue
		}

		s.logger.InfoContext(ctx, "placed buy order",
			slog.String("item", name),
			slog.Float64("price", price),
			slog.Int("quantity", target),
			slog.String("order_id", res.OrderID),
		)
		s.publish(ctx, "events:orders", map[string]any{
			"event":    notify.EventOrderPlaced,
			"app_id":   s.market.AppID(),
			"item":     name,
			"price":    price,
			"quantity": target,
			"order_id": res.OrderID,
		})
	}
	return nil
}

// PruneSellListings cancels sell listings priced above what the book can
// bear. Items outside the trade list or on the paused list are left alone.
func (s *TradeService) PruneSellListings(ctx context.Context) error {
	listings, err := s.market.MyListings(ctx)
	if err != nil {
		return err
	}

	byItem := make(map[string][]domain.SellListing)
	for _, l := range listings {
		byItem[l.ItemName] = append(byItem[l.ItemName], l)
	}

	for name, own := range byItem {
		if _, tracked := s.tradeList.Target(name); !tracked {
			continue
		}
		if s.paused.Contains(name) {
			continue
		}

		snap, sales, err := s.fetchBook(ctx, name)
		if err != nil {
			if errors.Is(err, domain.ErrTooManyRequests) {
				return err
			}
			s.logger.WarnContext(ctx, "skipping listings, order book unavailable",
				slog.String("item", name), slog.String("error", err.Error()))
			continue
		}

		actual := s.engine.ActualSellPrice(snap, own, maxPricesUsed(sales))
		for _, l := range own {
			if l.BuyerPrice <= actual {
				continue
			}
			if err := s.cancelListing(ctx, l); err != nil {
				if errors.Is(err, domain.ErrTooManyRequests) {
					return err
				}
				s.logger.WarnContext(ctx, "cancel sell listing failed",
					slog.String("item", name),
					slog.String("listing_id", l.ListingID),
					slog.String("error", err.Error()))
				continue
			}
			s.logger.InfoContext(ctx, "cancelled overpriced listing",
				slog.String("item", name),
				slog.Float64("listed", l.BuyerPrice),
				slog.Float64("actual", actual))
		}
	}
	return nil
}

// SellInventory lists every marketable trade-list asset at the recommended
// sell price. Listings held for mobile confirmation are accepted through the
// confirmation queue at the end; whatever cannot be accepted (no identity
// secret, or the queue lagging behind) is alerted once.
func (s *TradeService) SellInventory(ctx context.Context) error {
	assets, err := s.market.Inventory(ctx)
	if err != nil {
		return err
	}
	listings, err := s.market.MyListings(ctx)
	if err != nil {
		return err
	}

	ownByItem := make(map[string][]domain.SellListing)
	for _, l := range listings {
		ownByItem[l.ItemName] = append(ownByItem[l.ItemName], l)
	}

	// One book fetch per item name, not per asset.
	type bookEntry struct {
		snap  domain.OrderBookSnapshot
		sales int
	}
	books := make(map[string]bookEntry)

	confirmations := 0
	for _, asset := range assets {
		if !asset.Marketable {
			continue
		}
		if _, tracked := s.tradeList.Target(asset.ItemName); !tracked {
			continue
		}

		entry, seen := books[asset.ItemName]
		if !seen {
			snap, sales, err := s.fetchBook(ctx, asset.ItemName)
			if err != nil {
				if errors.Is(err, domain.ErrTooManyRequests) {
					return err
				}
				s.logger.WarnContext(ctx, "skipping asset, order book unavailable",
					slog.String("item", asset.ItemName), slog.String("error", err.Error()))
				continue
			}
			entry = bookEntry{snap: snap, sales: sales}
			books[asset.ItemName] = entry
		}

		price, ok := s.engine.RecommendSellPrice(entry.snap, ownByItem[asset.ItemName], maxPricesUsed(entry.sales))
		if !ok {
			s.logger.DebugContext(ctx, "no viable sell price", slog.String("item", asset.ItemName))
			continue
		}

		res, err := s.market.SellItem(ctx, asset.AssetID, 1, price)
		if err != nil {
			if errors.Is(err, domain.ErrTooManyRequests) {
				return err
			}
			s.logger.WarnContext(ctx, "sell item failed",
				slog.String("item", asset.ItemName),
				slog.String("asset_id", asset.AssetID),
				slog.String("error", err.Error()))
			continue
		}
		if res.NeedsConfirmation {
			confirmations++
		}

		s.logger.InfoContext(ctx, "listed item for sale",
			slog.String("item", asset.ItemName),
			slog.String("asset_id", asset.AssetID),
			slog.Float64("price", price))
		s.publish(ctx, "events:listings", map[string]any{
			"event":    notify.EventItemListed,
			"app_id":   s.market.AppID(),
			"item":     asset.ItemName,
			"asset_id": asset.AssetID,
			"price":    price,
		})
	}

	if confirmations > 0 {
		accepted, err := s.acceptConfirmations(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrTooManyRequests) {
				return err
			}
			s.logger.WarnContext(ctx, "accepting confirmations failed",
				slog.String("error", err.Error()))
		}
		if accepted > 0 {
			s.logger.InfoContext(ctx, "accepted mobile confirmations", slog.Int("count", accepted))
		}
		if accepted < confirmations {
			s.alert(ctx, notify.EventConfirmations, "Confirmations pending",
				fmt.Sprintf("%d new listings for app %d are waiting for mobile confirmation.", confirmations-accepted, s.market.AppID()))
		}
	}
	return nil
}

// acceptConfirmations drains the pending mobile-confirmation queue and
// returns how many were accepted. A single confirmation failing is logged and
// skipped; the queue is account-wide, so it may hold more entries than this
// cycle created.
func (s *TradeService) acceptConfirmations(ctx context.Context) (int, error) {
	pending, err := s.market.PendingConfirmations(ctx)
	if err != nil {
		return 0, err
	}

	accepted := 0
	for _, conf := range pending {
		if err := s.market.AcceptConfirmation(ctx, conf); err != nil {
			if errors.Is(err, domain.ErrTooManyRequests) || ctx.Err() != nil {
				return accepted, err
			}
			s.logger.WarnContext(ctx, "accept confirmation failed",
				slog.String("confirmation_id", conf.ID),
				slog.String("error", err.Error()))
			continue
		}
		accepted++
	}
	return accepted, nil
}

// fetchBook retrieves the order book and liquidity for one item and caches
// the snapshot for the dashboard.
func (s *TradeService) fetchBook(ctx context.Context, itemName string) (domain.OrderBookSnapshot, int, error) {
	snap, err := s.market.FetchOrderBook(ctx, itemName)
	if err != nil {
		return domain.OrderBookSnapshot{}, 0, err
	}
	sales, err := s.market.SalesPerDay(ctx, itemName)
	if err != nil {
		return domain.OrderBookSnapshot{}, 0, err
	}
	snap.SalesPerDay = sales

	if s.books != nil {
		if err := s.books.SetSnapshot(ctx, s.market.AppID(), snap); err != nil {
			s.logger.WarnContext(ctx, "caching snapshot failed",
				slog.String("item", itemName), slog.String("error", err.Error()))
		}
	}
	return snap, sales, nil
}

func (s *TradeService) cancelListing(ctx context.Context, l domain.SellListing) error {
	var err error
	for attempt := 0; attempt < cancelAttempts; attempt++ {
		if err = s.market.CancelSellListing(ctx, l.ListingID); err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrTooManyRequests) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

// publish emits a JSON event on the signal bus; failures are logged, never
// fatal to the cycle.
func (s *TradeService) publish(ctx context.Context, channel string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

func (s *TradeService) alert(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
	}
}

// maxPricesUsed derives how much book depth pricing should consider from an
// item's liquidity: half a day of sales, at least one level.
func maxPricesUsed(salesPerDay int) int {
	if n := salesPerDay / 2; n > 1 {
		return n
	}
	return 1
}
