// Package pricing implements the order-book pricing engine: deriving a
// depth-weighted reference price from the sell side, recommending sell and
// buy prices under a profit-margin policy, and deciding whether existing buy
// orders are still worth keeping.
//
// All functions are deterministic given their inputs and never fail on
// degenerate books; an empty or self-owned-only book produces a
// "no recommendation" result instead of an error.
package pricing

import (
	"math"
	"sync"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// minOrderPrice is the marketplace's lowest valid order price. Anything the
// engine computes below this is reported as not actionable rather than
// handed to the caller as a bogus order price.
const minOrderPrice = 0.01

// Engine evaluates order-book snapshots under a PricingPolicy. The policy
// may be swapped between calls via SetPolicy (hot reload); individual calls
// always see a consistent policy.
type Engine struct {
	mu     sync.RWMutex
	policy domain.PricingPolicy

	// commission is the fraction of sale proceeds the seller receives
	// after the marketplace fee (for example 0.87 with a 13% fee).
	commission float64
}

// New creates an Engine with the given policy and commission fraction.
func New(policy domain.PricingPolicy, commission float64) *Engine {
	return &Engine{policy: policy, commission: commission}
}

// SetPolicy replaces the active policy.
func (e *Engine) SetPolicy(p domain.PricingPolicy) {
	e.mu.Lock()
	e.policy = p
	e.mu.Unlock()
}

// Policy returns the active policy.
func (e *Engine) Policy() domain.PricingPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// FindMedianPrice walks the sell side in ascending price order and returns
// the first price whose cumulative count, after subtracting the trader's own
// listings at that exact price, reaches half of maxPricesUsed. Own listings
// are subtracted so self-listed depth does not masquerade as market supply.
// When depth never reaches the threshold the last price seen is returned as
// the best available signal; an empty book yields 0.
func (e *Engine) FindMedianPrice(asks []domain.PriceLevel, ownSells []domain.SellListing, maxPricesUsed int) float64 {
	ownCounts := make(map[float64]int, len(ownSells))
	for _, listing := range ownSells {
		ownCounts[listing.BuyerPrice]++
	}

	threshold := maxPricesUsed / 2

	var price float64
	ignore := 0
	for _, lvl := range asks {
		price = lvl.Price

		if c, ok := ownCounts[lvl.Price]; ok {
			ignore += c
			delete(ownCounts, lvl.Price)
		}

		if lvl.Count-ignore >= threshold {
			return price
		}
	}
	return price
}

// FindFirstAvailablePrice walks the sell side in ascending order, skipping
// prices the trader already lists at, and returns the first price whose
// fractional deviation below the reference price is within the policy's
// acceptable difference. It returns 0 when no ask qualifies or the reference
// price is degenerate.
func (e *Engine) FindFirstAvailablePrice(asks []domain.PriceLevel, medianPrice float64, ownSells []domain.SellListing) float64 {
	if medianPrice <= 0 {
		return 0
	}

	own := make(map[float64]bool, len(ownSells))
	for _, listing := range ownSells {
		own[listing.BuyerPrice] = true
	}

	diff := e.Policy().AcceptablePriceDiff
	for _, lvl := range asks {
		if own[lvl.Price] {
			continue
		}
		if 1-lvl.Price/medianPrice <= diff {
			return lvl.Price
		}
	}
	return 0
}

// ActualSellPrice composes FindMedianPrice and FindFirstAvailablePrice: the
// price at which the item can realistically be sold right now.
func (e *Engine) ActualSellPrice(snap domain.OrderBookSnapshot, ownSells []domain.SellListing, maxPricesUsed int) float64 {
	median := e.FindMedianPrice(snap.Asks, ownSells, maxPricesUsed)
	return e.FindFirstAvailablePrice(snap.Asks, median, ownSells)
}

// RecommendSellPrice shades the actual sell price down by the policy's
// reduction and rounds to cents. The second return value is false when the
// book yields no valid listing price (the result would be at or below the
// marketplace minimum), in which case the item must not be listed.
func (e *Engine) RecommendSellPrice(snap domain.OrderBookSnapshot, ownSells []domain.SellListing, maxPricesUsed int) (float64, bool) {
	actual := e.ActualSellPrice(snap, ownSells, maxPricesUsed)
	price := round2(actual - e.Policy().Reduction)
	if price < minOrderPrice {
		return 0, false
	}
	return price, true
}

// IsBuyOrderRelevant reports whether an existing buy order still clears the
// minimum profit threshold against the current sell-side reference price.
// Orders that no longer clear it should be cancelled before the market moves
// further.
func (e *Engine) IsBuyOrderRelevant(snap domain.OrderBookSnapshot, salesPerDay int, order domain.BuyOrder, maxPricesUsed int) bool {
	if order.Price <= 0 {
		return false
	}

	actual := e.ActualSellPrice(snap, nil, maxPricesUsed)
	profit := (actual*e.commission)/order.Price - 1
	return profit >= e.Policy().MinProfitFor(salesPerDay)
}

// RecommendBuyPrice evaluates two candidate prices against the desired
// profit threshold, highest-affordable first:
//
//  1. the current best bid plus the policy reduction — paying marginally
//     more than the top of book to win the queue;
//  2. the deepest bid level whose cumulative count still exceeds half the
//     sales-per-day estimate — the last defensible price before depth runs
//     out.
//
// The first candidate that clears the threshold wins. When neither does, or
// the book is degenerate, the second return value is false and no buy order
// should be placed this cycle.
func (e *Engine) RecommendBuyPrice(snap domain.OrderBookSnapshot, salesPerDay int, maxPricesUsed int) (float64, bool) {
	if len(snap.Bids) == 0 {
		return 0, false
	}

	actual := e.ActualSellPrice(snap, nil, maxPricesUsed)
	desired := e.Policy().DesiredProfitFor(salesPerDay)

	if top := round2(snap.BestBid() + e.Policy().Reduction); top >= minOrderPrice {
		if (actual*e.commission)/top-1 >= desired {
			return top, true
		}
	}

	if deep := e.deepestAvailableBid(snap.Bids, salesPerDay); deep >= minOrderPrice {
		if (actual*e.commission)/deep-1 >= desired {
			return deep, true
		}
	}

	return 0, false
}

// deepestAvailableBid walks the buy side in descending desirability and
// returns the last price level before cumulative depth exceeds half the
// sales-per-day estimate. Returns 0 when the whole book is shallower than
// that.
func (e *Engine) deepestAvailableBid(bids []domain.PriceLevel, salesPerDay int) float64 {
	var prev float64
	for _, lvl := range bids {
		if lvl.Count > salesPerDay/2 {
			if prev != 0 {
				return prev
			}
			return lvl.Price
		}
		prev = lvl.Price
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
