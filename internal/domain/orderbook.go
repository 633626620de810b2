package domain

import "time"

// PriceLevel is a single row of an order-book histogram: a price and the
// cumulative quantity available at that price or better.
type PriceLevel struct {
	Price float64
	Count int
}

// OrderBookSnapshot is the sell/buy depth for a single item as returned by
// the marketplace histogram endpoint, plus a sales-per-day liquidity
// estimate. Asks are sorted ascending by price, bids descending. Snapshots
// are immutable once fetched.
type OrderBookSnapshot struct {
	ItemName    string
	Asks        []PriceLevel
	Bids        []PriceLevel
	SalesPerDay int
	FetchedAt   time.Time
}

// BestBid returns the highest bid price, or 0 when the buy side is empty.
func (s OrderBookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// Empty reports whether both sides of the book carry no depth.
func (s OrderBookSnapshot) Empty() bool {
	return len(s.Asks) == 0 && len(s.Bids) == 0
}
