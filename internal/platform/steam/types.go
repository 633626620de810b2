package steam

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// graphPoint is one histogram row. The wire format is a heterogeneous array:
// [price, cumulative count, display label].
type graphPoint struct {
	Price float64
	Count int
}

func (g *graphPoint) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("steam: graph point has %d fields, want at least 2", len(raw))
	}
	price, ok := raw[0].(float64)
	if !ok {
		return fmt.Errorf("steam: graph point price is %T", raw[0])
	}
	count, ok := raw[1].(float64)
	if !ok {
		return fmt.Errorf("steam: graph point count is %T", raw[1])
	}
	g.Price = price
	g.Count = int(count)
	return nil
}

// histogramResponse is the itemordershistogram payload. Only the graphs are
// consumed; the rendered HTML summaries are ignored.
type histogramResponse struct {
	Success        int          `json:"success"`
	SellOrderGraph []graphPoint `json:"sell_order_graph"`
	BuyOrderGraph  []graphPoint `json:"buy_order_graph"`
}

func (h histogramResponse) toSnapshot(itemName string) domain.OrderBookSnapshot {
	snap := domain.OrderBookSnapshot{ItemName: itemName}
	for _, p := range h.SellOrderGraph {
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: p.Price, Count: p.Count})
	}
	for _, p := range h.BuyOrderGraph {
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: p.Price, Count: p.Count})
	}
	return snap
}

// priceOverviewResponse is the public price summary for one item. Volume is
// a grouped decimal string ("1,234").
type priceOverviewResponse struct {
	Success bool   `json:"success"`
	Volume  string `json:"volume"`
}

// buyOrderResponse is the createbuyorder / cancelbuyorder payload. Success
// is 1 on success.
type buyOrderResponse struct {
	Success    int    `json:"success"`
	BuyOrderID string `json:"buy_orderid"`
	Message    string `json:"message"`
}

// sellItemResponse is the sellitem payload.
type sellItemResponse struct {
	Success                 bool   `json:"success"`
	RequiresConfirmation    int    `json:"requires_confirmation"`
	NeedsMobileConfirmation bool   `json:"needs_mobile_confirmation"`
	NeedsEmailConfirmation  bool   `json:"needs_email_confirmation"`
	Message                 string `json:"message"`
}

// parseGroupedInt parses a decimal string with thousands separators.
func parseGroupedInt(s string) (int, error) {
	return strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
}

// parseListedPrice parses a rendered price like "12,34 pуб." or "$1.99",
// returning the numeric value. The currency symbol may precede or follow the
// number.
func parseListedPrice(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	fields := strings.Fields(s)
	for _, f := range fields {
		f = strings.Trim(f, "$€£()")
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("steam: no numeric price in %q", s)
}
