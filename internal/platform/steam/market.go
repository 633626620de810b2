package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// FetchOrderBook retrieves the order-book histogram for one item. An item
// whose name ID is unknown, or whose histogram comes back without depth on
// either side, is reported as domain.ErrNotFound.
func (c *Client) FetchOrderBook(ctx context.Context, itemName string) (domain.OrderBookSnapshot, error) {
	nameID, ok := c.names.NameID(itemName)
	if !ok {
		return domain.OrderBookSnapshot{}, fmt.Errorf("steam: no name id for %q: %w", itemName, domain.ErrNotFound)
	}

	q := url.Values{
		"country":     {"US"},
		"language":    {"english"},
		"currency":    {strconv.Itoa(c.cfg.Currency)},
		"item_nameid": {nameID},
	}
	body, status, err := c.get(ctx, svcHistogram,
		c.marketURL("/itemordershistogram?"+q.Encode()),
		c.listingsReferer(itemName))
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	if status != http.StatusOK {
		return domain.OrderBookSnapshot{}, fmt.Errorf("steam: itemordershistogram for %q: status %d", itemName, status)
	}

	var hist histogramResponse
	if err := json.Unmarshal(body, &hist); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("steam: parsing histogram for %q: %w", itemName, err)
	}

	snap := hist.toSnapshot(itemName)
	if snap.Empty() {
		return domain.OrderBookSnapshot{}, fmt.Errorf("steam: empty histogram for %q: %w", itemName, domain.ErrNotFound)
	}
	snap.FetchedAt = time.Now()
	return snap, nil
}

// SalesPerDay estimates an item's daily sales volume from the public price
// overview. Results are cached with a long TTL; an item whose volume cannot
// be parsed is reported as trading once a day so it is still priced under
// the strictest thresholds.
func (c *Client) SalesPerDay(ctx context.Context, itemName string) (int, error) {
	if c.liquidity != nil {
		if v, err := c.liquidity.Get(ctx, c.cfg.AppID, itemName); err == nil && v > 0 {
			return v, nil
		}
	}

	q := url.Values{
		"currency":         {strconv.Itoa(c.cfg.Currency)},
		"appid":            {strconv.Itoa(c.cfg.AppID)},
		"market_hash_name": {itemName},
	}
	body, status, err := c.get(ctx, svcPriceOverview,
		c.marketURL("/priceoverview?"+q.Encode()),
		c.listingsReferer(itemName))
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("steam: priceoverview for %q: status %d", itemName, status)
	}

	var overview priceOverviewResponse
	if err := json.Unmarshal(body, &overview); err != nil {
		return 0, fmt.Errorf("steam: parsing priceoverview for %q: %w", itemName, err)
	}

	sales := 1
	if overview.Success {
		if v, err := parseGroupedInt(overview.Volume); err == nil && v > 0 {
			sales = v
		}
	}

	if c.liquidity != nil {
		if err := c.liquidity.Set(ctx, c.cfg.AppID, itemName, sales); err != nil {
			c.log.Warn("liquidity cache write failed",
				slog.String("item", itemName),
				slog.String("error", err.Error()))
		}
	}
	return sales, nil
}

// PlaceBuyOrder creates a buy order at price for quantity units.
func (c *Client) PlaceBuyOrder(ctx context.Context, itemName string, price float64, quantity int) (domain.OrderResult, error) {
	form := url.Values{
		"sessionid":        {c.sessionID()},
		"currency":         {strconv.Itoa(c.cfg.Currency)},
		"appid":            {strconv.Itoa(c.cfg.AppID)},
		"market_hash_name": {itemName},
		"price_total":      {strconv.Itoa(int(math.Round(price * 100 * float64(quantity))))},
		"quantity":         {strconv.Itoa(quantity)},
	}
	body, status, err := c.postForm(ctx, svcCreateBuy,
		c.marketURL("/createbuyorder/"),
		c.listingsReferer(itemName), form)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if status != http.StatusOK {
		return domain.OrderResult{}, fmt.Errorf("steam: createbuyorder for %q: status %d", itemName, status)
	}

	var res buyOrderResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.OrderResult{}, fmt.Errorf("steam: parsing createbuyorder response: %w", err)
	}
	return domain.OrderResult{
		Success: res.Success == 1,
		OrderID: res.BuyOrderID,
		Message: res.Message,
	}, nil
}

// SellItem lists one inventory asset at the given buyer price. The endpoint
// takes the seller's net proceeds, so the buyer price is scaled down by the
// commission before sending.
func (c *Client) SellItem(ctx context.Context, assetID string, amount int, buyerPrice float64) (domain.OrderResult, error) {
	form := url.Values{
		"sessionid": {c.sessionID()},
		"appid":     {strconv.Itoa(c.cfg.AppID)},
		"contextid": {strconv.Itoa(c.cfg.ContextID)},
		"assetid":   {assetID},
		"amount":    {strconv.Itoa(amount)},
		"price":     {strconv.Itoa(int(math.Round(buyerPrice * 100 * c.cfg.Commission)))},
	}
	body, status, err := c.postForm(ctx, svcSellItem,
		c.marketURL("/sellitem/"),
		fmt.Sprintf("%s/profiles/%s/inventory", c.cfg.CommunityBase, c.cfg.SteamID), form)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if status != http.StatusOK {
		return domain.OrderResult{}, fmt.Errorf("steam: sellitem asset %s: status %d", assetID, status)
	}

	var res sellItemResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.OrderResult{}, fmt.Errorf("steam: parsing sellitem response: %w", err)
	}
	return domain.OrderResult{
		Success:           res.Success,
		NeedsConfirmation: res.NeedsMobileConfirmation || res.NeedsEmailConfirmation || res.RequiresConfirmation != 0,
		Message:           res.Message,
	}, nil
}

// CancelSellListing removes one of the trader's own sell listings.
func (c *Client) CancelSellListing(ctx context.Context, listingID string) error {
	form := url.Values{"sessionid": {c.sessionID()}}
	_, status, err := c.postForm(ctx, svcRemoveListing,
		c.marketURL("/removelisting/"+listingID),
		c.marketURL("/"), form)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("steam: removelisting %s: status %d", listingID, status)
	}
	return nil
}

// CancelBuyOrder cancels one of the trader's own buy orders.
func (c *Client) CancelBuyOrder(ctx context.Context, orderID string) error {
	form := url.Values{
		"sessionid":   {c.sessionID()},
		"buy_orderid": {orderID},
	}
	body, status, err := c.postForm(ctx, svcCancelBuy,
		c.marketURL("/cancelbuyorder/"),
		c.marketURL("/"), form)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("steam: cancelbuyorder %s: status %d", orderID, status)
	}

	var res buyOrderResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("steam: parsing cancelbuyorder response: %w", err)
	}
	if res.Success != 1 {
		return fmt.Errorf("steam: cancelbuyorder %s: success=%d", orderID, res.Success)
	}
	return nil
}
