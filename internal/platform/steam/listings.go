package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// The my-listings and buy-orders pages are rendered HTML; the fields the bot
// needs are pulled out with targeted expressions rather than a full DOM
// parse.
var (
	itemLinkRe   = regexp.MustCompile(`market/listings/(\d+)/([^"?]+)"`)
	buyerPriceRe = regexp.MustCompile(`<span[^>]*title="This is the price the buyer pays\.[^"]*"[^>]*>([^<]+)</span>`)
	qtyRe        = regexp.MustCompile(`market_listing_inline_buyorder_qty[^>]*>\s*([\d,]+)\s*@`)
	priceSpanRe  = regexp.MustCompile(`market_listing_price[^>]*>([^<]+)<`)
	// The buy-order price follows the nested "N @" quantity span.
	priceAfterQtyRe = regexp.MustCompile(`@\s*</span>\s*([^<]+)`)
)

// myListingsResponse is the mylistings/render payload.
type myListingsResponse struct {
	Success     bool   `json:"success"`
	ResultsHTML string `json:"results_html"`
}

// MyListings returns the trader's outstanding sell listings for the client's
// app, parsed from the rendered my-listings page.
func (c *Client) MyListings(ctx context.Context) ([]domain.SellListing, error) {
	body, status, err := c.get(ctx, svcMyListings,
		c.marketURL("/mylistings/render/?query=&start=0&count=-1"),
		c.marketURL("/"))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("steam: mylistings: status %d", status)
	}

	var page myListingsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("steam: parsing mylistings response: %w", err)
	}
	if !page.Success {
		return nil, fmt.Errorf("steam: mylistings returned success=false")
	}

	return parseSellListings(page.ResultsHTML, c.cfg.AppID)
}

// parseSellListings extracts this app's sell listings from the rendered
// listing rows. Each row's anchor carries the listing ID, the item link
// carries app and name, and the buyer-price span carries the listed price.
func parseSellListings(html string, appID int) ([]domain.SellListing, error) {
	var out []domain.SellListing
	for _, chunk := range splitRows(html, `id="mylisting_`) {
		listingID := leadingDigits(chunk)
		if listingID == "" {
			continue
		}

		link := itemLinkRe.FindStringSubmatch(chunk)
		if link == nil {
			continue
		}
		rowApp, err := strconv.Atoi(link[1])
		if err != nil || rowApp != appID {
			continue
		}
		name, err := url.PathUnescape(link[2])
		if err != nil {
			name = link[2]
		}

		priceMatch := buyerPriceRe.FindStringSubmatch(chunk)
		if priceMatch == nil {
			continue
		}
		price, err := parseListedPrice(priceMatch[1])
		if err != nil {
			return nil, fmt.Errorf("steam: listing %s: %w", listingID, err)
		}

		out = append(out, domain.SellListing{
			ListingID:  listingID,
			ItemName:   name,
			BuyerPrice: price,
		})
	}
	return out, nil
}

// BuyOrders returns the trader's outstanding buy orders for the client's
// app, keyed by item name. The marketplace allows one buy order per item.
func (c *Client) BuyOrders(ctx context.Context) (map[string]domain.BuyOrder, error) {
	body, status, err := c.get(ctx, svcBuyOrders, c.marketURL("/"), c.marketURL("/"))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("steam: market page: status %d", status)
	}
	return parseBuyOrders(string(body), c.cfg.AppID)
}

// parseBuyOrders extracts this app's buy orders from the market page. Each
// row's price span renders "N @ price", with the quantity repeated in its
// own span.
func parseBuyOrders(html string, appID int) (map[string]domain.BuyOrder, error) {
	out := make(map[string]domain.BuyOrder)
	for _, chunk := range splitRows(html, `id="mybuyorder_`) {
		orderID := leadingDigits(chunk)
		if orderID == "" {
			continue
		}

		link := itemLinkRe.FindStringSubmatch(chunk)
		if link == nil {
			continue
		}
		rowApp, err := strconv.Atoi(link[1])
		if err != nil || rowApp != appID {
			continue
		}
		name, err := url.PathUnescape(link[2])
		if err != nil {
			name = link[2]
		}

		var priceText string
		if m := priceAfterQtyRe.FindStringSubmatch(chunk); m != nil {
			priceText = m[1]
		} else if m := priceSpanRe.FindStringSubmatch(chunk); m != nil {
			priceText = m[1]
			if at := strings.LastIndex(priceText, "@"); at >= 0 {
				priceText = priceText[at+1:]
			}
		} else {
			continue
		}
		price, err := parseListedPrice(priceText)
		if err != nil {
			return nil, fmt.Errorf("steam: buy order %s: %w", orderID, err)
		}

		quantity := 1
		if qty := qtyRe.FindStringSubmatch(chunk); qty != nil {
			if v, err := parseGroupedInt(qty[1]); err == nil {
				quantity = v
			}
		}

		out[name] = domain.BuyOrder{
			OrderID:  orderID,
			ItemName: name,
			Price:    price,
			Quantity: quantity,
		}
	}
	return out, nil
}

// splitRows slices html into per-row chunks starting at each marker.
func splitRows(html, marker string) []string {
	parts := strings.Split(html, marker)
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}

// leadingDigits returns the digit prefix of s.
func leadingDigits(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return s[:i]
		}
	}
	return s
}
