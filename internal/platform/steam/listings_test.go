package steam

import (
	"testing"
)

const myListingsHTML = `
<div id="mylisting_111222333" class="market_listing_row">
  <a class="item_market_action_button" href="javascript:RemoveMarketListing('mylisting', '111222333', 730, '2', '444')"></a>
  <span class="market_listing_price">
    <span title="This is the price the buyer pays.">12,34 pуб.</span>
    <span title="This is how much you will receive.">(10,73 pуб.)</span>
  </span>
  <a class="market_listing_item_name_link" href="https://steamcommunity.com/market/listings/730/Dreams%20%26%20Nightmares%20Case">Dreams &amp; Nightmares Case</a>
</div>
<div id="mylisting_999888777" class="market_listing_row">
  <a class="item_market_action_button" href="javascript:RemoveMarketListing('mylisting', '999888777', 570, '2', '445')"></a>
  <span class="market_listing_price">
    <span title="This is the price the buyer pays.">5,00 pуб.</span>
  </span>
  <a class="market_listing_item_name_link" href="https://steamcommunity.com/market/listings/570/Other%20Game%20Item">Other Game Item</a>
</div>`

func TestParseSellListings(t *testing.T) {
	got, err := parseSellListings(myListingsHTML, 730)
	if err != nil {
		t.Fatalf("parseSellListings: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("listings got=%d want=1 (other app filtered)", len(got))
	}
	l := got[0]
	if l.ListingID != "111222333" {
		t.Fatalf("listing id got=%q", l.ListingID)
	}
	if l.ItemName != "Dreams & Nightmares Case" {
		t.Fatalf("item name got=%q", l.ItemName)
	}
	if l.BuyerPrice != 12.34 {
		t.Fatalf("buyer price got=%v want=12.34", l.BuyerPrice)
	}
}

func TestParseSellListingsEmpty(t *testing.T) {
	got, err := parseSellListings("<div>no listings</div>", 730)
	if err != nil {
		t.Fatalf("parseSellListings: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("listings got=%d want=0", len(got))
	}
}

const buyOrdersHTML = `
<div id="mybuyorder_5551234" class="market_listing_row market_recent_listing_row">
  <span class="market_listing_price">
    <span class="market_listing_inline_buyorder_qty">2 @</span> 7,50 pуб.
  </span>
  <a class="market_listing_item_name_link" href="https://steamcommunity.com/market/listings/730/Dreams%20%26%20Nightmares%20Case">Dreams &amp; Nightmares Case</a>
</div>
<div id="mybuyorder_5551235" class="market_listing_row market_recent_listing_row">
  <span class="market_listing_price">
    <span class="market_listing_inline_buyorder_qty">1 @</span> 3,00 pуб.
  </span>
  <a class="market_listing_item_name_link" href="https://steamcommunity.com/market/listings/440/Mann%20Co.%20Key">Mann Co. Key</a>
</div>`

func TestParseBuyOrders(t *testing.T) {
	got, err := parseBuyOrders(buyOrdersHTML, 730)
	if err != nil {
		t.Fatalf("parseBuyOrders: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("orders got=%d want=1 (other app filtered)", len(got))
	}
	order, ok := got["Dreams & Nightmares Case"]
	if !ok {
		t.Fatalf("missing expected order, got %v", got)
	}
	if order.OrderID != "5551234" {
		t.Fatalf("order id got=%q", order.OrderID)
	}
	if order.Price != 7.50 {
		t.Fatalf("price got=%v want=7.50", order.Price)
	}
	if order.Quantity != 2 {
		t.Fatalf("quantity got=%d want=2", order.Quantity)
	}
}

func TestParseListedPrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12,34 pуб.", 12.34},
		{"$1.99", 1.99},
		{" 0,45 pуб. ", 0.45},
		{"(10,73 pуб.)", 10.73},
	}
	for _, tc := range cases {
		got, err := parseListedPrice(tc.in)
		if err != nil {
			t.Fatalf("parseListedPrice(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseListedPrice(%q) got=%v want=%v", tc.in, got, tc.want)
		}
	}

	if _, err := parseListedPrice("no numbers here"); err == nil {
		t.Fatal("expected an error for a priceless string")
	}
}
