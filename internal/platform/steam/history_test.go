package steam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

const historyHTML = `
<div class="market_listing_row" id="history_row_1">
  <div class="market_listing_gainorloss">-</div>
  <span class="market_listing_price">12,00 pуб.</span>
  <span class="market_listing_item_name">Dreams &amp; Nightmares Case</span>
  <span class="market_listing_game_name">Counter-Strike 2</span>
  <div class="market_listing_listed_date">18 Mar</div>
</div>
<div class="market_listing_row" id="history_row_2">
  <div class="market_listing_gainorloss">+</div>
  <span class="market_listing_price">0,90 pуб.</span>
  <span class="market_listing_item_name">200 Gems</span>
  <span class="market_listing_game_name">Steam</span>
  <div class="market_listing_listed_date">2 Jan</div>
</div>`

func TestParseHistoryRows(t *testing.T) {
	rows, err := parseHistoryRows(historyHTML)
	if err != nil {
		t.Fatalf("parseHistoryRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows got=%d want=2", len(rows))
	}

	// Wire order is newest-first; parsed order must be chronological.
	first := rows[0]
	if !first.Purchase {
		t.Fatalf("oldest row must be the purchase, got %+v", first)
	}
	if first.Item != "Gems" || first.Count != 200 {
		t.Fatalf("stacked item got name=%q count=%d want Gems/200", first.Item, first.Count)
	}
	if first.Price != 0.90 {
		t.Fatalf("price got=%v want=0.90", first.Price)
	}
	if first.Day != 2 || first.Month != time.January {
		t.Fatalf("date got=%d %v want=2 January", first.Day, first.Month)
	}

	second := rows[1]
	if second.Purchase {
		t.Fatalf("newest row must be the sale, got %+v", second)
	}
	if second.Game != "Counter-Strike 2" || second.Count != 1 {
		t.Fatalf("sale row got=%+v", second)
	}
	if second.Day != 18 || second.Month != time.March {
		t.Fatalf("date got=%d %v want=18 March", second.Day, second.Month)
	}
}

func TestParseHistoryRowsMalformed(t *testing.T) {
	malformed := `<div class="market_listing_row"><span class="market_listing_price">1,00</span></div>`
	if _, err := parseHistoryRows(malformed); err == nil {
		t.Fatal("expected an error for a row missing fields")
	}
}

func TestFetchHistoryPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market/myhistory/render/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("count"); got != "500" {
			t.Errorf("count got=%q want=500", got)
		}
		resp := map[string]any{
			"success":      true,
			"total_count":  4217,
			"results_html": historyHTML,
		}
		writeJSON(t, w, resp)
	}))
	defer srv.Close()

	page, err := newTestClient(t, srv, nil).FetchHistoryPage(context.Background(), 0, 500)
	if err != nil {
		t.Fatalf("FetchHistoryPage: %v", err)
	}
	if page.TotalCount != 4217 {
		t.Fatalf("total got=%d want=4217", page.TotalCount)
	}
	if len(page.Rows) != 2 {
		t.Fatalf("rows got=%d want=2", len(page.Rows))
	}
}
