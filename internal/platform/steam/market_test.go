package steam

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
	"github.com/tradebotlabs/steambot/internal/httpx"
	"github.com/tradebotlabs/steambot/internal/ratelimit"
	"github.com/tradebotlabs/steambot/internal/session"
)

type fakeNames map[string]string

func (f fakeNames) NameID(itemName string) (string, bool) {
	id, ok := f[itemName]
	return id, ok
}

type memLiquidity struct {
	mu sync.Mutex
	m  map[string]int
}

func (c *memLiquidity) Get(ctx context.Context, appID int, itemName string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.m[itemName]; ok {
		return v, nil
	}
	return 0, domain.ErrNotFound
}

func (c *memLiquidity) Set(ctx context.Context, appID int, itemName string, salesPerDay int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]int)
	}
	c.m[itemName] = salesPerDay
	return nil
}

func newTestClient(t *testing.T, srv *httptest.Server, liquidity domain.LiquidityCache) *Client {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	sess, err := session.NewManager(log, session.Config{
		LoginBase:  srv.URL,
		Origins:    map[string]string{srv.URL: srv.URL},
		PriorPath:  t.TempDir() + "/prior.json",
		CookiePath: t.TempDir() + "/cookies.json",
	}, nil)
	if err != nil {
		t.Fatalf("session.NewManager: %v", err)
	}

	c := NewClient(log, Config{
		CommunityBase: srv.URL,
		AppID:         730,
		ContextID:     2,
		Currency:      5,
		SteamID:       "76561198000000001",
	}, sess, ratelimit.New(), fakeNames{"case": "12345"}, liquidity)

	// Tight retry backoff keeps failure-path tests fast.
	p := httpx.DefaultPolicy()
	p.InitialBackoff = time.Millisecond
	p.MaxBackoff = 2 * time.Millisecond
	c.retry = p
	return c
}

func TestFetchOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market/itemordershistogram" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("item_nameid"); got != "12345" {
			t.Errorf("item_nameid got=%q want=12345", got)
		}
		w.Write([]byte(`{
			"success": 1,
			"sell_order_graph": [[10.0, 5, "5 sell orders at 10,00 or lower"], [11.0, 12, ""]],
			"buy_order_graph": [[9.5, 3, ""], [9.0, 20, ""]]
		}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(t, srv, nil).FetchOrderBook(context.Background(), "case")
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if len(snap.Asks) != 2 || len(snap.Bids) != 2 {
		t.Fatalf("depth got asks=%d bids=%d want 2/2", len(snap.Asks), len(snap.Bids))
	}
	if snap.Asks[0].Price != 10.0 || snap.Asks[0].Count != 5 {
		t.Fatalf("ask[0] got=%+v", snap.Asks[0])
	}
	if snap.BestBid() != 9.5 {
		t.Fatalf("best bid got=%v want=9.5", snap.BestBid())
	}
	if snap.FetchedAt.IsZero() {
		t.Fatal("FetchedAt not set")
	}
}

func TestFetchOrderBookUnknownItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an unresolvable item")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).FetchOrderBook(context.Background(), "unknown item")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchOrderBookEmptyHistogram(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":1,"sell_order_graph":[],"buy_order_graph":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).FetchOrderBook(context.Background(), "case")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchOrderBook429Halts(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).FetchOrderBook(context.Background(), "case")
	if !errors.Is(err, domain.ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("429 must not be retried: calls got=%d want=1", calls)
	}
}

func TestSalesPerDayParsesVolume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market/priceoverview" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"volume":"1,234","median_price":"10,00"}`))
	}))
	defer srv.Close()

	cache := &memLiquidity{}
	c := newTestClient(t, srv, cache)

	got, err := c.SalesPerDay(context.Background(), "case")
	if err != nil {
		t.Fatalf("SalesPerDay: %v", err)
	}
	if got != 1234 {
		t.Fatalf("sales got=%d want=1234", got)
	}
	if cache.m["case"] != 1234 {
		t.Fatalf("cache not populated: %v", cache.m)
	}
}

func TestSalesPerDayServedFromCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("cached item must not hit the network")
	}))
	defer srv.Close()

	cache := &memLiquidity{m: map[string]int{"case": 77}}
	got, err := newTestClient(t, srv, cache).SalesPerDay(context.Background(), "case")
	if err != nil {
		t.Fatalf("SalesPerDay: %v", err)
	}
	if got != 77 {
		t.Fatalf("sales got=%d want=77", got)
	}
}

func TestSalesPerDayUnparsableVolumeDefaultsToOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv, nil).SalesPerDay(context.Background(), "case")
	if err != nil {
		t.Fatalf("SalesPerDay: %v", err)
	}
	if got != 1 {
		t.Fatalf("sales got=%d want=1", got)
	}
}

func TestPlaceBuyOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market/createbuyorder/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		// 7.01 * 100 * 3 = 2103 cents.
		if got := r.PostForm.Get("price_total"); got != "2103" {
			t.Errorf("price_total got=%q want=2103", got)
		}
		if got := r.PostForm.Get("quantity"); got != "3" {
			t.Errorf("quantity got=%q want=3", got)
		}
		w.Write([]byte(`{"success":1,"buy_orderid":"5551234"}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv, nil).PlaceBuyOrder(context.Background(), "case", 7.01, 3)
	if err != nil {
		t.Fatalf("PlaceBuyOrder: %v", err)
	}
	if !res.Success || res.OrderID != "5551234" {
		t.Fatalf("result got=%+v", res)
	}
}

func TestSellItemAppliesCommission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		// Buyer pays 10.00; the seller receives 10.00 * 0.87 = 8.70, sent
		// as 870 cents.
		if got := r.PostForm.Get("price"); got != "870" {
			t.Errorf("price got=%q want=870", got)
		}
		w.Write([]byte(`{"success":true,"needs_mobile_confirmation":true,"requires_confirmation":1}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv, nil).SellItem(context.Background(), "9876", 1, 10.00)
	if err != nil {
		t.Fatalf("SellItem: %v", err)
	}
	if !res.Success || !res.NeedsConfirmation {
		t.Fatalf("result got=%+v", res)
	}
}

func TestCancelBuyOrderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":8}`))
	}))
	defer srv.Close()

	if err := newTestClient(t, srv, nil).CancelBuyOrder(context.Background(), "5551234"); err == nil {
		t.Fatal("expected an error for success!=1")
	}
}
