// Package steam is the REST client for the community-market web endpoints:
// order-book histograms, price overviews, order placement and cancellation,
// listings, inventory and market history. Every call goes through the
// per-endpoint rate limiter and the shared retry policy, and rides the
// session manager's cookie jar for authentication.
package steam

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
	"github.com/tradebotlabs/steambot/internal/httpx"
	"github.com/tradebotlabs/steambot/internal/ratelimit"
	"github.com/tradebotlabs/steambot/internal/session"
)

// Rate-limited endpoint names. Read endpoints tolerate less traffic than the
// order mutation ones, which the marketplace meters per action.
const (
	svcHistogram     = "itemordershistogram"
	svcPriceOverview = "priceoverview"
	svcCreateBuy     = "createbuyorder"
	svcSellItem      = "sellitem"
	svcRemoveListing = "removelisting"
	svcCancelBuy     = "cancelbuyorder"
	svcMyListings    = "mylistings"
	svcBuyOrders     = "buyorders"
	svcInventory     = "inventory"
	svcHistory       = "markethistory"
	svcConfList      = "confgetlist"
	svcConfAccept    = "confajaxop"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"

// NameIDResolver maps an item's market hash name to the numeric name ID the
// histogram endpoint requires.
type NameIDResolver interface {
	NameID(itemName string) (string, bool)
}

// Config identifies the game and account a Client trades for.
type Config struct {
	// CommunityBase is the community host, e.g. "https://steamcommunity.com".
	CommunityBase string

	AppID     int
	ContextID int
	Currency  int

	// SteamID is the account's 64-bit ID, used for inventory paths.
	SteamID string

	// IdentitySecret signs mobile-confirmation requests. When empty, pending
	// confirmations must be accepted from the authenticator app.
	IdentitySecret string

	// Commission is the fraction of the buyer price the seller receives,
	// e.g. 0.87 with a 13% marketplace fee.
	Commission float64
}

// Client talks to the community-market endpoints for one app.
type Client struct {
	log       *slog.Logger
	cfg       Config
	sess      *session.Manager
	limiter   *ratelimit.Limiter
	retry     httpx.Policy
	names     NameIDResolver
	liquidity domain.LiquidityCache
}

// NewClient creates a Client and registers its endpoint rate limits.
// liquidity may be nil, in which case every SalesPerDay call hits the
// network.
func NewClient(log *slog.Logger, cfg Config, sess *session.Manager, limiter *ratelimit.Limiter, names NameIDResolver, liquidity domain.LiquidityCache) *Client {
	if cfg.Commission == 0 {
		cfg.Commission = 0.87
	}

	limiter.Register(svcHistogram, 4*time.Second)
	limiter.Register(svcPriceOverview, 4*time.Second)
	limiter.Register(svcCreateBuy, 500*time.Millisecond)
	limiter.Register(svcSellItem, 500*time.Millisecond)
	limiter.Register(svcRemoveListing, 500*time.Millisecond)
	limiter.Register(svcCancelBuy, 500*time.Millisecond)
	limiter.Register(svcMyListings, 6*time.Second)
	limiter.Register(svcBuyOrders, 6*time.Second)
	limiter.Register(svcInventory, 2*time.Second)
	limiter.Register(svcHistory, 3*time.Second)
	limiter.Register(svcConfList, 3*time.Second)
	limiter.Register(svcConfAccept, time.Second)

	return &Client{
		log:       log.With(slog.String("component", "steam"), slog.Int("app_id", cfg.AppID)),
		cfg:       cfg,
		sess:      sess,
		limiter:   limiter,
		retry:     httpx.DefaultPolicy(),
		names:     names,
		liquidity: liquidity,
	}
}

// AppID returns the app the client trades for.
func (c *Client) AppID() int {
	return c.cfg.AppID
}

// sessionID returns the CSRF token cookie the mutation endpoints require.
func (c *Client) sessionID() string {
	u, err := url.Parse(c.cfg.CommunityBase)
	if err != nil {
		return ""
	}
	for _, cookie := range c.sess.Client().Jar.Cookies(u) {
		if cookie.Name == "sessionid" {
			return cookie.Value
		}
	}
	return ""
}

// get performs a throttled, retried GET and returns the body and status.
func (c *Client) get(ctx context.Context, service, rawURL, referer string) ([]byte, int, error) {
	return c.do(ctx, service, http.MethodGet, rawURL, referer, nil)
}

// postForm performs a throttled, retried form POST.
func (c *Client) postForm(ctx context.Context, service, rawURL, referer string, form url.Values) ([]byte, int, error) {
	return c.do(ctx, service, http.MethodPost, rawURL, referer, form)
}

func (c *Client) do(ctx context.Context, service, method, rawURL, referer string, form url.Values) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx, service); err != nil {
		return nil, 0, err
	}

	var body string
	if form != nil {
		body = form.Encode()
	}

	resp, err := c.retry.Do(ctx, func() (*http.Response, error) {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "*/*")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		if referer != "" {
			req.Header.Set("Referer", referer)
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		return c.sess.Client().Do(req)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("steam: %s %s: %w", method, service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("steam: reading %s response: %w", service, err)
	}
	return data, resp.StatusCode, nil
}

// listingsReferer is the referer the market endpoints expect for an item.
func (c *Client) listingsReferer(itemName string) string {
	return fmt.Sprintf("%s/market/listings/%d/%s", c.cfg.CommunityBase, c.cfg.AppID, url.PathEscape(itemName))
}

// marketURL joins a path under the market root.
func (c *Client) marketURL(path string) string {
	return c.cfg.CommunityBase + "/market" + path
}
