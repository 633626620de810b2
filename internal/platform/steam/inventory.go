package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// inventoryPage is one page of the paged inventory endpoint.
type inventoryPage struct {
	Assets []struct {
		AssetID    string `json:"assetid"`
		ClassID    string `json:"classid"`
		InstanceID string `json:"instanceid"`
	} `json:"assets"`
	Descriptions []struct {
		ClassID        string `json:"classid"`
		InstanceID     string `json:"instanceid"`
		MarketHashName string `json:"market_hash_name"`
		Marketable     int    `json:"marketable"`
	} `json:"descriptions"`
	LastAssetID string `json:"last_assetid"`
	MoreItems   int    `json:"more_items"`
}

// Inventory returns every asset in the account's inventory for the client's
// app, following pagination until the marketplace reports no more items.
func (c *Client) Inventory(ctx context.Context) ([]domain.InventoryAsset, error) {
	type descKey struct{ class, instance string }
	type descInfo struct {
		name       string
		marketable bool
	}

	descriptions := make(map[descKey]descInfo)
	var assets []struct{ id, class, instance string }

	start := ""
	for {
		q := url.Values{
			"l":     {"english"},
			"count": {"1000"},
		}
		if start != "" {
			q.Set("start_assetid", start)
		}
		endpoint := fmt.Sprintf("%s/inventory/%s/%d/%d?%s",
			c.cfg.CommunityBase, c.cfg.SteamID, c.cfg.AppID, c.cfg.ContextID, q.Encode())

		body, status, err := c.get(ctx, svcInventory, endpoint, c.cfg.CommunityBase)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("steam: inventory page: status %d", status)
		}

		var page inventoryPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("steam: parsing inventory page: %w", err)
		}

		for _, d := range page.Descriptions {
			key := descKey{d.ClassID, d.InstanceID}
			if _, seen := descriptions[key]; !seen {
				descriptions[key] = descInfo{name: d.MarketHashName, marketable: d.Marketable != 0}
			}
		}
		for _, a := range page.Assets {
			assets = append(assets, struct{ id, class, instance string }{a.AssetID, a.ClassID, a.InstanceID})
		}

		if page.MoreItems == 0 || page.LastAssetID == "" {
			break
		}
		start = page.LastAssetID
	}

	out := make([]domain.InventoryAsset, 0, len(assets))
	for _, a := range assets {
		info, ok := descriptions[descKey{a.class, a.instance}]
		if !ok {
			continue
		}
		out = append(out, domain.InventoryAsset{
			AssetID:    a.id,
			ItemName:   info.name,
			Marketable: info.marketable,
		})
	}
	return out, nil
}
