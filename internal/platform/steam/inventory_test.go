package steam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInventoryFollowsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inventory/76561198000000001/730/2" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("start_assetid") == "" {
			writeJSON(t, w, map[string]any{
				"assets": []map[string]any{
					{"assetid": "101", "classid": "c1", "instanceid": "i1"},
				},
				"descriptions": []map[string]any{
					{"classid": "c1", "instanceid": "i1", "market_hash_name": "Dreams & Nightmares Case", "marketable": 1},
				},
				"last_assetid": "101",
				"more_items":   1,
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"assets": []map[string]any{
				{"assetid": "102", "classid": "c1", "instanceid": "i1"},
				{"assetid": "103", "classid": "c2", "instanceid": "i1"},
			},
			"descriptions": []map[string]any{
				{"classid": "c2", "instanceid": "i1", "market_hash_name": "Souvenir Token", "marketable": 0},
			},
		})
	}))
	defer srv.Close()

	assets, err := newTestClient(t, srv, nil).Inventory(context.Background())
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("assets got=%d want=3", len(assets))
	}

	byID := make(map[string]string, len(assets))
	marketable := make(map[string]bool, len(assets))
	for _, a := range assets {
		byID[a.AssetID] = a.ItemName
		marketable[a.AssetID] = a.Marketable
	}
	if byID["102"] != "Dreams & Nightmares Case" || !marketable["102"] {
		t.Fatalf("asset 102 got name=%q marketable=%v", byID["102"], marketable["102"])
	}
	if byID["103"] != "Souvenir Token" || marketable["103"] {
		t.Fatalf("asset 103 got name=%q marketable=%v", byID["103"], marketable["103"])
	}
}
