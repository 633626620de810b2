package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
	"github.com/tradebotlabs/steambot/internal/guard"
)

// confListResponse is the mobileconf getlist payload. Only the fields needed
// to act on a confirmation are consumed.
type confListResponse struct {
	Success bool `json:"success"`
	Conf    []struct {
		ID        string `json:"id"`
		Nonce     string `json:"nonce"`
		CreatorID string `json:"creator_id"`
	} `json:"conf"`
}

// PendingConfirmations lists the mobile confirmations waiting on the account.
// New market listings sit in this queue until their confirmation is accepted,
// so the trading cycle drains it right after listing inventory.
func (c *Client) PendingConfirmations(ctx context.Context) ([]domain.Confirmation, error) {
	q, err := c.confQuery("conf")
	if err != nil {
		return nil, err
	}

	body, status, err := c.get(ctx, svcConfList,
		c.cfg.CommunityBase+"/mobileconf/getlist?"+q.Encode(),
		c.cfg.CommunityBase+"/mobileconf/conf")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("steam: mobileconf getlist: status %d", status)
	}

	var res confListResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("steam: parsing confirmation list: %w", err)
	}
	if !res.Success {
		return nil, fmt.Errorf("steam: mobileconf getlist returned success=false")
	}

	out := make([]domain.Confirmation, 0, len(res.Conf))
	for _, conf := range res.Conf {
		out = append(out, domain.Confirmation{
			ID:        conf.ID,
			Nonce:     conf.Nonce,
			CreatorID: conf.CreatorID,
		})
	}
	return out, nil
}

// AcceptConfirmation approves one pending confirmation.
func (c *Client) AcceptConfirmation(ctx context.Context, conf domain.Confirmation) error {
	q, err := c.confQuery("allow")
	if err != nil {
		return err
	}
	q.Set("op", "allow")
	q.Set("cid", conf.ID)
	q.Set("ck", conf.Nonce)

	body, status, err := c.get(ctx, svcConfAccept,
		c.cfg.CommunityBase+"/mobileconf/ajaxop?"+q.Encode(),
		c.cfg.CommunityBase+"/mobileconf/conf")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("steam: mobileconf ajaxop %s: status %d", conf.ID, status)
	}

	var res struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("steam: parsing confirmation response: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("steam: confirmation %s was not accepted", conf.ID)
	}
	return nil
}

// confQuery builds the signed identity parameters every mobileconf call
// carries. The signature is keyed by the operation tag, so each call derives
// its own key.
func (c *Client) confQuery(tag string) (url.Values, error) {
	if c.cfg.IdentitySecret == "" {
		return nil, fmt.Errorf("steam: mobile confirmations need an identity secret")
	}
	now := time.Now()
	key, err := guard.GenerateConfirmationKey(c.cfg.IdentitySecret, tag, now)
	if err != nil {
		return nil, err
	}
	return url.Values{
		"p":   {guard.GenerateDeviceID(c.cfg.SteamID)},
		"a":   {c.cfg.SteamID},
		"k":   {key},
		"t":   {strconv.FormatInt(now.Unix(), 10)},
		"m":   {"react"},
		"tag": {tag},
	}, nil
}
