package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// HistoryRow is one completed market transaction. Purchase is true for
// acquisitions (the row renders "+") and false for sales ("-"). Day and
// Month come from the row's date cell, which carries no year; both are zero
// when the cell is absent.
type HistoryRow struct {
	Game     string
	Item     string
	Count    int
	Price    float64
	Purchase bool
	Day      int
	Month    time.Month
}

// HistoryPage is one slice of the account's market history, newest first on
// the wire; Rows are reordered oldest-first so callers can fold them into
// running totals.
type HistoryPage struct {
	TotalCount int
	Rows       []HistoryRow
}

// historyResponse is the myhistory/render payload.
type historyResponse struct {
	Success     bool   `json:"success"`
	TotalCount  int    `json:"total_count"`
	ResultsHTML string `json:"results_html"`
}

var (
	gameNameRe    = regexp.MustCompile(`market_listing_game_name[^>]*>([^<]*)<`)
	histItemRe    = regexp.MustCompile(`market_listing_item_name[^>]*>([^<]*)<`)
	histPriceRe   = regexp.MustCompile(`market_listing_price[^>]*>([^<]+)<`)
	gainOrLossRe  = regexp.MustCompile(`market_listing_gainorloss[^>]*>\s*([+-])`)
	listedDateRe  = regexp.MustCompile(`market_listing_listed_date[^>]*>\s*(\d{1,2}) ([A-Za-z]{3})`)
	listingRowSep = `class="market_listing_row`
)

// monthAbbrevs maps the three-letter month names used in history date cells.
var monthAbbrevs = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// FetchHistoryPage retrieves count history rows starting at offset start
// (0 is the most recent transaction).
func (c *Client) FetchHistoryPage(ctx context.Context, start, count int) (HistoryPage, error) {
	endpoint := fmt.Sprintf("%s/market/myhistory/render/?count=%d&start=%d",
		c.cfg.CommunityBase, count, start)

	body, status, err := c.get(ctx, svcHistory, endpoint, c.marketURL("/"))
	if err != nil {
		return HistoryPage{}, err
	}
	if status != http.StatusOK {
		return HistoryPage{}, fmt.Errorf("steam: market history: status %d", status)
	}

	var page historyResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return HistoryPage{}, fmt.Errorf("steam: parsing history response: %w", err)
	}

	rows, err := parseHistoryRows(page.ResultsHTML)
	if err != nil {
		return HistoryPage{}, err
	}
	return HistoryPage{TotalCount: page.TotalCount, Rows: rows}, nil
}

// parseHistoryRows extracts transactions from the rendered history rows and
// returns them oldest-first.
func parseHistoryRows(html string) ([]HistoryRow, error) {
	chunks := strings.Split(html, listingRowSep)
	if len(chunks) <= 1 {
		return nil, nil
	}
	chunks = chunks[1:]

	rows := make([]HistoryRow, 0, len(chunks))
	for _, chunk := range chunks {
		sign := gainOrLossRe.FindStringSubmatch(chunk)
		game := gameNameRe.FindStringSubmatch(chunk)
		item := histItemRe.FindStringSubmatch(chunk)
		priceMatch := histPriceRe.FindStringSubmatch(chunk)
		if sign == nil || game == nil || item == nil || priceMatch == nil {
			return nil, fmt.Errorf("steam: malformed history row")
		}

		price, err := parseListedPrice(priceMatch[1])
		if err != nil {
			return nil, fmt.Errorf("steam: history row price: %w", err)
		}

		name, count := splitCountPrefix(strings.TrimSpace(item[1]))

		row := HistoryRow{
			Game:     strings.TrimSpace(game[1]),
			Item:     name,
			Count:    count,
			Price:    price,
			Purchase: sign[1] == "+",
		}
		// The acted date is the first date cell in the row. No year on the
		// wire; callers resolve it relative to the current date.
		if date := listedDateRe.FindStringSubmatch(chunk); date != nil {
			if m, ok := monthAbbrevs[date[2]]; ok {
				row.Day, _ = strconv.Atoi(date[1])
				row.Month = m
			}
		}
		rows = append(rows, row)
	}

	// Wire order is newest-first; reverse so totals fold chronologically.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// splitCountPrefix handles stacked items rendered as "200 Gems": the leading
// integer is the stack size, the rest the item name.
func splitCountPrefix(name string) (string, int) {
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 2 {
		if v, err := parseGroupedInt(parts[0]); err == nil {
			return strings.TrimSpace(parts[1]), v
		}
	}
	return name, 1
}
