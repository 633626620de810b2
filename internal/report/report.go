// Package report renders aggregated ledger statistics as CSV documents
// suitable for archiving and spreadsheet import.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// KindItems and KindMonths name the two report flavours; they double as the
// storage prefix under which archived copies are filed.
const (
	KindItems  = "items"
	KindMonths = "months"
)

// RenderItems renders per-item totals as CSV, one row per item in the order
// given, with derived quantity and cash differences appended.
func RenderItems(stats []domain.ItemStats) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"game", "item_name", "total_bought", "total_sold", "sum_bought", "sum_sold", "quantity_diff", "sum_diff"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("report: write header: %w", err)
	}

	for _, st := range stats {
		row := []string{
			st.Game,
			st.ItemName,
			strconv.Itoa(st.TotalBought),
			strconv.Itoa(st.TotalSold),
			formatMoney(st.SumBought),
			formatMoney(st.SumSold),
			strconv.Itoa(st.QuantityDifference()),
			formatMoney(st.SumDifference()),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("report: write row %q: %w", st.ItemName, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("report: flush: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderMonths renders per-month totals as CSV, one row per calendar month
// in the order given.
func RenderMonths(stats []domain.MonthStats) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"month", "total_bought", "total_sold", "sum_bought", "sum_sold", "sum_diff"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("report: write header: %w", err)
	}

	for _, st := range stats {
		row := []string{
			st.Month,
			strconv.Itoa(st.TotalBought),
			strconv.Itoa(st.TotalSold),
			formatMoney(st.SumBought),
			formatMoney(st.SumSold),
			formatMoney(st.SumSold - st.SumBought),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("report: write row %q: %w", st.Month, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("report: flush: %w", err)
	}
	return buf.Bytes(), nil
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
