package handler

import (
	"log/slog"
	"net/http"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// LedgerHandler serves aggregated transaction-history statistics.
type LedgerHandler struct {
	store  domain.LedgerStore
	logger *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler backed by the given store.
func NewLedgerHandler(store domain.LedgerStore, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "ledger")),
	}
}

// ListItems responds with the per-item totals, including the derived
// quantity and cash differences.
// GET /api/ledger/items
func (h *LedgerHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.ListItemStats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list item stats", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load item stats")
		return
	}

	out := make([]map[string]any, 0, len(stats))
	for _, st := range stats {
		out = append(out, map[string]any{
			"game":          st.Game,
			"item_name":     st.ItemName,
			"total_bought":  st.TotalBought,
			"total_sold":    st.TotalSold,
			"sum_bought":    st.SumBought,
			"sum_sold":      st.SumSold,
			"quantity_diff": st.QuantityDifference(),
			"sum_diff":      st.SumDifference(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// ListMonths responds with the per-month totals.
// GET /api/ledger/months
func (h *LedgerHandler) ListMonths(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.ListMonthStats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list month stats", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load month stats")
		return
	}

	out := make([]map[string]any, 0, len(stats))
	for _, st := range stats {
		out = append(out, map[string]any{
			"month":        st.Month,
			"total_bought": st.TotalBought,
			"total_sold":   st.TotalSold,
			"sum_bought":   st.SumBought,
			"sum_sold":     st.SumSold,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": out})
}
