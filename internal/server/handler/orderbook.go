package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// OrderBookHandler serves cached order-book snapshots. It never hits the
// marketplace itself: snapshots land in the cache as a side effect of
// trading cycles and go stale with the cache TTL.
type OrderBookHandler struct {
	cache  domain.OrderBookCache
	logger *slog.Logger
}

// NewOrderBookHandler creates an OrderBookHandler backed by the given cache.
func NewOrderBookHandler(cache domain.OrderBookCache, logger *slog.Logger) *OrderBookHandler {
	return &OrderBookHandler{
		cache:  cache,
		logger: logger.With(slog.String("handler", "orderbook")),
	}
}

// GetSnapshot responds with the cached snapshot for one item, or 404 when
// none is cached.
// GET /api/orderbook?app_id=730&item=Dreams+%26+Nightmares+Case
func (h *OrderBookHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	appID, err := strconv.Atoi(q.Get("app_id"))
	if err != nil || appID <= 0 {
		writeError(w, http.StatusBadRequest, "app_id must be a positive integer")
		return
	}
	itemName := q.Get("item")
	if itemName == "" {
		writeError(w, http.StatusBadRequest, "item is required")
		return
	}

	snap, err := h.cache.GetSnapshot(r.Context(), appID, itemName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no cached snapshot for item")
			return
		}
		h.logger.ErrorContext(r.Context(), "get snapshot",
			slog.String("item", itemName),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"item_name":     snap.ItemName,
		"asks":          levels(snap.Asks),
		"bids":          levels(snap.Bids),
		"sales_per_day": snap.SalesPerDay,
		"fetched_at":    snap.FetchedAt,
	})
}

func levels(ls []domain.PriceLevel) []map[string]any {
	out := make([]map[string]any, 0, len(ls))
	for _, l := range ls {
		out = append(out, map[string]any{"price": l.Price, "count": l.Count})
	}
	return out
}
