package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tradebotlabs/steambot/internal/report"
)

// ReportLister lists the object keys of archived ledger reports of one kind.
type ReportLister interface {
	ListReports(ctx context.Context, kind string) ([]string, error)
}

// ReportsHandler serves the keys of CSV reports archived in object storage.
// The dashboard uses them to build download links.
type ReportsHandler struct {
	lister ReportLister
	logger *slog.Logger
}

// NewReportsHandler creates a ReportsHandler backed by the given lister.
func NewReportsHandler(lister ReportLister, logger *slog.Logger) *ReportsHandler {
	return &ReportsHandler{
		lister: lister,
		logger: logger.With(slog.String("handler", "reports")),
	}
}

// ListReports responds with the archived report keys for one report kind,
// oldest first.
// GET /api/reports/{kind}
func (h *ReportsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if kind != report.KindItems && kind != report.KindMonths {
		writeError(w, http.StatusBadRequest, "unknown report kind: "+kind)
		return
	}

	keys, err := h.lister.ListReports(r.Context(), kind)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list reports",
			slog.String("kind", kind),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kind":    kind,
		"reports": keys,
	})
}
