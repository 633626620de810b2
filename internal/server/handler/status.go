package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves the backend status (mode, traded apps, uptime) for
// the dashboard.
type StatusHandler struct {
	Mode      string
	AppIDs    []int
	StartedAt time.Time
}

// NewStatusHandler creates a StatusHandler for the given run mode and app list.
func NewStatusHandler(mode string, appIDs []int, startedAt time.Time) *StatusHandler {
	return &StatusHandler{Mode: mode, AppIDs: appIDs, StartedAt: startedAt}
}

// GetStatus responds with the current backend mode, the apps being traded
// and the process uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(h.StartedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"app_ids":        h.AppIDs,
		"uptime_seconds": uptime,
	})
}
