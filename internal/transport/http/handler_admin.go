package httptransport

import (
	"context"
	"net/http"
	"strconv"

	"courtpulse/internal/cleanup"
	"courtpulse/internal/store"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type CleanupLister interface {
	ListPendingCleanups(ctx context.Context, limit int) ([]store.Cleanup, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (cleanup.SweepResult, error)
}

type AdminHandlers struct {
	durable  Pinger
	realtime Pinger
	cleanups CleanupLister
	sweeper  Sweeper
}

func NewAdminHandlers(durable, realtime Pinger, cleanups CleanupLister, sweeper Sweeper) *AdminHandlers {
	return &AdminHandlers{durable: durable, realtime: realtime, cleanups: cleanups, sweeper: sweeper}
}

// Health reports both stores. Only the durable store gates readiness; the
// service keeps accepting writes while the realtime store is down.
func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"ok": true, "db": "up", "realtime": "up"}
		status := http.StatusOK
		if err := h.durable.Ping(r.Context()); err != nil {
			body["ok"] = false
			body["db"] = "down"
			status = http.StatusServiceUnavailable
		}
		if err := h.realtime.Ping(r.Context()); err != nil {
			body["realtime"] = "down"
		}
		writeJSON(w, status, body)
	}
}

func (h *AdminHandlers) PendingCleanups() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := ParseLimit(r, 50, 500)
		items, err := h.cleanups.ListPendingCleanups(r.Context(), limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit})
	}
}

func (h *AdminHandlers) Sweep() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.sweeper.Sweep(r.Context())
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func ParseLimit(r *http.Request, def, ceiling int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit
}
