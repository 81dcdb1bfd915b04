package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"courtpulse/internal/app/apperr"
	"courtpulse/internal/app/auction"
)

type LotHandlers struct {
	auction *auction.Coordinator
}

func NewLotHandlers(a *auction.Coordinator) *LotHandlers {
	return &LotHandlers{auction: a}
}

type lotCommand struct {
	TeamID string `json:"team_id"`
	Amount *int64 `json:"amount"`
}

func (c lotCommand) validate() error {
	if c.TeamID == "" {
		return apperr.InvalidRequest("team_id is required")
	}
	if c.Amount == nil {
		return apperr.InvalidRequest("amount is required")
	}
	return nil
}

func (h *LotHandlers) PlaceBid() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body lotCommand
		if err := decodeBody(r, &body); err != nil {
			WriteAppError(w, err)
			return
		}
		if err := body.validate(); err != nil {
			WriteAppError(w, err)
			return
		}
		metricBidRequests.Add(1)
		p, err := h.auction.PlaceBid(r.Context(), chi.URLParam(r, "lot_id"), body.TeamID, *body.Amount)
		if err != nil {
			WriteAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (h *LotHandlers) MarkSold() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body lotCommand
		if err := decodeBody(r, &body); err != nil {
			WriteAppError(w, err)
			return
		}
		if err := body.validate(); err != nil {
			WriteAppError(w, err)
			return
		}
		metricSoldRequests.Add(1)
		res, err := h.auction.MarkSold(r.Context(), chi.URLParam(r, "lot_id"), body.TeamID, *body.Amount)
		if err != nil {
			WriteAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *LotHandlers) RecentSales() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.auction.RecentSales(r.Context(), chi.URLParam(r, "tournament_id"))
		if err != nil {
			WriteAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}
