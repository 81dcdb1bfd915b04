package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"courtpulse/internal/app/apperr"
	"courtpulse/internal/app/livescore"
)

type MatchHandlers struct {
	scores *livescore.Coordinator
}

func NewMatchHandlers(scores *livescore.Coordinator) *MatchHandlers {
	return &MatchHandlers{scores: scores}
}

func (h *MatchHandlers) UpdateScore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Side  string `json:"side"`
			Delta *int   `json:"delta"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteAppError(w, err)
			return
		}
		if body.Delta == nil {
			WriteAppError(w, apperr.InvalidRequest("delta is required"))
			return
		}
		metricScoreRequests.Add(1)
		p, err := h.scores.UpdateScore(r.Context(), chi.URLParam(r, "match_id"), body.Side, *body.Delta)
		if err != nil {
			WriteAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (h *MatchHandlers) Finalize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ScoreA *int `json:"score_a"`
			ScoreB *int `json:"score_b"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteAppError(w, err)
			return
		}
		if body.ScoreA == nil || body.ScoreB == nil {
			WriteAppError(w, apperr.InvalidRequest("score_a and score_b are required"))
			return
		}
		metricFinalizeRequests.Add(1)
		res, err := h.scores.FinalizeMatch(r.Context(), chi.URLParam(r, "match_id"), *body.ScoreA, *body.ScoreB)
		if err != nil {
			WriteAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
