package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"courtpulse/internal/app/apperr"
)

const retryAfterSeconds = "1"

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	writeErrorBody(w, status, map[string]any{"error": code})
}

func writeErrorBody(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteAppError maps a coordinator error to its HTTP response.
func WriteAppError(w http.ResponseWriter, err error) {
	var conflict *apperr.ConflictError
	var funds *apperr.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		writeErrorBody(w, http.StatusUnprocessableEntity, map[string]any{
			"error":           apperr.ErrInsufficientFunds.Error(),
			"remaining_purse": funds.Remaining,
			"requested":       funds.Requested,
		})
	case errors.As(err, &conflict):
		WriteHTTPError(w, http.StatusConflict, conflict.Code)
	case errors.Is(err, apperr.ErrInvalidRequest):
		writeErrorBody(w, http.StatusBadRequest, map[string]any{
			"error":   apperr.ErrInvalidRequest.Error(),
			"message": err.Error(),
		})
	case errors.Is(err, apperr.ErrNotFound):
		WriteHTTPError(w, http.StatusNotFound, apperr.ErrNotFound.Error())
	case apperr.Retryable(err):
		metricTransientErrors.Add(1)
		log.Warn().Err(err).Msg("store unavailable")
		w.Header().Set("Retry-After", retryAfterSeconds)
		WriteHTTPError(w, http.StatusServiceUnavailable, apperr.ErrTransientStore.Error())
	case errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", retryAfterSeconds)
		WriteHTTPError(w, http.StatusServiceUnavailable, "timeout")
	default:
		log.Error().Err(err).Msg("unhandled request error")
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody rejects unknown fields so typos in field names surface as 400s.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.InvalidRequest("malformed json body")
	}
	return nil
}
