package apperr

import (
	"context"
	"errors"
	"testing"
)

func TestConflictErrorsUnwrap(t *testing.T) {
	if !errors.Is(ErrMatchFinished, ErrConflict) {
		t.Fatal("ErrMatchFinished should unwrap to ErrConflict")
	}
	wrapped := errors.Join(errors.New("ctx"), ErrLotSold)
	var ce *ConflictError
	if !errors.As(wrapped, &ce) || ce.Code != "lot_already_sold" {
		t.Fatalf("errors.As conflict = %+v", ce)
	}
}

func TestInsufficientFundsError(t *testing.T) {
	err := error(&InsufficientFundsError{Remaining: 40, Requested: 50})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatal("expected ErrInsufficientFunds")
	}
	if Retryable(err) {
		t.Fatal("insufficient funds must not be retryable")
	}
}

func TestTransientErrorRetryable(t *testing.T) {
	err := Transient(StoreRealtime, context.DeadlineExceeded)
	if !Retryable(err) {
		t.Fatal("transient error must be retryable")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("transient error should keep the cause")
	}
	var te *TransientError
	if !errors.As(err, &te) || te.Store != StoreRealtime {
		t.Fatalf("errors.As transient = %+v", te)
	}
	if Retryable(InvalidRequest("side")) {
		t.Fatal("invalid request must not be retryable")
	}
}
