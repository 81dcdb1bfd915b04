// Package apperr holds the error vocabulary shared by the live score and
// auction coordinators. Transport layers map these to status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid_request")
	ErrNotFound          = errors.New("not_found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrTransientStore    = errors.New("store_unavailable")
)

// ConflictError names which terminal state blocked the mutation.
type ConflictError struct {
	Code string
}

func (e *ConflictError) Error() string {
	return e.Code
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

var (
	ErrMatchFinished = &ConflictError{Code: "match_already_finished"}
	ErrLotSold       = &ConflictError{Code: "lot_already_sold"}
)

type InsufficientFundsError struct {
	Remaining int64
	Requested int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: requested %d, remaining %d", ErrInsufficientFunds, e.Requested, e.Remaining)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// TransientError marks a failure of one of the backing stores that is safe to
// retry. Store is "durable" or "realtime".
type TransientError struct {
	Store string
	Err   error
}

const (
	StoreDurable  = "durable"
	StoreRealtime = "realtime"
)

func (e *TransientError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrTransientStore, e.Store)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransientStore, e.Store, e.Err)
}

func (e *TransientError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransientStore}
	}
	return []error{ErrTransientStore, e.Err}
}

func Transient(store string, err error) error {
	return &TransientError{Store: store, Err: err}
}

func InvalidRequest(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}

// Retryable reports whether the caller may retry the same request unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientStore)
}
