package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while keeping completeness in
// step with a mutation.
//
// Runtime errors include:
//   - Recompute failure: an existence check or the upsert failed
//   - Lock failure: the per-lot lock could not be taken
//
// RuntimeError unwraps to the underlying cause, so store error helpers such
// as store.IsStoreUnavailable still match.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// LotID identifies the affected lot.
	LotID int64

	// UnitID identifies the unit of work, when known.
	UnitID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeRecomputeFailed indicates recomputing a lot failed. The
	// triggering unit of work is rolled back.
	ErrCodeRecomputeFailed RuntimeErrorCode = "RECOMPUTE_FAILED"

	// ErrCodeLockFailed indicates the per-lot lock could not be taken.
	ErrCodeLockFailed RuntimeErrorCode = "LOCK_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var msg string
	if e.UnitID != "" {
		msg = fmt.Sprintf("%s: %s (lot=%d, unit=%s)", e.Code, e.Message, e.LotID, e.UnitID)
	} else {
		msg = fmt.Sprintf("%s: %s (lot=%d)", e.Code, e.Message, e.LotID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsRecomputeError returns true if the error is a recompute failure.
// Uses errors.As to handle wrapped errors.
func IsRecomputeError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRecomputeFailed
	}
	return false
}

// IsLockError returns true if the error is a lock failure.
// Uses errors.As to handle wrapped errors.
func IsLockError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeLockFailed
	}
	return false
}

// NewRecomputeError creates a RuntimeError for a failed recompute.
func NewRecomputeError(lotID int64, unitID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeRecomputeFailed,
		Message: "completeness recompute failed",
		LotID:   lotID,
		UnitID:  unitID,
		Err:     err,
	}
}

// NewLockError creates a RuntimeError for a lot lock that could not be taken.
func NewLockError(lotID int64, unitID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeLockFailed,
		Message: "could not lock lot",
		LotID:   lotID,
		UnitID:  unitID,
		Err:     err,
	}
}
