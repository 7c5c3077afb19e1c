package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

// Error is returned by store operations that fail for a domain reason or
// because the database cannot be reached.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// LotID identifies the affected lot, when known.
	LotID int64

	// Stream and RecordID identify the affected child record, when known.
	Stream   lot.Stream
	RecordID int64

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeReferentialIntegrity indicates a child mutation referenced a lot
	// that does not exist. Nothing was written.
	ErrCodeReferentialIntegrity ErrorCode = "REFERENTIAL_INTEGRITY"

	// ErrCodeDependentRecordsExist indicates a lot deletion was refused
	// because child or completeness records still reference it.
	ErrCodeDependentRecordsExist ErrorCode = "DEPENDENT_RECORDS_EXIST"

	// ErrCodeStoreUnavailable indicates the database could not be reached.
	// The whole unit of work is rolled back.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// ErrCodeRecordNotFound indicates the child record does not exist.
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// ErrCodeLotNotFound indicates the lot does not exist.
	ErrCodeLotNotFound ErrorCode = "LOT_NOT_FOUND"

	// ErrCodeLotExists indicates a lot with the same id already exists.
	ErrCodeLotExists ErrorCode = "LOT_EXISTS"

	// ErrCodeInvalidLot indicates the lot failed validation.
	ErrCodeInvalidLot ErrorCode = "INVALID_LOT"

	// ErrCodeInvalidRecord indicates the child record failed validation.
	ErrCodeInvalidRecord ErrorCode = "INVALID_RECORD"

	// ErrCodeNoObserver indicates a child write was attempted with no
	// observer registered to keep completeness in step.
	ErrCodeNoObserver ErrorCode = "NO_OBSERVER"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	switch {
	case e.LotID != 0 && e.Stream != "":
		fmt.Fprintf(&b, " (lot=%d, stream=%s)", e.LotID, e.Stream)
	case e.LotID != 0:
		fmt.Fprintf(&b, " (lot=%d)", e.LotID)
	case e.Stream != "":
		fmt.Fprintf(&b, " (stream=%s, id=%d)", e.Stream, e.RecordID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the store error code carried by err, or "" if none.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsReferentialIntegrity returns true if err is a REFERENTIAL_INTEGRITY error.
func IsReferentialIntegrity(err error) bool {
	return CodeOf(err) == ErrCodeReferentialIntegrity
}

// IsDependentRecordsExist returns true if err is a DEPENDENT_RECORDS_EXIST error.
func IsDependentRecordsExist(err error) bool {
	return CodeOf(err) == ErrCodeDependentRecordsExist
}

// IsStoreUnavailable returns true if err is a STORE_UNAVAILABLE error.
func IsStoreUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeStoreUnavailable
}

// IsNotFound returns true for RECORD_NOT_FOUND and LOT_NOT_FOUND errors.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeRecordNotFound || code == ErrCodeLotNotFound
}

func lotNotFound(lotID int64) *Error {
	return &Error{Code: ErrCodeLotNotFound, Message: "lot does not exist", LotID: lotID}
}

func recordNotFound(stream lot.Stream, id int64) *Error {
	return &Error{Code: ErrCodeRecordNotFound, Message: "record does not exist", Stream: stream, RecordID: id}
}

func missingParent(stream lot.Stream, lotID int64) *Error {
	return &Error{
		Code:    ErrCodeReferentialIntegrity,
		Message: "record references a lot that does not exist",
		LotID:   lotID,
		Stream:  stream,
	}
}

// classify maps driver errors onto store errors and prefixes op.
// Unreachable, closed, busy or corrupt databases become STORE_UNAVAILABLE;
// foreign key violations become fkCode when given.
func classify(op string, err error) error {
	return classifyFK(op, err, "")
}

func classifyFK(op string, err error, fkCode ErrorCode) error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) ||
		strings.Contains(err.Error(), "database is closed") {
		return &Error{Code: ErrCodeStoreUnavailable, Message: op, Err: err}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr,
			sqlite3.ErrNotADB, sqlite3.ErrCorrupt, sqlite3.ErrFull, sqlite3.ErrReadonly:
			return &Error{Code: ErrCodeStoreUnavailable, Message: op, Err: err}
		}
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey && fkCode != "" {
			return &Error{Code: fkCode, Message: op, Err: err}
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
