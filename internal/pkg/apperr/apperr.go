package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is a generic sentinel for constraint conflicts.
	ErrConflict = errors.New("conflict")
)

// StoreErrorCode classifies storage failures so handlers can pick a status
// without string-matching driver messages.
type StoreErrorCode string

const (
	StoreErrorForeignKey StoreErrorCode = "foreign_key_violation"
	StoreErrorUnique     StoreErrorCode = "unique_violation"
	StoreErrorNotFound   StoreErrorCode = "not_found"
	StoreErrorTransient  StoreErrorCode = "transient"
	StoreErrorInternal   StoreErrorCode = "internal"
)

type StoreError struct {
	Code StoreErrorCode
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth a bounded retry.
// Constraint violations never are.
func (e *StoreError) Retryable() bool {
	return e.Code == StoreErrorTransient
}

// Postgres error classes. Class 08 is connection exceptions, 40001/40P01 are
// serialization/deadlock failures, 57P0x are shutdown states.
func isTransientPgCode(code string) bool {
	if len(code) >= 2 && code[:2] == "08" {
		return true
	}
	switch code {
	case "40001", "40P01", "57P01", "57P02", "57P03", "53300":
		return true
	}
	return false
}

// ClassifyStore wraps a repo error into a StoreError.
func ClassifyStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &StoreError{Code: StoreErrorNotFound, Op: op, Err: ErrNotFound}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23503":
			return &StoreError{Code: StoreErrorForeignKey, Op: op, Err: err}
		case pgErr.Code == "23505":
			return &StoreError{Code: StoreErrorUnique, Op: op, Err: err}
		case isTransientPgCode(pgErr.Code):
			return &StoreError{Code: StoreErrorTransient, Op: op, Err: err}
		}
	}
	return &StoreError{Code: StoreErrorInternal, Op: op, Err: err}
}

// IsRetryableStore reports whether err is a transient storage failure.
func IsRetryableStore(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
