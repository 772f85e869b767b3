// Package apperr defines the sentinel errors shared by domain services. The
// HTTP layer maps them to status codes, so services never import echo.
package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTooManyAttempts   = errors.New("too many attempts")
	ErrUpstream          = errors.New("upstream service failed")
)

// Validation wraps ErrValidation with a field-level message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrConflict with a message.
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Transition reports an illegal status change.
func Transition(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// NotFound wraps ErrNotFound naming the missing entity.
func NotFound(entity string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, entity)
}

// FromDB translates driver errors into sentinels. No rows becomes ErrNotFound.
// Unique (23505) and foreign key (23503) violations become ErrConflict.
func FromDB(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound(entity)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return Conflict("%s already exists", entity)
		case "23503":
			return Conflict("%s is still referenced", entity)
		}
	}
	return err
}
