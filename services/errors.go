package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrorKind classifies failures so callers can show a specific message.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindAuthorization    ErrorKind = "authorization"
	KindConflict         ErrorKind = "conflict"
	KindStoreUnavailable ErrorKind = "store_unavailable"
)

// Sentinels for errors.Is checks.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrForbidden        = &Error{Kind: KindAuthorization}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
)

// Error is the service-level error carrying a kind, the failing operation and a user-facing message.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the caller may safely retry the whole operation.
func (e *Error) Retryable() bool {
	return e.Kind == KindConflict || e.Kind == KindStoreUnavailable
}

// KindOf returns the kind of err, or "" when err is not a service error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Message returns the user-facing message of a service error.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Msg != "" {
		return se.Msg
	}
	return "internal error"
}

func validationErr(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func notFoundErr(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

func forbiddenErr(op, msg string) error {
	return &Error{Kind: KindAuthorization, Op: op, Msg: msg}
}

func conflictErr(op, msg string, cause error) error {
	return &Error{Kind: KindConflict, Op: op, Msg: msg, Err: cause}
}

// storeErr classifies a persistence failure. Service errors pass through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindStoreUnavailable, Op: op, Msg: "request cancelled before the store answered", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return conflictErr(op, "concurrent update, retry the request", err)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflictErr(op, "concurrent update, retry the request", err)
	}
	return &Error{Kind: KindStoreUnavailable, Op: op, Msg: "store unavailable, retry later", Err: err}
}
