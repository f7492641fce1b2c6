// Package errs holds the error kinds shared by the stores and services.
// Callers match kinds with errors.Is.
package errs

import (
	"github.com/pkg/errors"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConflict            = errors.New("conflict")
)

func NotFound(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

func Validation(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

type upstreamError struct {
	op    string
	cause error
}

func (e *upstreamError) Error() string {
	return e.op + ": " + ErrUpstreamUnavailable.Error() + ": " + e.cause.Error()
}

func (e *upstreamError) Unwrap() error { return e.cause }

func (e *upstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// Upstream marks err as a failure of a backing store or remote dependency.
// Errors that already carry a kind are returned unchanged.
func Upstream(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrUpstreamUnavailable) {
		return err
	}
	return errors.WithStack(&upstreamError{op: op, cause: err})
}
