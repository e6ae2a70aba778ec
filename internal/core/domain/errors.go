package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation                 = errors.New("validation error")
	ErrNotFound                   = errors.New("not found")
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
	ErrStorageWriteFailure        = errors.New("storage write failure")
	ErrPersistenceFailure         = errors.New("persistence failure")
	ErrFatalStartup               = errors.New("fatal startup failure")
	ErrTemporary                  = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ErrorKind is the stable, machine-readable name of a failure class.
type ErrorKind string

const (
	KindNone                       ErrorKind = ""
	KindValidation                 ErrorKind = "ValidationError"
	KindExternalServiceUnavailable ErrorKind = "ExternalServiceUnavailable"
	KindStorageWriteFailure        ErrorKind = "StorageWriteFailure"
	KindPersistenceFailure         ErrorKind = "PersistenceFailure"
	KindFatalStartup               ErrorKind = "FatalStartupFailure"
	KindInternal                   ErrorKind = "InternalError"
)

// KindOf maps an error chain onto the taxonomy. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case IsKind(err, ErrValidation):
		return KindValidation
	case IsKind(err, ErrExternalServiceUnavailable):
		return KindExternalServiceUnavailable
	case IsKind(err, ErrStorageWriteFailure):
		return KindStorageWriteFailure
	case IsKind(err, ErrPersistenceFailure):
		return KindPersistenceFailure
	case IsKind(err, ErrFatalStartup):
		return KindFatalStartup
	default:
		return KindInternal
	}
}
