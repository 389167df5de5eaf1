package core

import (
	"context"
	"errors"
	"fmt"

	"order-engine/internal/schema"
)

// Kind is the machine-readable classification callers receive alongside the
// error message. NotFound, Validation and Schema abort with rollback and
// surface verbatim; Transient may be retried once by the caller.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation_error"
	KindSchema     Kind = "schema_error"
	KindTimeout    Kind = "concurrency_timeout"
	KindTransient  Kind = "transient_db_error"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func notFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func schemaErr(err error, format string, args ...any) error {
	return &Error{Kind: KindSchema, Message: fmt.Sprintf(format, args...), Err: err}
}

// dbErr classifies a failed database call. A deadline hit anywhere in the
// transaction is a ConcurrencyTimeout; everything else is transient.
func dbErr(ctx context.Context, err error, format string, args ...any) error {
	kind := KindTransient
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the classification from any error returned by this
// package. Unclassified errors report as transient.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var mr *schema.MissingRoleError
	if errors.As(err, &mr) {
		return KindSchema
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransient
}
