package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller should present it
type Kind int

const (
	KindInternal Kind = iota
	KindFormat
	KindNotFound
	KindDuplicate
	KindConstraint
	KindStockInsufficient
	KindConnection
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "format"
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate"
	case KindConstraint:
		return "constraint"
	case KindStockInsufficient:
		return "stock_insufficient"
	case KindConnection:
		return "connection"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is the error type returned by validators, the gateway and the services
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

// Sentinels for errors.Is matching by kind
var (
	ErrFormat            = &Error{Kind: KindFormat}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrDuplicate         = &Error{Kind: KindDuplicate}
	ErrConstraint        = &Error{Kind: KindConstraint}
	ErrStockInsufficient = &Error{Kind: KindStockInsufficient}
	ErrConnection        = &Error{Kind: KindConnection}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInternal          = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind sentinel with the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Field == "" && t.Err == nil && t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Format(field, format string, args ...any) *Error {
	return New(KindFormat, field, format, args...)
}

func NotFound(field, format string, args ...any) *Error {
	return New(KindNotFound, field, format, args...)
}

func Duplicate(field, format string, args ...any) *Error {
	return New(KindDuplicate, field, format, args...)
}

func Constraint(field, format string, args ...any) *Error {
	return New(KindConstraint, field, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldOf returns the offending field of the first *Error in err's chain
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
