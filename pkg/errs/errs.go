// Package errs provides the typed error taxonomy shared by the settlement
// core, the stores and the HTTP layer.
//
// Every failure surfaced to a caller carries exactly one kind. Kinds are
// plain sentinels so callers can branch with errors.Is:
//
//	if errors.Is(err, errs.ErrForbidden) { ... }
package errs

import (
	"errors"
	"strings"
)

// Sentinel kinds.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrInternal   = errors.New("internal error")
)

// Stable machine-readable codes for each kind.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeForbidden  = "FORBIDDEN"
	CodeConflict   = "CONFLICT"
	CodeInternal   = "INTERNAL_ERROR"
)

var kinds = []error{ErrValidation, ErrNotFound, ErrForbidden, ErrConflict, ErrInternal}

// Error is an operation-tagged failure of a single kind.
type Error struct {
	// Op names the failing operation, e.g. "settlement.create_match".
	Op string
	// Kind is one of the sentinel kinds above.
	Kind error
	// Msg is a human readable, user facing explanation. Optional.
	Msg string
	// Err is the underlying cause. Optional.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	default:
		b.WriteString("unknown error")
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// E builds an error of kind with a user facing message.
func E(op string, kind error, msg string) error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// WrapKind wraps err with kind. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap tags err with op, keeping the kind already present in its chain
// or classifying it as internal when none is. A nil err yields nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, then any
// kind found by errors.Is, ErrInternal otherwise.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// Code returns the stable code for err's kind.
func Code(err error) string {
	switch KindOf(err) {
	case ErrValidation:
		return CodeValidation
	case ErrNotFound:
		return CodeNotFound
	case ErrForbidden:
		return CodeForbidden
	case ErrConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}

// Message returns the outermost user facing message in err's chain,
// falling back to the kind description.
func Message(err error) string {
	var e *Error
	cur := err
	for errors.As(cur, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err == nil {
			break
		}
		cur = e.Err
	}
	return KindOf(err).Error()
}
