package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when a requested row does not exist.
var ErrNotFound = errString("not found")

type errString string

func (e errString) Error() string { return string(e) }

// Kind classifies failures surfaced to callers.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindUpstream   Kind = "upstream"

	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindRateLimited     Kind = "rate_limited"
)

// Error is the typed failure returned by services. Op names the operation and
// OrgID the organization involved, when known.
type Error struct {
	Kind  Kind
	Op    string
	OrgID string
	Err   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.OrgID != "" {
		msg += " (org " + e.OrgID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(op, orgID string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, OrgID: orgID, Err: err}
}

func Validation(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

func Upstream(op, orgID string, err error) error {
	return &Error{Kind: KindUpstream, Op: op, OrgID: orgID, Err: err}
}

func Unauthenticated(op string, err error) error {
	return &Error{Kind: KindUnauthenticated, Op: op, Err: err}
}

func Forbidden(op string, err error) error {
	return &Error{Kind: KindForbidden, Op: op, Err: err}
}

func RateLimited(op string) error {
	return &Error{Kind: KindRateLimited, Op: op}
}

// KindOf returns the kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return ""
}

// Validationf builds a validation error from a format string.
func Validationf(op, format string, args ...any) error {
	return Validation(op, fmt.Errorf(format, args...))
}
