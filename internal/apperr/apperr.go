// Package apperr defines the typed failures the game core returns to its
// callers. Every mutating operation is deterministic given current state,
// so none of these are retryable without a state change.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Validation: malformed or missing input (bad coordinates, missing
	// custom distance). The request itself is wrong.
	Validation Kind = iota
	// Conflict: a state-machine precondition is violated (question already
	// in flight, slot spent, insufficient travel). Retry after fixing state.
	Conflict
	// NotAvailable: valid in principle but not reachable yet (preview
	// before the question is answerable). Distinct from Conflict so clients
	// can tell "try later" from "never".
	NotAvailable
	// Authorization: the caller's role does not permit the operation.
	Authorization
	// NotFound: the referenced game, player, or question does not exist.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case NotAvailable:
		return "not_available"
	case Authorization:
		return "authorization"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: Validation, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Msg: fmt.Sprintf(format, args...)}
}

func NotAvailablef(format string, args ...any) *Error {
	return &Error{Kind: NotAvailable, Msg: fmt.Sprintf(format, args...)}
}

func Authorizationf(format string, args ...any) *Error {
	return &Error{Kind: Authorization, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, unwrapping as needed.
// Returns false if err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
