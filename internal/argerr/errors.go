// Package argerr defines the error kinds surfaced by the ArgusDB engine:
// IoError, CorruptFormat, SchemaConflict, NotFound, DuplicateId, and
// QueryError. Every subsystem (wal, jstable, lsm, query, engine) wraps
// failures in an *Error of one of these kinds so callers can branch on
// the Kind field (or Is) rather than string-matching messages.
package argerr

import "fmt"

type Kind string

const (
	IoError        Kind = "IoError"
	CorruptFormat  Kind = "CorruptFormat"
	SchemaConflict Kind = "SchemaConflict"
	NotFound       Kind = "NotFound"
	DuplicateId    Kind = "DuplicateId"
	QueryError     Kind = "QueryError"
)

// Error is the concrete error type returned across package boundaries.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err (or any error it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok && ae.Kind == k {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
