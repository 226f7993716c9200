package locid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLocID is the umbrella error for every rejected identifier.
	ErrInvalidLocID = errors.New("invalid loc_id")
	// ErrSeparator indicates an empty, leading, trailing or doubled '-'.
	ErrSeparator = errors.New("malformed separator")
	// ErrUnregisteredPrefix indicates a country prefix that is neither ISO 3166
	// alpha-3, a water prefix, a registered exception nor a global entity root.
	ErrUnregisteredPrefix = errors.New("unregistered country prefix")
	// ErrCasing indicates lowercase characters in an identifier.
	ErrCasing = errors.New("inconsistent casing")
	// ErrSegment indicates a segment with characters outside [A-Z0-9_] or
	// a numeric segment that breaks its country's formatting rule.
	ErrSegment = errors.New("malformed segment")
)

// InvalidError describes why an identifier was rejected.
// It matches both ErrInvalidLocID and the specific reason sentinel.
type InvalidError struct {
	ID     string
	Reason error
	Detail string
}

func (e *InvalidError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid loc_id %q: %v: %s", e.ID, e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid loc_id %q: %v", e.ID, e.Reason)
}

func (e *InvalidError) Is(target error) bool {
	return target == ErrInvalidLocID || target == e.Reason
}

func (e *InvalidError) Unwrap() error { return e.Reason }

func invalid(id string, reason error, detail string) error {
	return &InvalidError{ID: id, Reason: reason, Detail: detail}
}
