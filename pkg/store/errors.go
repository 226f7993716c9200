package store

import "errors"

var (
	// ErrDuplicateLocID is returned when a scope would hold two records with
	// the same loc_id.
	ErrDuplicateLocID = errors.New("duplicate loc_id in scope")
	// ErrEmptyScope is returned when a scope has no valid geometry records.
	ErrEmptyScope = errors.New("scope has no valid geometry records")
)
