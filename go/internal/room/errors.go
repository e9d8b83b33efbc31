package room

import "errors"

var (
	// ErrNoSchema means a press arrived while no action schema is active.
	ErrNoSchema = errors.New("no active action schema")

	// ErrInvalidIntent marks a UX-level pre-check failure. The intent is
	// still constructed but is dropped before dispatch; the host remains
	// the final authority on legality.
	ErrInvalidIntent = errors.New("intent does not fit the active schema")
)
