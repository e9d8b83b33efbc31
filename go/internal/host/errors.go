package host

import "errors"

var (
	// ErrNotActioner rejects an intent from a seat outside the active
	// actor class.
	ErrNotActioner = errors.New("seat is not the active actioner")

	// ErrUnknownSeat rejects an intent from a seat missing from the roster
	// or already dead.
	ErrUnknownSeat = errors.New("unknown or dead seat")

	// ErrSchemaMismatch rejects an intent whose kind or payload does not
	// fit the active schema.
	ErrSchemaMismatch = errors.New("intent does not match the active schema")

	// ErrDisabledIntent marks an intent emitted from a visually disabled
	// control. It is journaled for observability but never mutates state.
	ErrDisabledIntent = errors.New("intent emitted from disabled control")

	// ErrNoActiveTurn rejects intents while no action cursor is open.
	ErrNoActiveTurn = errors.New("no active turn")
)
