package state

import "errors"

// Domain errors for the state package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, state.ErrInvalidName) {
//	    // reject the write
//	}
var (
	// ErrInvalidName is returned when a state name is not "domain.entity".
	ErrInvalidName = errors.New("state: invalid entity name")

	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("state: not found")

	// ErrBusy is returned when the database stayed locked by another
	// writer for every save attempt.
	ErrBusy = errors.New("state: database busy")
)
