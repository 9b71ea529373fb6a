package repository

import (
	"errors"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible to
	// the requesting account. The two cases are deliberately
	// indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the current state of a row disallows the
	// requested mutation, including losing a race to close a session.
	ErrConflict = errors.New("conflict with current state")
)
