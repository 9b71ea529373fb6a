package service

import (
	"errors"

	"calibra/internal/repository"
)

// Service-level error taxonomy. Handlers map these to HTTP status codes
// with errors.Is; anything unmatched is an internal error. The repository
// sentinels are re-exported so callers only need this package.
var (
	ErrNotFound        = repository.ErrNotFound
	ErrConflict        = repository.ErrConflict
	ErrUnauthorized    = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")
	ErrInvalidArgument = errors.New("invalid argument")
)
