package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"calibra/internal/service"
)

// respondWithServiceError maps the service error taxonomy to HTTP status
// codes. A missing resource and a cross-tenant resource produce identical
// responses. Unmatched errors are logged and reported as internal.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Insufficient permissions")
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidArgument):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Unhandled service error", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
