package main

import (
	"log/slog"
	"net/http"

	"calibra/internal/database"
)

// healthHandler reports service and database health
func healthHandler(db *database.Database, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte(`{"status":"unhealthy","database":"error"}`)); err != nil {
				slog.Error("Failed to write health check response", "error", err)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"healthy","version":"` + version + `"}`)); err != nil {
			slog.Error("Failed to write health check response", "error", err)
		}
	}
}
