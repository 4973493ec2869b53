// internal/api/handler/health.go
package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// ServiceName is reported by the health check.
const ServiceName = "balance-ledger"

// Health reports liveness and the configured store backend.
// GET /health
func Health(backend string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(logger, w, http.StatusOK, HealthResponse{
			Status:    "OK",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Service:   ServiceName,
			Backend:   backend,
		})
	}
}
