// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"balance-ledger/internal/api/handler"
	"balance-ledger/internal/metrics"
)

// RouterConfig carries the settings the router needs besides its handlers.
type RouterConfig struct {
	Backend            string
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration // zero means handler.DefaultTimeout
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(ledgerHandler *handler.LedgerHandler, m *metrics.Metrics, cfg RouterConfig, logger *slog.Logger) http.Handler {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = handler.DefaultTimeout
	}

	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(requestTimeout))         // Bound every request
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", handler.IdempotencyKeyHeader, middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(HTTPMetrics(m))

	r.Get("/health", handler.Health(cfg.Backend, logger))
	r.Handle("/metrics", m.Handler())

	r.Get("/balance/{userId}", ledgerHandler.GetBalance)

	r.Post("/transaction", ledgerHandler.ProcessTransaction)
	r.Get("/transaction/{idempotentKey}", ledgerHandler.GetTransaction)

	return r
}
