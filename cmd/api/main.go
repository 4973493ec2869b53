// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "balance-ledger/internal"
)

func main() {
	application := app.NewApplication()
	if err := run(application); err != nil {
		application.Logger.Error("Ledger API stopped with an error", "error", err)
		os.Exit(1)
	}
	application.Logger.Info("Application gracefully stopped.")
}

// run serves until SIGINT/SIGTERM or a listener failure, then drains in-flight requests.
func run(application *app.Application) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	timeouts := application.Config.Server
	server := &http.Server{
		Addr:         ":" + application.Config.ServerPort,
		Handler:      application.HTTPHandler,
		ReadTimeout:  timeouts.ReadTimeout,
		WriteTimeout: timeouts.WriteTimeout, // always longer than the request timeout
		IdleTimeout:  timeouts.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		application.Logger.Info("Starting HTTP server",
			"port", application.Config.ServerPort,
			"request_timeout", timeouts.RequestTimeout.String(),
			"write_timeout", timeouts.WriteTimeout.String(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
		application.Logger.Info("Shutting down HTTP server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return application.Shutdown(shutdownCtx)
}
