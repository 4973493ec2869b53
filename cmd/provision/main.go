// cmd/provision/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	app "balance-ledger/internal"
)

// Creates the store schema and seeds the demo users, then exits.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		application.Logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer func() { _ = application.Shutdown(context.Background()) }()

	if !application.Config.AutoProvision {
		if err := application.ProvisionStore(ctx); err != nil {
			application.Logger.Error("Provisioning failed", "error", err)
			os.Exit(1)
		}
	}
	if !application.Config.SeedDemoData {
		if err := application.SeedDemoData(ctx); err != nil {
			application.Logger.Error("Seeding failed", "error", err)
			os.Exit(1)
		}
	}

	application.Logger.Info("Provisioning completed.")
}
