// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jmoiron/sqlx"

	router "balance-ledger/internal/api"
	"balance-ledger/internal/api/handler"
	"balance-ledger/internal/config"
	"balance-ledger/internal/metrics"
	"balance-ledger/internal/repository"
	dynamorepo "balance-ledger/internal/repository/dynamo"
	"balance-ledger/internal/repository/memory"
	mysqlrepo "balance-ledger/internal/repository/mysql"
	"balance-ledger/internal/repository/postgres"
	"balance-ledger/internal/seed"
	"balance-ledger/internal/service"
	"balance-ledger/internal/util"
	"balance-ledger/pkg/db"
	"balance-ledger/pkg/dynamo"
	"balance-ledger/pkg/mysql"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config  *config.AppConfig
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Store connections; only the one matching Config.StoreBackend is set.
	Dynamo *dynamodb.Client
	DB     *sqlx.DB
	MySQL  *mysql.Client

	// Repositories
	BalanceRepository     repository.BalanceRepository
	TransactionRepository repository.TransactionRepository

	// Services
	BalanceService     service.BalanceService
	TransactionService service.TransactionService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		app.Logger = util.GetLogger()
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	app.Logger = util.InitLogger(util.LoggerOptions{Level: cfg.LogLevel, Format: cfg.LogFormat})
	app.Logger.Info("Application configuration loaded successfully.", "env", cfg.Env, "backend", cfg.StoreBackend)

	// 3. Initialize Metrics
	app.Metrics = metrics.New()

	// 4. Connect to the store and build repositories
	if err := app.connectStore(ctx); err != nil {
		return err
	}
	app.Logger.Info("Repositories initialized.", "backend", cfg.StoreBackend)

	if cfg.AutoProvision {
		if err := app.ProvisionStore(ctx); err != nil {
			return err
		}
	}

	// 5. Initialize Services
	app.BalanceService = service.NewBalanceService(app.BalanceRepository, app.Metrics, app.Logger)
	app.TransactionService = service.NewTransactionService(app.BalanceRepository, app.TransactionRepository, app.Metrics, app.Logger)
	app.Logger.Info("Services initialized.")

	if cfg.SeedDemoData {
		if err := app.SeedDemoData(ctx); err != nil {
			return err
		}
	}

	// 6. Initialize HTTP Handlers and Router
	ledgerHandler := handler.NewLedgerHandler(app.TransactionService, app.BalanceService, app.Logger)
	app.HTTPHandler = router.NewRouter(ledgerHandler, app.Metrics, router.RouterConfig{
		Backend:            cfg.StoreBackend,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout:     cfg.Server.RequestTimeout,
	}, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

func (app *Application) connectStore(ctx context.Context) error {
	cfg := app.Config

	switch cfg.StoreBackend {
	case config.BackendMemory:
		app.BalanceRepository = memory.NewBalanceRepository()
		app.TransactionRepository = memory.NewTransactionRepository()

	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.Dynamo)
		if err != nil {
			return fmt.Errorf("failed to connect to DynamoDB: %w", err)
		}
		app.Dynamo = client
		app.BalanceRepository = dynamorepo.NewBalanceRepository(client, cfg.Dynamo.BalancesTable)
		app.TransactionRepository = dynamorepo.NewTransactionRepository(client, cfg.Dynamo.TransactionsTable)
		app.Logger.Info("DynamoDB client initialized.", "region", cfg.Dynamo.Region, "endpoint", cfg.Dynamo.Endpoint)

	case config.BackendPostgres:
		database, err := db.NewPostgresDB(cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.DB = database
		app.BalanceRepository = postgres.NewBalanceRepository(database)
		app.TransactionRepository = postgres.NewTransactionRepository(database)
		app.Logger.Info("Database connection established.")

	case config.BackendMySQL:
		client, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		app.MySQL = client
		app.BalanceRepository = mysqlrepo.NewBalanceRepository(client)
		app.TransactionRepository = mysqlrepo.NewTransactionRepository(client)
		app.Logger.Info("MySQL connection established.")

	default:
		return fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	return nil
}

// ProvisionStore creates the tables the configured backend needs. It is safe to run repeatedly.
func (app *Application) ProvisionStore(ctx context.Context) error {
	switch {
	case app.Dynamo != nil:
		if err := dynamo.EnsureTables(ctx, app.Dynamo, app.Config.Dynamo, app.Logger); err != nil {
			return fmt.Errorf("failed to provision DynamoDB tables: %w", err)
		}
	case app.DB != nil:
		applied, err := db.Migrate(ctx, app.DB)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		app.Logger.Info("Migrations applied.", "applied", applied)
	case app.MySQL != nil:
		if err := mysqlrepo.Migrate(ctx, app.MySQL); err != nil {
			return err
		}
		app.Logger.Info("MySQL schema migrated.")
	default:
		app.Logger.Info("Nothing to provision for the in-memory store.")
	}
	return nil
}

// SeedDemoData credits the demo users; reruns are replays.
func (app *Application) SeedDemoData(ctx context.Context) error {
	if err := seed.Seed(ctx, app.TransactionService, seed.DemoUsers, app.Logger); err != nil {
		return fmt.Errorf("failed to seed demo data: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	if app.MySQL != nil {
		if err := app.MySQL.Close(); err != nil {
			app.Logger.Error("Failed to close MySQL connection", "error", err)
			return fmt.Errorf("failed to close MySQL connection: %w", err)
		}
		app.Logger.Info("MySQL connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
