// pkg/mysql/client.go
package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the MySQL connection and pool settings.
type Config struct {
	// DSN format: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=UTC
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectRetries  int           `yaml:"connect_retries"`
	LogLevel        string        `yaml:"log_level"` // silent, error, warn, info
}

// Client wraps a gorm DB handle.
type Client struct {
	db *gorm.DB
}

// NewClient opens the connection, retrying while the server comes up, and configures the pool.
func NewClient(cfg Config) (*Client, error) {
	gormConfig := &gorm.Config{
		// Writes that need a transaction open one explicitly.
		SkipDefaultTransaction: true,
		Logger:                 newLogger(cfg.LogLevel),
	}

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}
	retryInterval := 2 * time.Second

	var db *gorm.DB
	var err error
	for i := 0; i < retries; i++ {
		db, err = gorm.Open(mysql.Open(cfg.DSN), gormConfig)
		if err == nil {
			err = ping(db)
			if err == nil {
				break
			}
		}
		if i < retries-1 {
			slog.Warn("Failed to connect to MySQL, retrying", "attempt", i+1, "max_attempts", retries, "error", err)
			time.Sleep(retryInterval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql after %d attempts: %w", retries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Client{db: db}, nil
}

func ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// DB returns the underlying gorm handle.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// AutoMigrate creates or alters the tables backing the given models.
func (c *Client) AutoMigrate(ctx context.Context, models ...interface{}) error {
	if err := c.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to auto-migrate mysql schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "silent":
		logLevel = logger.Silent
	default:
		logLevel = logger.Error
	}
	return logger.Default.LogMode(logLevel)
}
