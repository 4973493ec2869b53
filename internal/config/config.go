// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"balance-ledger/internal/api/handler"
	"balance-ledger/pkg/db" // Import db package for its Config struct
	"balance-ledger/pkg/dynamo"
	"balance-ledger/pkg/mysql"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendMemory   = "memory"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort   string `yaml:"server_port"`
	Env          string `yaml:"env"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	StoreBackend string `yaml:"store_backend"`

	Server ServerConfig `yaml:"server"`

	Dynamo dynamo.Config `yaml:"dynamodb"`
	DB     db.Config     `yaml:"postgres"`
	MySQL  mysql.Config  `yaml:"mysql"`

	AutoProvision      bool     `yaml:"auto_provision"`
	SeedDemoData       bool     `yaml:"seed_demo_data"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// ServerConfig holds the HTTP server and per-request deadlines.
type ServerConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

// writeTimeoutMargin leaves room for the timeout middleware to write its 504 before the connection is cut.
const writeTimeoutMargin = 5 * time.Second

// Default returns the configuration used when nothing overrides it.
func Default() *AppConfig {
	return &AppConfig{
		ServerPort:   "8080",
		Env:          "development",
		LogLevel:     "info",
		LogFormat:    "json",
		StoreBackend: BackendDynamoDB,
		Server: ServerConfig{
			RequestTimeout: handler.DefaultTimeout,
			ReadTimeout:    10 * time.Second,
			IdleTimeout:    120 * time.Second,
			ShutdownGrace:  30 * time.Second,
		},
		Dynamo: dynamo.Config{
			Region:            "us-east-1",
			MaxAttempts:       3,
			BalancesTable:     "Balances",
			TransactionsTable: "Transactions",
		},
		DB: db.Config{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "password",
			DBName:   "ledgerdb",
			SSLMode:  "disable",
		},
		MySQL: mysql.Config{
			DSN:            "user:password@tcp(localhost:3306)/ledgerdb?charset=utf8mb4&parseTime=True&loc=UTC",
			MaxOpenConns:   25,
			MaxIdleConns:   10,
			ConnectRetries: 5,
			LogLevel:       "error",
		},
		CORSAllowedOrigins: []string{"*"},
	}
}

// LoadConfig builds the configuration from defaults, an optional .env file,
// an optional YAML file named by CONFIG_FILE, and finally environment variables.
func LoadConfig() (*AppConfig, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Server.deriveWriteTimeout()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	slog.Debug("Loaded config file", "path", path)
	return nil
}

func (c *AppConfig) applyEnv() error {
	setString(&c.ServerPort, "SERVER_PORT")
	setString(&c.Env, "APP_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.StoreBackend, "STORE_BACKEND")

	for key, dst := range map[string]*time.Duration{
		"REQUEST_TIMEOUT":       &c.Server.RequestTimeout,
		"SERVER_READ_TIMEOUT":   &c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":  &c.Server.WriteTimeout,
		"SERVER_IDLE_TIMEOUT":   &c.Server.IdleTimeout,
		"SERVER_SHUTDOWN_GRACE": &c.Server.ShutdownGrace,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}

	setString(&c.Dynamo.Region, "AWS_REGION")
	setString(&c.Dynamo.Endpoint, "DYNAMODB_ENDPOINT")
	setString(&c.Dynamo.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.Dynamo.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Dynamo.BalancesTable, "BALANCES_TABLE")
	setString(&c.Dynamo.TransactionsTable, "TRANSACTIONS_TABLE")
	if err := setInt(&c.Dynamo.MaxAttempts, "DYNAMODB_MAX_ATTEMPTS"); err != nil {
		return err
	}

	setString(&c.DB.Host, "DB_HOST")
	if err := setInt(&c.DB.Port, "DB_PORT"); err != nil {
		return err
	}
	setString(&c.DB.User, "DB_USER")
	setString(&c.DB.Password, "DB_PASSWORD")
	setString(&c.DB.DBName, "DB_NAME")
	setString(&c.DB.SSLMode, "DB_SSLMODE")

	setString(&c.MySQL.DSN, "MYSQL_DSN")

	if err := setBool(&c.AutoProvision, "AUTO_PROVISION"); err != nil {
		return err
	}
	if err := setBool(&c.SeedDemoData, "SEED_DEMO_DATA"); err != nil {
		return err
	}

	if v, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok {
		c.CORSAllowedOrigins = splitList(v)
	}
	return nil
}

// Validate rejects configurations the application cannot start with.
func (c *AppConfig) Validate() error {
	switch c.StoreBackend {
	case BackendDynamoDB, BackendPostgres, BackendMySQL, BackendMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: must be one of dynamodb, postgres, mysql, memory", c.StoreBackend)
	}
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT must not be empty")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.Server.WriteTimeout <= c.Server.RequestTimeout {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%s) must exceed REQUEST_TIMEOUT (%s)", c.Server.WriteTimeout, c.Server.RequestTimeout)
	}
	if c.StoreBackend == BackendDynamoDB && (c.Dynamo.BalancesTable == "" || c.Dynamo.TransactionsTable == "") {
		return fmt.Errorf("BALANCES_TABLE and TRANSACTIONS_TABLE must not be empty")
	}
	return nil
}

// deriveWriteTimeout fills an unset write timeout from the request timeout.
func (s *ServerConfig) deriveWriteTimeout() {
	if s.WriteTimeout == 0 {
		s.WriteTimeout = s.RequestTimeout + writeTimeoutMargin
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
