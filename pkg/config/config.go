// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/adhocore/gronx"

	"github.com/bingefriend/episode-importer/pkg/logging"
)

// Config holds the full service configuration.
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	TVMaze   TVMazeConfig
	Importer ImporterConfig
	Queue    QueueConfig
	Updates  UpdatesConfig
	Logging  logging.Config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// RedisConfig holds connection settings for the queue and table store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig holds the relational sink settings.
type DatabaseConfig struct {
	// DSN is the Postgres connection string.
	DSN string
}

// TVMazeConfig holds upstream API client settings.
type TVMazeConfig struct {
	BaseURL string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RequestsPerSecond caps the client-side request rate.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size.
	Burst int
}

// ImporterConfig holds import orchestration settings.
type ImporterConfig struct {
	// BatchSize is the default catalog batch size when a continuation
	// message does not carry one.
	BatchSize int

	// CatalogTable and CatalogPartition locate the show id catalog in the
	// table store.
	CatalogTable     string
	CatalogPartition string

	// Workers is the queue consumer pool size.
	Workers int

	// MaxAttempts bounds persist retries per detail record.
	MaxAttempts int

	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration
}

// QueueConfig holds work queue settings.
type QueueConfig struct {
	// Name is the queue key.
	Name string

	// MaxDeliveries is the delivery count after which a message is
	// dead-lettered instead of requeued.
	MaxDeliveries int

	// VisibilityTimeout is how long a dequeued message may sit in the
	// processing list before the reclaimer returns it to the queue.
	VisibilityTimeout time.Duration
}

// UpdatesConfig holds the upstream updates poll settings.
type UpdatesConfig struct {
	// Enabled turns the cron trigger on.
	Enabled bool

	// Schedule is a cron expression for the poll.
	Schedule string

	// Period is the upstream update window (day, week, month).
	Period string
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		TVMaze: TVMazeConfig{
			BaseURL:           "https://api.tvmaze.com",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
			Burst:             10,
		},
		Importer: ImporterConfig{
			BatchSize:        1000,
			CatalogTable:     "showids",
			CatalogPartition: "show",
			Workers:          4,
			MaxAttempts:      3,
			InitialBackoff:   time.Second,
			MaxBackoff:       30 * time.Second,
		},
		Queue: QueueConfig{
			Name:              "episodes",
			MaxDeliveries:     5,
			VisibilityTimeout: 5 * time.Minute,
		},
		Updates: UpdatesConfig{
			Enabled:  true,
			Schedule: "0 3 * * *",
			Period:   "day",
		},
		Logging: logging.DefaultConfig(),
	}
}

// FromEnv returns the defaults overlaid with environment variables.
func FromEnv() Config {
	cfg := Default()

	cfg.Server.Addr = getEnv("HTTP_ADDR", cfg.Server.Addr)
	cfg.Server.ShutdownTimeout = parseDurationEnv("HTTP_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = parseIntEnv("REDIS_DB", cfg.Redis.DB)

	cfg.Database.DSN = getEnv("DATABASE_URL", cfg.Database.DSN)

	cfg.TVMaze.BaseURL = getEnv("TVMAZE_BASE_URL", cfg.TVMaze.BaseURL)
	cfg.TVMaze.Timeout = parseDurationEnv("TVMAZE_TIMEOUT", cfg.TVMaze.Timeout)
	cfg.TVMaze.RequestsPerSecond = parseFloatEnv("TVMAZE_RATE_LIMIT", cfg.TVMaze.RequestsPerSecond)
	cfg.TVMaze.Burst = parseIntEnv("TVMAZE_RATE_BURST", cfg.TVMaze.Burst)

	cfg.Importer.BatchSize = parseIntEnv("IMPORT_BATCH_SIZE", cfg.Importer.BatchSize)
	cfg.Importer.CatalogTable = getEnv("SHOW_IDS_TABLE", cfg.Importer.CatalogTable)
	cfg.Importer.CatalogPartition = getEnv("SHOW_IDS_PARTITION", cfg.Importer.CatalogPartition)
	cfg.Importer.Workers = parseIntEnv("IMPORT_WORKERS", cfg.Importer.Workers)
	cfg.Importer.MaxAttempts = parseIntEnv("IMPORT_MAX_ATTEMPTS", cfg.Importer.MaxAttempts)
	cfg.Importer.InitialBackoff = parseDurationEnv("IMPORT_INITIAL_BACKOFF", cfg.Importer.InitialBackoff)
	cfg.Importer.MaxBackoff = parseDurationEnv("IMPORT_MAX_BACKOFF", cfg.Importer.MaxBackoff)

	cfg.Queue.Name = getEnv("QUEUE_NAME", cfg.Queue.Name)
	cfg.Queue.MaxDeliveries = parseIntEnv("QUEUE_MAX_DELIVERIES", cfg.Queue.MaxDeliveries)
	cfg.Queue.VisibilityTimeout = parseDurationEnv("QUEUE_VISIBILITY_TIMEOUT", cfg.Queue.VisibilityTimeout)

	cfg.Updates.Enabled = parseBoolEnv("UPDATES_ENABLED", cfg.Updates.Enabled)
	cfg.Updates.Schedule = getEnv("UPDATES_SCHEDULE", cfg.Updates.Schedule)
	cfg.Updates.Period = getEnv("UPDATES_PERIOD", cfg.Updates.Period)

	cfg.Logging.Level = logging.LogLevel(getEnv("LOG_LEVEL", string(cfg.Logging.Level)))
	cfg.Logging.Pretty = parseBoolEnv("LOG_PRETTY", cfg.Logging.Pretty)

	return cfg
}

// Validate checks the configuration for values the service cannot run with.
func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.TVMaze.BaseURL == "" {
		return fmt.Errorf("TVMAZE_BASE_URL is required")
	}
	if c.Importer.BatchSize <= 0 {
		return fmt.Errorf("import batch size must be positive, got %d", c.Importer.BatchSize)
	}
	if c.Importer.CatalogTable == "" || c.Importer.CatalogPartition == "" {
		return fmt.Errorf("show id catalog table and partition are required")
	}
	if c.Importer.Workers <= 0 {
		return fmt.Errorf("import worker count must be positive, got %d", c.Importer.Workers)
	}
	if c.Importer.MaxAttempts <= 0 {
		return fmt.Errorf("import max attempts must be positive, got %d", c.Importer.MaxAttempts)
	}
	if c.Queue.MaxDeliveries <= 0 {
		return fmt.Errorf("queue max deliveries must be positive, got %d", c.Queue.MaxDeliveries)
	}
	if c.Updates.Enabled && !gronx.IsValid(c.Updates.Schedule) {
		return fmt.Errorf("invalid updates cron expression: %s", c.Updates.Schedule)
	}
	switch c.Updates.Period {
	case "day", "week", "month":
	default:
		return fmt.Errorf("updates period must be day, week, or month, got %q", c.Updates.Period)
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseIntEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func parseFloatEnv(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func parseBoolEnv(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
