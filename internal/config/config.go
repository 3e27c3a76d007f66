package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"3004"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings (graph store backend)
	Database DatabaseConfig

	// Vector store settings
	Vector VectorConfig

	// Embeddings configuration
	Embeddings EmbeddingsConfig

	// Consistency settings
	Sync SyncConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"knowledge"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"knowledge"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// VectorConfig holds vector store settings
type VectorConfig struct {
	// Collection name for knowledge points
	Collection string `env:"VECTOR_COLLECTION" envDefault:"knowledge"`

	// Optional on-disk persistence path for the embedded store; empty = in-memory
	PersistPath string `env:"VECTOR_PERSIST_PATH" envDefault:""`
}

// EmbeddingsConfig holds embedding client settings
type EmbeddingsConfig struct {
	// Provider selects the embedding client: "local", "none"
	Provider   string `env:"EMBEDDINGS_PROVIDER" envDefault:"none"`
	Dimensions int    `env:"EMBEDDINGS_DIMENSIONS" envDefault:"768"`
}

// SyncConfig holds dual-write consistency settings
type SyncConfig struct {
	// Maximum sequential attempts for a vector upsert before the node is
	// marked pending_vector_sync
	MaxVectorAttempts int `env:"SYNC_MAX_VECTOR_ATTEMPTS" envDefault:"3"`
}

// NewConfig parses configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.String("vector_collection", cfg.Vector.Collection),
	)

	return cfg, nil
}
