// Package config loads process configuration from the environment (and an
// optional .env / config.env file) through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"stockflow/internal/core/security"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config groups every section of the configuration.
type Config struct {
	App         AppConfig
	HTTP        HTTPConfig
	Storage     StorageConfig
	Auth        AuthConfig
	Outbox      OutboxConfig
	Kafka       KafkaConfig
	Telemetry   TelemetryConfig
	Idempotency IdempotencyConfig
}

type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// IsProduction reports whether the process runs in production.
func (c AppConfig) IsProduction() bool { return c.Env == "production" }

type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StorageConfig struct {
	Driver           string // postgres or memory
	DSN              string
	MaxConns         int
	MinConns         int
	StatementTimeout time.Duration
	Migrate          bool
}

type AuthConfig struct {
	JWTSecret      string
	Issuer         string
	TokenTTL       time.Duration
	PolicyExpr     string
	AllowAnonymous bool
}

type OutboxConfig struct {
	Enabled      bool
	BatchSize    int
	MaxRetries   int
	PollInterval time.Duration
	Retention    time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// Load reads the configuration. Environment variables win over file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		HTTP: HTTPConfig{
			Host:            v.GetString("HTTP_HOST"),
			Port:            v.GetInt("HTTP_PORT"),
			ReadTimeout:     v.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("HTTP_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("HTTP_IDLE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("HTTP_SHUTDOWN_TIMEOUT"),
		},
		Storage: StorageConfig{
			Driver:           strings.ToLower(v.GetString("STORAGE_DRIVER")),
			DSN:              v.GetString("DATABASE_URL"),
			MaxConns:         v.GetInt("DB_MAX_CONNS"),
			MinConns:         v.GetInt("DB_MIN_CONNS"),
			StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
			Migrate:          v.GetBool("DB_MIGRATE"),
		},
		Auth: AuthConfig{
			JWTSecret:      v.GetString("JWT_SECRET"),
			Issuer:         v.GetString("JWT_ISSUER"),
			TokenTTL:       v.GetDuration("JWT_TTL"),
			PolicyExpr:     v.GetString("TRANSITION_POLICY"),
			AllowAnonymous: v.GetBool("AUTH_ALLOW_ANONYMOUS"),
		},
		Outbox: OutboxConfig{
			Enabled:      v.GetBool("OUTBOX_ENABLED"),
			BatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
			MaxRetries:   v.GetInt("OUTBOX_MAX_RETRIES"),
			PollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
			Retention:    v.GetDuration("OUTBOX_RETENTION"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("OTEL_ENABLED"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		},
		Idempotency: IdempotencyConfig{
			Enabled: v.GetBool("IDEMPOTENCY_ENABLED"),
			TTL:     v.GetDuration("IDEMPOTENCY_TTL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "stockflow")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("HTTP_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("HTTP_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second)

	v.SetDefault("STORAGE_DRIVER", DriverPostgres)
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_STATEMENT_TIMEOUT", 30*time.Second)
	v.SetDefault("DB_MIGRATE", true)

	v.SetDefault("JWT_ISSUER", "stockflow")
	v.SetDefault("JWT_TTL", time.Hour)
	v.SetDefault("TRANSITION_POLICY", security.DefaultTransitionPolicy)
	v.SetDefault("AUTH_ALLOW_ANONYMOUS", false)

	v.SetDefault("OUTBOX_ENABLED", true)
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("OUTBOX_MAX_RETRIES", 5)
	v.SetDefault("OUTBOX_POLL_INTERVAL", 2*time.Second)
	v.SetDefault("OUTBOX_RETENTION", 7*24*time.Hour)

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "stockflow.events")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("OTEL_SERVICE_NAME", "stockflow")

	v.SetDefault("IDEMPOTENCY_ENABLED", false)
	v.SetDefault("IDEMPOTENCY_TTL", 24*time.Hour)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverMemory:
		if c.Idempotency.Enabled {
			errs = append(errs, errors.New("idempotency keys require the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port %d", c.HTTP.Port))
	}
	if c.Auth.JWTSecret == "" && c.App.IsProduction() {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.Auth.AllowAnonymous && c.App.IsProduction() {
		errs = append(errs, errors.New("anonymous access is not allowed in production"))
	}
	if _, err := security.NewCELPolicy(c.Auth.PolicyExpr); err != nil {
		errs = append(errs, err)
	}
	if c.Outbox.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when the outbox relay is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
