package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for pairlink-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (database password, oracle API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Scoring oracle configuration
	Oracle OracleConfig `yaml:"oracle"`

	// Scoring pipeline tuning
	Scoring ScoringConfig `yaml:"scoring"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"pairlink"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"pairlink_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// OracleConfig holds scoring oracle (LLM) configuration.
// Provider selects the client implementation: "openai" (any OpenAI-compatible
// endpoint) or "anthropic".
type OracleConfig struct {
	Provider string `yaml:"provider" env:"ORACLE_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"ORACLE_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"ORACLE_MODEL" env-default:"gpt-4o-mini"`
	APIKey   string `yaml:"-" env:"ORACLE_API_KEY"` // Secret - not in YAML

	// TimeoutSeconds bounds a single analysis call. A timed-out call is
	// treated the same as an oracle failure and falls back to the default
	// analysis.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"ORACLE_TIMEOUT_SECONDS" env-default:"30"`
}

// ScoringConfig holds tuning for the scoring orchestration.
type ScoringConfig struct {
	// ClaimExpirySeconds is how long a scoring claim is honored before
	// another submission may re-claim a session stuck in the transient
	// scoring state (e.g., after a process crash mid-scoring).
	ClaimExpirySeconds int `yaml:"claim_expiry_seconds" env:"SCORING_CLAIM_EXPIRY_SECONDS" env-default:"60"`
}

// Timeout returns the oracle call timeout as a duration.
func (c *OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ClaimExpiry returns the scoring claim expiry window as a duration.
func (c *ScoringConfig) ClaimExpiry() time.Duration {
	return time.Duration(c.ClaimExpirySeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable overrides.
// If config.yaml does not exist, configuration comes from environment variables
// alone. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Oracle.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		return fmt.Errorf("oracle timeout must be positive, got %d", c.Oracle.TimeoutSeconds)
	}
	if c.Scoring.ClaimExpirySeconds <= 0 {
		return fmt.Errorf("scoring claim expiry must be positive, got %d", c.Scoring.ClaimExpirySeconds)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
