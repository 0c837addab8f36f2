package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environments the toolkit may target.
const (
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// Config holds all configuration for a toolkit run.
type Config struct {
	Environment string         `yaml:"-"`
	Database    DatabaseConfig `yaml:"database"`
	Backout     BackoutConfig  `yaml:"backout"`
}

// DatabaseConfig holds Postgres connection settings. Credentials come from
// PG_* environment variables (optionally via .env.<environment>); the yaml
// file only carries non-secret defaults.
type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Name           string `yaml:"-"`
	User           string `yaml:"-"`
	Password       string `yaml:"-"`
	SSLMode        string `yaml:"sslmode"`
	ConnectTimeout int    `yaml:"connect_timeout_seconds"`
}

// BackoutConfig controls where generated backout scripts land.
type BackoutConfig struct {
	Dir string `yaml:"dir"`
}

// DSN assembles the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.ConnectTimeout)
}

// Timeout returns the connect timeout as a duration.
func (c DatabaseConfig) Timeout() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// ValidEnvironment reports whether env names a known target.
func ValidEnvironment(env string) bool {
	return env == EnvStaging || env == EnvProd
}

// Load reads the optional yaml file at path (a missing file is fine) and
// applies environment-dependent defaults.
func Load(path, environment string) (*Config, error) {
	cfg := &Config{Environment: environment}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// Defaults
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		if environment == EnvProd {
			cfg.Database.SSLMode = "require"
		} else {
			cfg.Database.SSLMode = "disable"
		}
	}
	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = 10
	}
	if cfg.Backout.Dir == "" {
		cfg.Backout.Dir = "."
	}

	return cfg, nil
}

// LoadFromEnv loads configuration for the named environment. It reads
// .env.<environment> first (if present) so secrets can live there locally,
// then overrides from real environment variables.
func LoadFromEnv(path, environment string) (*Config, error) {
	if !ValidEnvironment(environment) {
		return nil, fmt.Errorf("unknown environment %q (want %s or %s)", environment, EnvStaging, EnvProd)
	}

	// Load .env.<environment> if it exists (no error if missing)
	_ = godotenv.Load(".env." + environment)

	cfg, err := Load(path, environment)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PG_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PG_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err != nil || port <= 0 {
			return nil, fmt.Errorf("invalid PG_PORT %q", v)
		}
		cfg.Database.Port = port
	}
	if v := os.Getenv("PG_DBNAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PG_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PG_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PG_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("BACKOUT_DIR"); v != "" {
		cfg.Backout.Dir = v
	}

	if cfg.Database.Name == "" {
		return nil, fmt.Errorf("PG_DBNAME is required (set it in .env.%s or the environment)", environment)
	}
	if cfg.Database.User == "" {
		return nil, fmt.Errorf("PG_USER is required (set it in .env.%s or the environment)", environment)
	}

	return cfg, nil
}
