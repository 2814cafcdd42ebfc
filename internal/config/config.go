// Package config handles configuration loading for the BMRS client.
// It supports YAML config files with environment variable overrides and an
// INI credentials file for the API key.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seenimoa/bmrs/internal/planner"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "BMRS"

// Config represents the complete application configuration.
type Config struct {
	BMRS    BMRSConfig    `mapstructure:"bmrs"    yaml:"bmrs"`
	Planner PlannerConfig `mapstructure:"planner" yaml:"planner"`
	Sinks   SinksConfig   `mapstructure:"sinks"   yaml:"sinks"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// BMRSConfig holds upstream API settings.
type BMRSConfig struct {
	APIKey          string  `mapstructure:"api_key"          yaml:"api_key"`
	BaseURL         string  `mapstructure:"base_url"         yaml:"base_url"`
	APIVersion      string  `mapstructure:"api_version"      yaml:"api_version"`
	TimeoutSec      int     `mapstructure:"timeout_sec"      yaml:"timeout_sec"`
	RateLimit       float64 `mapstructure:"rate_limit"       yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst           int     `mapstructure:"burst"            yaml:"burst"`
	Concurrency     int     `mapstructure:"concurrency"      yaml:"concurrency"`
	CredentialsFile string  `mapstructure:"credentials_file" yaml:"credentials_file"`
	Profile         string  `mapstructure:"profile"          yaml:"profile"`
}

// Timeout returns the HTTP timeout as a duration.
func (c BMRSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// PlannerConfig holds the maximum span of one request window per style.
type PlannerConfig struct {
	DateRangeDays int `mapstructure:"date_range_days" yaml:"date_range_days"`
	YearMonths    int `mapstructure:"year_months"     yaml:"year_months"`
	YearWeeks     int `mapstructure:"year_weeks"      yaml:"year_weeks"`
	Years         int `mapstructure:"years"           yaml:"years"`
	TimeRangeDays int `mapstructure:"time_range_days" yaml:"time_range_days"`
}

// Caps converts the settings into planner caps.
func (c PlannerConfig) Caps() planner.Caps {
	return planner.CapsFromDays(c.DateRangeDays, c.YearMonths, c.YearWeeks, c.Years, c.TimeRangeDays)
}

// SinksConfig holds output destination settings.
type SinksConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	S3       S3Config       `mapstructure:"s3"       yaml:"s3"`
}

// PostgresConfig holds the PostgreSQL sink settings.
type PostgresConfig struct {
	DSN    string `mapstructure:"dsn"    yaml:"dsn"`
	Schema string `mapstructure:"schema" yaml:"schema"`
}

// S3Config holds the S3 sink settings.
type S3Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Region string `mapstructure:"region" yaml:"region"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.bmrs/config.yaml (home directory)
//  3. /etc/bmrs/config.yaml (system)
//
// Environment variables override config file values.
// Format: BMRS_<SECTION>_<KEY>, e.g., BMRS_BMRS_RATE_LIMIT
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".bmrs"))
	v.AddConfigPath("/etc/bmrs")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bmrs.base_url", "https://api.bmreports.com/BMRS")
	v.SetDefault("bmrs.api_version", "v1")
	v.SetDefault("bmrs.timeout_sec", 30)
	v.SetDefault("bmrs.rate_limit", 5.0)
	v.SetDefault("bmrs.burst", 1)
	v.SetDefault("bmrs.concurrency", 1) // sequential
	v.SetDefault("bmrs.credentials_file", filepath.Join(homeDir(), ".bmrs", "credentials"))
	v.SetDefault("bmrs.profile", "default")

	v.SetDefault("planner.date_range_days", 1)
	v.SetDefault("planner.year_months", 1)
	v.SetDefault("planner.year_weeks", 1)
	v.SetDefault("planner.years", 1)
	v.SetDefault("planner.time_range_days", 31)

	v.SetDefault("sinks.postgres.schema", "public")
	v.SetDefault("sinks.s3.region", "eu-west-2")
	v.SetDefault("sinks.s3.prefix", "bmrs")

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("BMRS_API_KEY"); key != "" {
		cfg.BMRS.APIKey = key
	}
	if dsn := os.Getenv("BMRS_POSTGRES_DSN"); dsn != "" {
		cfg.Sinks.Postgres.DSN = dsn
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
