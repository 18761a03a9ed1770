package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/segyhp/loan-workflow/internal/eligibility"
	"github.com/segyhp/loan-workflow/pkg/logger"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application.
// Keys are flat environment names; the sections only group them.
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port            string `mapstructure:"SERVER_PORT"`
	Host            string `mapstructure:"SERVER_HOST"`
	Env             string `mapstructure:"ENV"`
	ReadTimeout     string `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout    string `mapstructure:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout string `mapstructure:"SERVER_SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"STORAGE_DRIVER"`
	URL             string `mapstructure:"DATABASE_URL"`
	Host            string `mapstructure:"DATABASE_HOST"`
	Port            string `mapstructure:"DATABASE_PORT"`
	Name            string `mapstructure:"DATABASE_NAME"`
	User            string `mapstructure:"DATABASE_USER"`
	Password        string `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string `mapstructure:"DATABASE_SSLMODE"`
	MigrationsDir   string `mapstructure:"DATABASE_MIGRATIONS_DIR"`
	AutoMigrate     bool   `mapstructure:"DATABASE_AUTO_MIGRATE"`
	MaxOpenConns    int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime string `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Enabled      bool   `mapstructure:"REDIS_ENABLED"`
	URL          string `mapstructure:"REDIS_URL"`
	Host         string `mapstructure:"REDIS_HOST"`
	Port         string `mapstructure:"REDIS_PORT"`
	Password     string `mapstructure:"REDIS_PASSWORD"`
	DB           int    `mapstructure:"REDIS_DB"`
	BlacklistTTL string `mapstructure:"REDIS_BLACKLIST_TTL"`
}

type SchedulerConfig struct {
	Spec     string `mapstructure:"SCHEDULER_SPEC"`
	Timezone string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	AnnualInterestRate string `mapstructure:"ANNUAL_INTEREST_RATE"`
	MinLoanAmount      string `mapstructure:"MIN_LOAN_AMOUNT"`
	MaxLoanAmount      string `mapstructure:"MAX_LOAN_AMOUNT"`
	MinTermMonths      int    `mapstructure:"MIN_TERM_MONTHS"`
	MaxTermMonths      int    `mapstructure:"MAX_TERM_MONTHS"`
	MaxDebtToIncome    string `mapstructure:"MAX_DEBT_TO_INCOME"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":             "8080",
	"SERVER_HOST":             "0.0.0.0",
	"ENV":                     "development",
	"SERVER_READ_TIMEOUT":     "15s",
	"SERVER_WRITE_TIMEOUT":    "15s",
	"SERVER_SHUTDOWN_TIMEOUT": "30s",

	"STORAGE_DRIVER":             DriverPostgres,
	"DATABASE_URL":               "",
	"DATABASE_HOST":              "localhost",
	"DATABASE_PORT":              "5432",
	"DATABASE_NAME":              "loan_workflow",
	"DATABASE_USER":              "postgres",
	"DATABASE_PASSWORD":          "",
	"DATABASE_SSLMODE":           "disable",
	"DATABASE_MIGRATIONS_DIR":    "migrations",
	"DATABASE_AUTO_MIGRATE":      true,
	"DATABASE_MAX_OPEN_CONNS":    25,
	"DATABASE_MAX_IDLE_CONNS":    5,
	"DATABASE_CONN_MAX_LIFETIME": "5m",

	"REDIS_ENABLED":       false,
	"REDIS_URL":           "",
	"REDIS_HOST":          "localhost",
	"REDIS_PORT":          "6379",
	"REDIS_PASSWORD":      "",
	"REDIS_DB":            0,
	"REDIS_BLACKLIST_TTL": "10m",

	"SCHEDULER_SPEC":     "@every 1h",
	"SCHEDULER_TIMEZONE": "UTC",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "",

	"ANNUAL_INTEREST_RATE": "0.12",
	"MIN_LOAN_AMOUNT":      "1000000",
	"MAX_LOAN_AMOUNT":      "2000000000",
	"MIN_TERM_MONTHS":      3,
	"MAX_TERM_MONTHS":      60,
	"MAX_DEBT_TO_INCOME":   "0.33",

	"HEALTH_CHECK_TIMEOUT": "5s",
}

// Load reads configuration from .env, an optional config.yaml and the environment.
// Environment variables win over the file, the file wins over defaults.
func Load() (*Config, error) {
	// .env is optional; variables already set in the environment are kept
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unable to read .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case DriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORAGE_DRIVER %q is not allowed in production", DriverMemory)
		}
	case DriverPostgres:
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
			return fmt.Errorf("DATABASE_URL or DATABASE_HOST and DATABASE_NAME are required for the postgres driver")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Database.Driver)
	}

	durations := map[string]string{
		"SERVER_READ_TIMEOUT":        c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":       c.Server.WriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT":    c.Server.ShutdownTimeout,
		"DATABASE_CONN_MAX_LIFETIME": c.Database.ConnMaxLifetime,
		"REDIS_BLACKLIST_TTL":        c.Redis.BlacklistTTL,
		"HEALTH_CHECK_TIMEOUT":       c.Health.Timeout,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", key, err)
		}
	}

	if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
		return fmt.Errorf("SCHEDULER_SPEC must be a valid cron spec: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	decimals := map[string]string{
		"ANNUAL_INTEREST_RATE": c.Business.AnnualInterestRate,
		"MIN_LOAN_AMOUNT":      c.Business.MinLoanAmount,
		"MAX_LOAN_AMOUNT":      c.Business.MaxLoanAmount,
		"MAX_DEBT_TO_INCOME":   c.Business.MaxDebtToIncome,
	}
	for key, value := range decimals {
		if _, err := decimal.NewFromString(value); err != nil {
			return fmt.Errorf("%s must be a valid decimal: %w", key, err)
		}
	}

	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("business rules: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// LogOptions returns the logger settings. Without LOG_FORMAT, development logs
// as text and every other environment as JSON.
func (c *Config) LogOptions() logger.Options {
	format := c.Logging.Format
	if format == "" {
		format = "json"
		if c.IsDevelopment() {
			format = "text"
		}
	}
	return logger.Options{Level: c.Logging.Level, Format: format}
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// DSN returns DATABASE_URL, or a postgres URL assembled from the parts
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	if c.Database.Password != "" {
		u.User = url.UserPassword(c.Database.User, c.Database.Password)
	} else {
		u.User = url.User(c.Database.User)
	}
	return u.String()
}

// RedisOptions builds client options from REDIS_URL or the parts
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.Redis.URL != "" {
		return redis.ParseURL(c.Redis.URL)
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(c.Redis.Host, c.Redis.Port),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}, nil
}

// Policy returns the eligibility thresholds. Call after Validate.
func (c *Config) Policy() eligibility.Policy {
	return eligibility.Policy{
		AnnualRate:      parseDecimal(c.Business.AnnualInterestRate),
		MinAmount:       parseDecimal(c.Business.MinLoanAmount),
		MaxAmount:       parseDecimal(c.Business.MaxLoanAmount),
		MinTermMonths:   c.Business.MinTermMonths,
		MaxTermMonths:   c.Business.MaxTermMonths,
		MaxDebtToIncome: parseDecimal(c.Business.MaxDebtToIncome),
	}
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// GetReadTimeout returns the server read timeout as duration
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout)
}

// GetWriteTimeout returns the server write timeout as duration
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout)
}

// GetShutdownTimeout returns the graceful shutdown window as duration
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout)
}

// GetConnMaxLifetime returns the pool connection lifetime as duration
func (c *Config) GetConnMaxLifetime() time.Duration {
	return parseDuration(c.Database.ConnMaxLifetime)
}

// GetBlacklistTTL returns the blacklist cache TTL as duration
func (c *Config) GetBlacklistTTL() time.Duration {
	return parseDuration(c.Redis.BlacklistTTL)
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	return parseDuration(c.Health.Timeout)
}

// GetSchedulerLocation returns the scheduler time zone
func (c *Config) GetSchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
