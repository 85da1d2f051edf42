package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string        `env:"SERVER_PORT" envDefault:"8080"`
	Env            string        `env:"SERVER_ENV" envDefault:"development"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	PublicBaseURL  string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string `env:"DB_HOST" envDefault:"localhost"`
	Port      string `env:"DB_PORT" envDefault:"8000"`
	Namespace string `env:"DB_NAMESPACE" envDefault:"atelier"`
	Database  string `env:"DB_DATABASE" envDefault:"main"`
	User      string `env:"DB_USER" envDefault:"root"`
	Password  string `env:"DB_PASSWORD" envDefault:"root"`

	TLS       bool          `env:"DB_TLS" envDefault:"false"`
	SlowQuery time.Duration `env:"DB_SLOW_QUERY" envDefault:"250ms"`
}

// JWTConfig holds JWT signing settings
type JWTConfig struct {
	PrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./keys/private.pem"`
	PublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./keys/public.pem"`
	ExpirationMins int           `env:"JWT_EXPIRATION_MINS" envDefault:"15"`
	Issuer         string        `env:"JWT_ISSUER" envDefault:"atelier.forgo.software"`
	Audience       string        `env:"JWT_AUDIENCE" envDefault:"atelier-api"`
	Leeway         time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`
}

// EmailConfig holds the transactional email provider settings
type EmailConfig struct {
	Enabled bool          `env:"EMAIL_ENABLED" envDefault:"false"`
	APIURL  string        `env:"EMAIL_API_URL" envDefault:"https://api.resend.com/emails"`
	APIKey  string        `env:"EMAIL_API_KEY"`
	From    string        `env:"EMAIL_FROM" envDefault:"Atelier <no-reply@atelier.forgo.software>"`
	Timeout time.Duration `env:"EMAIL_TIMEOUT" envDefault:"10s"`
}

// RateLimitConfig holds the token bucket settings
type RateLimitConfig struct {
	Rate   int           `env:"RATE_LIMIT_RATE" envDefault:"100"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	Burst  int           `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// CredentialsRate limits login, register, refresh and password
	// changes per client address
	CredentialsRate int `env:"RATE_LIMIT_CREDENTIALS_RATE" envDefault:"10"`
}

// JobsConfig holds background processor settings
type JobsConfig struct {
	Enabled           bool          `env:"JOBS_ENABLED" envDefault:"true"`
	LifecycleInterval time.Duration `env:"JOB_LIFECYCLE_INTERVAL" envDefault:"5m"`
	ReminderInterval  time.Duration `env:"JOB_REMINDER_INTERVAL" envDefault:"15m"`
	ReminderLeadTime  time.Duration `env:"REMINDER_LEAD_TIME" envDefault:"24h"`
}

// Load reads .env (when present) and then the environment. Unset variables
// take their defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got '%s'", c.Server.LogLevel))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}

	// JWT validation - critical for production
	if c.IsProduction() {
		if c.JWT.PrivateKeyPath == "" {
			errs = append(errs, errors.New("JWT_PRIVATE_KEY_PATH is required in production"))
		}
		if c.JWT.PublicKeyPath == "" {
			errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required in production"))
		}
	}
	if c.JWT.ExpirationMins <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_MINS must be positive"))
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 5*time.Minute {
		errs = append(errs, errors.New("JWT_LEEWAY must be between 0 and 5m"))
	}

	if c.Email.Enabled {
		if err := c.Email.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if c.RateLimit.Rate <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RATE and RATE_LIMIT_WINDOW must be positive"))
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST cannot be negative"))
	}
	if c.RateLimit.CredentialsRate <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_CREDENTIALS_RATE must be positive"))
	}

	if c.Jobs.Enabled {
		if c.Jobs.LifecycleInterval <= 0 {
			errs = append(errs, errors.New("JOB_LIFECYCLE_INTERVAL must be positive"))
		}
		if c.Jobs.ReminderInterval <= 0 {
			errs = append(errs, errors.New("JOB_REMINDER_INTERVAL must be positive"))
		}
		if c.Jobs.ReminderLeadTime <= 0 {
			errs = append(errs, errors.New("REMINDER_LEAD_TIME must be positive"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the fields an enabled email provider needs
func (e EmailConfig) Validate() error {
	var missing []string
	if e.APIURL == "" {
		missing = append(missing, "EMAIL_API_URL")
	}
	if e.APIKey == "" {
		missing = append(missing, "EMAIL_API_KEY")
	}
	if e.From == "" {
		missing = append(missing, "EMAIL_FROM")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if e.Timeout <= 0 {
		return errors.New("EMAIL_TIMEOUT must be positive")
	}
	return nil
}
