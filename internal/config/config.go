// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// MinJWTSecretLength is the minimum HS256 signing key length accepted in
// production.
const MinJWTSecretLength = 32

// devJWTSecret is the development signing key. Load rejects it in production.
const devJWTSecret = "dev-only-coursepress-signing-key-change-me"

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	devJWTSecret,
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host     string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port     string `env:"APP_PORT" envDefault:"8080"`
	Env      string `env:"APP_ENV" envDefault:"development"` // "development", "production", "testing"
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// PostgreSQL connection
	DBHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	DBPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	DBUser     string `env:"POSTGRES_USER" envDefault:"coursepress"`
	DBPassword string `env:"POSTGRES_PASSWORD" envDefault:"changeme"`
	DBName     string `env:"POSTGRES_DB" envDefault:"coursepress"`

	// Valkey (Redis-compatible token registry and response cache)
	ValkeyHost     string `env:"VALKEY_HOST" envDefault:"localhost"`
	ValkeyPort     string `env:"VALKEY_PORT" envDefault:"6379"`
	ValkeyPassword string `env:"VALKEY_PASSWORD"`
	ValkeyDB       int    `env:"VALKEY_DB" envDefault:"0"`

	// Public listing cache; zero disables it.
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"1m"`

	// Bearer tokens
	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-only-coursepress-signing-key-change-me"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"coursepress"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"12h"`

	// Timeouts for outbound I/O
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT" envDefault:"5s"`
	MailTimeout  time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`

	// Login protection
	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION" envDefault:"30m"`
	LoginRate        float64       `env:"LOGIN_RATE" envDefault:"0.5"` // requests per second per IP
	LoginBurst       int           `env:"LOGIN_BURST" envDefault:"10"`

	// CORS for the single-page frontend
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// S3-compatible object storage; empty endpoint selects local disk.
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Region    string `env:"S3_REGION" envDefault:"fsn1"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"coursepress-public"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`

	// Local disk storage
	UploadsDir    string `env:"UPLOADS_DIR" envDefault:"./uploads"`
	UploadsPrefix string `env:"UPLOADS_URL_PREFIX" envDefault:"/uploads"`

	// Outbound email; empty host logs messages instead of sending them.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@coursepress.local"`
	NotifyEmail  string `env:"NOTIFY_EMAIL" envDefault:"office@coursepress.local"`

	// Initial admin account created on an empty database
	SeedAdminEmail    string `env:"SEED_ADMIN_EMAIL" envDefault:"admin@coursepress.local"`
	SeedAdminPassword string `env:"SEED_ADMIN_PASSWORD"`
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.LockoutThreshold < 1 {
		return errors.New("LOCKOUT_THRESHOLD must be at least 1")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.CacheTTL < 0 {
		return errors.New("CACHE_TTL must not be negative")
	}
	if c.QueryTimeout <= 0 || c.MailTimeout <= 0 {
		return errors.New("QUERY_TIMEOUT and MAIL_TIMEOUT must be positive")
	}

	if c.Env != "production" {
		return nil
	}

	if c.DBPassword == "changeme" {
		return errors.New("POSTGRES_PASSWORD must be set in production")
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinJWTSecretLength, len(c.JWTSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.JWTSecret == weak {
			return errors.New("JWT_SECRET is a known default value and must not be used")
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// UseS3 reports whether uploads go to S3-compatible object storage.
func (c *Config) UseS3() bool {
	return c.S3Endpoint != ""
}

// UseSMTP reports whether notifications are delivered over SMTP.
func (c *Config) UseSMTP() bool {
	return c.SMTPHost != ""
}

// AllowedOrigin reports whether origin is in the CORS allow list.
func (c *Config) AllowedOrigin(origin string) bool {
	for _, o := range c.CORSOrigins {
		if o == "*" || strings.EqualFold(strings.TrimSpace(o), origin) {
			return true
		}
	}
	return false
}
