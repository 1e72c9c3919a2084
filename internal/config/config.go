package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const minJWTSecretLength = 32

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "jwt-secret", "password",
}

var acceptModes = []string{"auto", "rpc", "conditional"}

type Config struct {
	Port          int    `env:"PORT" envDefault:"8080"`
	AppEnv        string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	RedisURL      string `env:"REDIS_URL,required"`
	AutoMigrate   bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`

	JWTSecret   string `env:"AUTH_JWT_SECRET,required"`
	JWTAudience string `env:"AUTH_JWT_AUDIENCE"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	ResendAPIKey        string `env:"RESEND_API_KEY"`
	EmailFrom           string `env:"EMAIL_FROM" envDefault:"Handypro <no-reply@handypro.mx>"`
	CronSecretHash      string `env:"CRON_SECRET_HASH"`

	OfferAcceptMode          string `env:"OFFER_ACCEPT_MODE" envDefault:"auto"`
	DefaultCurrency          string `env:"DEFAULT_CURRENCY" envDefault:"MXN"`
	ReconcileIntervalSeconds int    `env:"RECONCILE_INTERVAL_SECONDS" envDefault:"300"`
	ReconcileStaleSeconds    int    `env:"RECONCILE_STALE_SECONDS" envDefault:"900"`
	ViewCacheTTLSeconds      int    `env:"VIEW_CACHE_TTL_SECONDS" envDefault:"60"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

func (c *Config) ReconcileStaleAfter() time.Duration {
	return time.Duration(c.ReconcileStaleSeconds) * time.Second
}

func (c *Config) ViewCacheTTL() time.Duration {
	return time.Duration(c.ViewCacheTTLSeconds) * time.Second
}

// PaymentsConfigured reports whether checkout sessions can be created.
func (c *Config) PaymentsConfigured() bool {
	return c.StripeSecretKey != ""
}

func (c *Config) Validate(isProduction bool) error {
	if c.CronSecretHash != "" {
		if !strings.HasPrefix(c.CronSecretHash, "$2a$") &&
			!strings.HasPrefix(c.CronSecretHash, "$2b$") &&
			!strings.HasPrefix(c.CronSecretHash, "$2y$") {
			return fmt.Errorf("CRON_SECRET_HASH must be a bcrypt hash (generate with: go run scripts/hash-secret.go <secret>)")
		}
	}

	if !contains(acceptModes, c.OfferAcceptMode) {
		return fmt.Errorf("OFFER_ACCEPT_MODE must be one of %s", strings.Join(acceptModes, ", "))
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3 letter ISO code")
	}
	if c.ReconcileIntervalSeconds <= 0 || c.ReconcileStaleSeconds <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL_SECONDS and RECONCILE_STALE_SECONDS must be positive")
	}

	if isProduction {
		if err := validateSecret("AUTH_JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}

		if c.StripeSecretKey == "" {
			log.Warn().Msg("STRIPE_SECRET_KEY is empty in production: offer acceptance will fail with SERVER_MISCONFIGURED")
		}
		if c.StripeWebhookSecret == "" {
			log.Warn().Msg("STRIPE_WEBHOOK_SECRET is empty in production: payment webhooks will be rejected")
		}
		if c.ResendAPIKey == "" {
			log.Warn().Msg("RESEND_API_KEY is empty in production: payment emails will only be logged")
		}
		if c.CronSecretHash == "" {
			log.Warn().Msg("CRON_SECRET_HASH is empty in production: cron endpoints are disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < minJWTSecretLength {
		return fmt.Errorf("%s must be at least %d characters in production (generate with: openssl rand -base64 32)", name, minJWTSecretLength)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
