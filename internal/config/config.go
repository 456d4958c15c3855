// Package config defines the global configuration structure for the TextLens
// platform. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"textlens/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the TextLens platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"textlens-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server    ServerConfig
	Database  DatabaseConfig
	Metering  MeteringConfig
	Billing   BillingConfig
	Providers ProviderConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public URLs for checkout redirects (no trailing slash)
	AppURL string `envconfig:"APP_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// MeteringConfig holds the secrets and knobs for credit accounting.
type MeteringConfig struct {
	// IPHashSecret keys the one-way hash of guest IP addresses. It is used
	// for nothing else; any process-wide secret of sufficient length works.
	IPHashSecret SecretString `envconfig:"IP_HASH_SECRET" validate:"required,min=32"`
}

// BillingConfig holds Stripe payment integration credentials.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
}

// ProviderConfig holds credentials and endpoints for the external text
// processing providers.
type ProviderConfig struct {
	WinstonAPIKey      SecretString  `envconfig:"WINSTON_API_KEY" validate:"required"`
	WinstonBaseURL     string        `envconfig:"WINSTON_BASE_URL" default:"https://api.gowinston.ai"`
	OpenRouterAPIKey   SecretString  `envconfig:"OPENROUTER_API_KEY" validate:"required"`
	OpenRouterBaseURL  string        `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api"`
	CrossrefBaseURL    string        `envconfig:"CROSSREF_BASE_URL" default:"https://api.crossref.org"`
	OpenLibraryBaseURL string        `envconfig:"OPENLIBRARY_BASE_URL" default:"https://openlibrary.org"`
	Timeout            time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"60s"`
}
