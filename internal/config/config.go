package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is the process-wide configuration for the client core. Every field
// is settable from the environment; defaults target the local devserver.
type Config struct {
	Profile  string `env:"TEACHLINK_PROFILE" envDefault:"dev"`
	LogLevel string `env:"TEACHLINK_LOG_LEVEL" envDefault:"info"`

	APIBaseURL  string        `env:"TEACHLINK_API_BASE_URL" envDefault:"http://localhost:3000"`
	HTTPTimeout time.Duration `env:"TEACHLINK_HTTP_TIMEOUT" envDefault:"10s"`

	StorePath   string `env:"TEACHLINK_STORE_PATH" envDefault:"teachlink.db"`
	StoreSecret string `env:"TEACHLINK_STORE_SECRET" envDefault:"dev-only-store-secret"`

	Platform string `env:"TEACHLINK_PLATFORM" envDefault:"ios"`

	DevServerAddr      string        `env:"TEACHLINK_DEVSERVER_ADDR" envDefault:":3000"`
	DevServerJWTSecret string        `env:"TEACHLINK_DEVSERVER_JWT_SECRET" envDefault:"dev-only-jwt-secret"`
	DevServerAccessTTL time.Duration `env:"TEACHLINK_DEVSERVER_ACCESS_TTL" envDefault:"1h"`

	GoogleClientID     string `env:"TEACHLINK_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"TEACHLINK_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"TEACHLINK_GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8765/callback"`

	OTELServiceName           string        `env:"OTEL_SERVICE_NAME" envDefault:"teachlink-client-core"`
	OTELEnvironment           string        `env:"OTEL_ENVIRONMENT" envDefault:"dev"`
	OTELExporterOTLPEndpoint  string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELExporterOTLPInsecure  bool          `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELMetricsEnabled        bool          `env:"OTEL_METRICS_ENABLED" envDefault:"false"`
	OTELTracesEnabled         bool          `env:"OTEL_TRACES_ENABLED" envDefault:"false"`
	OTELLogsEnabled           bool          `env:"OTEL_LOGS_ENABLED" envDefault:"false"`
	OTELMetricsExportInterval time.Duration `env:"OTEL_METRICS_EXPORT_INTERVAL" envDefault:"15s"`
}

// Load parses the environment into a Config and validates it.
func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		err = fmt.Errorf("parse config: %w", err)
		recordConfigValidationEvent(ctx, cfg.Profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		recordConfigValidationEvent(ctx, cfg.Profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(ctx, cfg.Profile, "success", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("validate config: TEACHLINK_API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}
	if c.StoreSecret == "" {
		return fmt.Errorf("validate config: TEACHLINK_STORE_SECRET is required")
	}
	if normalizeConfigProfile(c.Profile) == "prod" && c.StoreSecret == "dev-only-store-secret" {
		return fmt.Errorf("validate config: TEACHLINK_STORE_SECRET must be set for the prod profile")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("validate config: TEACHLINK_HTTP_TIMEOUT must be positive")
	}
	return nil
}
