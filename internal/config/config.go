// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Tenant database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Mail backends.
const (
	MailLog      = "log"
	MailSendGrid = "sendgrid"
)

// Config is shared by the server and the admin CLI.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"schoolhub.db"`

	TenantDriver      string `env:"TENANT_DRIVER" envDefault:"sqlite"`           // sqlite | postgres
	TenantDataDir     string `env:"TENANT_DATA_DIR" envDefault:"./data/tenants"` // used when TENANT_DRIVER=sqlite
	TenantPostgresURL string `env:"TENANT_POSTGRES_URL"`                         // required when TENANT_DRIVER=postgres
	TenantBaseDomain  string `env:"TENANT_BASE_DOMAIN" envDefault:"schoolhub.local"`

	ConversionTimeout      time.Duration `env:"CONVERSION_TIMEOUT" envDefault:"2m"`
	RestoreStatusOnFailure bool          `env:"RESTORE_STATUS_ON_FAILURE" envDefault:"false"`
	OrphanSweepInterval    time.Duration `env:"ORPHAN_SWEEP_INTERVAL" envDefault:"1h"`
	OrphanTTL              time.Duration `env:"ORPHAN_TTL" envDefault:"24h"`

	AppName        string `env:"APP_NAME" envDefault:"SchoolHub"`
	MailBackend    string `env:"MAIL_BACKEND" envDefault:"log"` // log | sendgrid
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	MailFrom       string `env:"MAIL_FROM" envDefault:"no-reply@schoolhub.local"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return Parse(os.Environ())
}

// Parse builds a Config from KEY=VALUE pairs.
func Parse(environ []string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: env.ToMap(environ)})
	if err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error

	switch c.TenantDriver {
	case DriverSQLite:
		if c.TenantDataDir == "" {
			errs = append(errs, errors.New("TENANT_DATA_DIR is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.TenantPostgresURL == "" {
			errs = append(errs, errors.New("TENANT_POSTGRES_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported TENANT_DRIVER %q (use %q or %q)", c.TenantDriver, DriverSQLite, DriverPostgres))
	}

	switch c.MailBackend {
	case MailLog:
	case MailSendGrid:
		if c.SendGridAPIKey == "" {
			errs = append(errs, errors.New("SENDGRID_API_KEY is required for the sendgrid mail backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported MAIL_BACKEND %q (use %q or %q)", c.MailBackend, MailLog, MailSendGrid))
	}

	if c.ConversionTimeout <= 0 {
		errs = append(errs, errors.New("CONVERSION_TIMEOUT must be positive"))
	}
	if c.OrphanTTL <= 0 {
		errs = append(errs, errors.New("ORPHAN_TTL must be positive"))
	}
	if c.ConversionTimeout > 0 && c.OrphanTTL > 0 && c.OrphanTTL <= c.ConversionTimeout {
		errs = append(errs, errors.New("ORPHAN_TTL must exceed CONVERSION_TIMEOUT"))
	}

	return errors.Join(errs...)
}
