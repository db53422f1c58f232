package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Identity modes: how the caller's user id is established.
const (
	IdentityHeader    = "header"
	IdentityJWT       = "jwt"
	IdentityTailscale = "tailscale"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DB_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Reporting ReportingConfig `yaml:"reporting" envPrefix:"REPORTING_"`
	Catalog   CatalogConfig   `yaml:"catalog" envPrefix:"CATALOG_"`
	Hooks     HooksConfig     `yaml:"hooks" envPrefix:"HOOKS_"`
	Tailscale TailscaleConfig `yaml:"tailscale" envPrefix:"TS_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"OTEL_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Name     string `yaml:"name" env:"NAME"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
	// Path is the SQLite database file.
	Path string `yaml:"path" env:"PATH"`
}

type AuthConfig struct {
	APIKey    string `yaml:"api_key" env:"API_KEY"`
	Identity  string `yaml:"identity" env:"IDENTITY"`
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type ReportingConfig struct {
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
}

// CatalogConfig selects the plan-day source: a remote plan service or a local YAML file.
type CatalogConfig struct {
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	File    string        `yaml:"file" env:"FILE"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type HooksConfig struct {
	WebhookURL string        `yaml:"webhook_url" env:"WEBHOOK_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Hostname string `yaml:"hostname" env:"HOSTNAME"`
	StateDir string `yaml:"state_dir" env:"STATE_DIR"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String()
}

// Location resolves the reporting timezone. An empty timezone means UTC.
func (r ReportingConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", r.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps the configured level name to a slog level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
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

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix TRAINLOG_ and underscore-separated paths:
//
//	TRAINLOG_SERVER_HOST, TRAINLOG_SERVER_PORT,
//	TRAINLOG_DB_DRIVER, TRAINLOG_DB_HOST, TRAINLOG_DB_PORT, TRAINLOG_DB_NAME,
//	TRAINLOG_DB_USER, TRAINLOG_DB_PASSWORD, TRAINLOG_DB_SSLMODE, TRAINLOG_DB_PATH,
//	TRAINLOG_AUTH_API_KEY, TRAINLOG_AUTH_IDENTITY, TRAINLOG_AUTH_JWT_SECRET,
//	TRAINLOG_REPORTING_TIMEZONE,
//	TRAINLOG_CATALOG_BASE_URL, TRAINLOG_CATALOG_FILE, TRAINLOG_CATALOG_TIMEOUT,
//	TRAINLOG_HOOKS_WEBHOOK_URL, TRAINLOG_HOOKS_TIMEOUT,
//	TRAINLOG_TS_ENABLED, TRAINLOG_TS_HOSTNAME, TRAINLOG_TS_STATE_DIR,
//	TRAINLOG_OTEL_ENDPOINT, TRAINLOG_OTEL_SERVICE_NAME, TRAINLOG_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "TRAINLOG_"}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Auth.Identity == "" {
		c.Auth.Identity = IdentityHeader
	}
	if c.Catalog.Timeout == 0 {
		c.Catalog.Timeout = 10 * time.Second
	}
	if c.Hooks.Timeout == 0 {
		c.Hooks.Timeout = 10 * time.Second
	}
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "trainlog"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "trainlog"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}

	switch c.Auth.Identity {
	case IdentityHeader:
		if c.Auth.APIKey == "" {
			return fmt.Errorf("auth.api_key is required with header identity")
		}
	case IdentityJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required with jwt identity")
		}
	case IdentityTailscale:
		if !c.Tailscale.Enabled {
			return fmt.Errorf("tailscale identity requires tailscale.enabled")
		}
	default:
		return fmt.Errorf("auth.identity must be one of header, jwt, tailscale; got %q", c.Auth.Identity)
	}

	if _, err := c.Reporting.Location(); err != nil {
		return fmt.Errorf("reporting.timezone: %w", err)
	}

	if c.Catalog.BaseURL == "" && c.Catalog.File == "" {
		return fmt.Errorf("one of catalog.base_url or catalog.file is required")
	}
	if c.Catalog.BaseURL != "" && c.Catalog.File != "" {
		return fmt.Errorf("catalog.base_url and catalog.file are mutually exclusive")
	}
	return nil
}
