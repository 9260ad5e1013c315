package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host    string `yaml:"host" env:"PASSAGE_HOST"`
	Port    int    `yaml:"port" env:"PASSAGE_PORT"`
	BaseURL string `yaml:"base_url" env:"PASSAGE_BASE_URL"` // external URL, used to derive redirect URIs
	NodeID  int64  `yaml:"node_id" env:"PASSAGE_NODE_ID"`   // snowflake node, unique per instance
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" env:"PASSAGE_DATABASE_DRIVER"` // postgres, sqlite
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"PASSAGE_POSTGRES_"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Database string `yaml:"database" env:"DATABASE"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"` // disable, require, verify-ca, verify-full
}

// SQLiteConfig holds SQLite configuration for local development
type SQLiteConfig struct {
	Path string `yaml:"path" env:"PASSAGE_SQLITE_PATH"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Token     TokenConfig      `yaml:"token"`
	SignIn    SignInConfig     `yaml:"signin"`
	Providers []ProviderConfig `yaml:"providers"`
}

// TokenConfig holds session token configuration
type TokenConfig struct {
	Secret string        `yaml:"secret" env:"PASSAGE_TOKEN_SECRET"` // HMAC key for signing session tokens
	Issuer string        `yaml:"issuer" env:"PASSAGE_TOKEN_ISSUER"`
	TTL    time.Duration `yaml:"ttl" env:"PASSAGE_TOKEN_TTL"`
}

// SignInConfig holds the sign-in policy
type SignInConfig struct {
	AllowedDomains []string `yaml:"allowed_domains,omitempty" env:"PASSAGE_ALLOWED_DOMAINS"` // Email domain allowlist, empty allows all
	AutoProvision  bool     `yaml:"auto_provision" env:"PASSAGE_AUTO_PROVISION"`             // Auto-create users on first login
	DefaultRole    string   `yaml:"default_role" env:"PASSAGE_DEFAULT_ROLE"`                 // Role given to provisioned users
}

// ProviderConfig holds OIDC provider configuration
type ProviderConfig struct {
	Name         string   `yaml:"name"`                    // "google", "github", "okta", etc.
	ClientID     string   `yaml:"client_id"`               // OAuth client ID (required)
	ClientSecret string   `yaml:"client_secret,omitempty"` // OAuth client secret
	Issuer       string   `yaml:"issuer"`                  // OIDC issuer URL (for discovery)
	Scopes       []string `yaml:"scopes,omitempty"`        // OAuth scopes, defaults to openid email profile
	RedirectURI  string   `yaml:"redirect_uri,omitempty"`  // defaults to {server.base_url}/auth/callback
}

// SessionConfig holds cookie session configuration
type SessionConfig struct {
	Secret string        `yaml:"secret" env:"PASSAGE_SESSION_SECRET"` // cookie keys are derived from this
	Secure bool          `yaml:"secure" env:"PASSAGE_SESSION_SECURE"` // set in production with HTTPS
	MaxAge time.Duration `yaml:"max_age" env:"PASSAGE_SESSION_MAX_AGE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" env:"PASSAGE_LOG_LEVEL"`   // Log level: debug, info, warn, error
	Format string `yaml:"format" env:"PASSAGE_LOG_FORMAT"` // Log format: json, text
	File   string `yaml:"file" env:"PASSAGE_LOG_FILE"`
}

// ConnectionString returns the PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// DataSource returns the driver name and DSN for the configured database
func (d *DatabaseConfig) DataSource() (driver, dsn string) {
	if d.Driver == DriverSQLite {
		return DriverSQLite, d.SQLite.Path
	}
	return DriverPostgres, d.Postgres.ConnectionString()
}

// Address returns the listen address for the HTTP server
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CallbackURL returns the redirect URI registered with the provider
func (c *Config) CallbackURL(p ProviderConfig) string {
	if p.RedirectURI != "" {
		return p.RedirectURI
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return c.Server.BaseURL + "/auth/callback"
	}
	return u.JoinPath("auth", "callback").String()
}
