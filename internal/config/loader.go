package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/config.yaml",
	"./configs/config.yml",
	"./configs/development.yaml",
	"/etc/passage/config.yaml",
	"/etc/passage/config.yml",
}

// Default returns the configuration used before any file or environment is applied
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "localhost",
			Port:    8080,
			BaseURL: "http://localhost:8080",
			NodeID:  1,
		},
		Database: DatabaseConfig{
			Driver: DriverPostgres,
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "passage",
				User:     "postgres",
				SSLMode:  "disable",
			},
			SQLite: SQLiteConfig{
				Path: "passage.db",
			},
		},
		Auth: AuthConfig{
			Token: TokenConfig{
				Issuer: "passage",
				TTL:    time.Hour,
			},
			SignIn: SignInConfig{
				AutoProvision: true,
				DefaultRole:   "user",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads the configuration from the specified file or default locations,
// then applies environment overrides
func Load(configPath string) (*Config, error) {
	config := Default()

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	// Load configuration from file if it exists
	if configPath != "" && fileExists(configPath) {
		fmt.Fprintf(os.Stderr, "[CONFIG] Loading config from: %s\n", configPath)
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the config
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if configPath != "" {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	// Environment variables take precedence over the file
	if err := ParseEnv(config); err != nil {
		return nil, err
	}

	normalize(config)

	// Validate configuration
	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// normalize fills derived defaults
func normalize(config *Config) {
	config.Server.BaseURL = strings.TrimRight(config.Server.BaseURL, "/")
	config.Database.Driver = strings.ToLower(config.Database.Driver)

	for i, domain := range config.Auth.SignIn.AllowedDomains {
		config.Auth.SignIn.AllowedDomains[i] = strings.ToLower(strings.TrimSpace(domain))
	}

	for i := range config.Auth.Providers {
		if len(config.Auth.Providers[i].Scopes) == 0 {
			config.Auth.Providers[i].Scopes = []string{"openid", "email", "profile"}
		}
	}

	if config.Session.MaxAge <= 0 {
		config.Session.MaxAge = config.Auth.Token.TTL
	}
}

// validate performs basic validation on the configuration
func validate(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch config.Database.Driver {
	case DriverPostgres:
		if config.Database.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if config.Database.Postgres.Database == "" {
			return fmt.Errorf("postgres database name is required")
		}
		if config.Database.Postgres.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	case DriverSQLite:
		if config.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.Auth.Token.Secret == "" {
		return fmt.Errorf("auth.token.secret is required")
	}
	if config.Auth.Token.TTL <= 0 {
		return fmt.Errorf("auth.token.ttl must be positive")
	}

	seen := make(map[string]bool)
	for _, p := range config.Auth.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider name is required")
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %s: configured more than once", p.Name)
		}
		seen[p.Name] = true
		if p.ClientID == "" {
			return fmt.Errorf("provider %s: client_id is required", p.Name)
		}
		if p.Issuer == "" {
			return fmt.Errorf("provider %s: issuer is required for OIDC discovery", p.Name)
		}
	}

	return nil
}
