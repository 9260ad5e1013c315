package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	t.Setenv("TEST_GOOGLE_SECRET", "shh")

	path := writeConfig(t, `
server:
  port: 9000
  base_url: https://login.example.com/
database:
  driver: sqlite
  sqlite:
    path: /tmp/passage.db
auth:
  token:
    secret: token-secret
    ttl: 30m
  signin:
    allowed_domains: [" Example.com "]
    auto_provision: false
  providers:
    - name: google
      client_id: client-1
      client_secret: ${TEST_GOOGLE_SECRET}
      issuer: https://accounts.google.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.BaseURL != "https://login.example.com" {
		t.Errorf("Server.BaseURL = %q, want trailing slash trimmed", cfg.Server.BaseURL)
	}
	driver, dsn := cfg.Database.DataSource()
	if driver != DriverSQLite || dsn != "/tmp/passage.db" {
		t.Errorf("DataSource() = (%q, %q), want sqlite /tmp/passage.db", driver, dsn)
	}
	if cfg.Auth.Token.TTL != 30*time.Minute {
		t.Errorf("Token.TTL = %v, want 30m", cfg.Auth.Token.TTL)
	}
	if cfg.Auth.Token.Issuer != "passage" {
		t.Errorf("Token.Issuer = %q, want default passage", cfg.Auth.Token.Issuer)
	}
	if cfg.Session.MaxAge != 30*time.Minute {
		t.Errorf("Session.MaxAge = %v, want token TTL", cfg.Session.MaxAge)
	}
	if cfg.Auth.SignIn.AutoProvision {
		t.Error("SignIn.AutoProvision = true, want false from file")
	}
	if got := cfg.Auth.SignIn.AllowedDomains; len(got) != 1 || got[0] != "example.com" {
		t.Errorf("SignIn.AllowedDomains = %v, want [example.com]", got)
	}

	if len(cfg.Auth.Providers) != 1 {
		t.Fatalf("Providers = %d, want 1", len(cfg.Auth.Providers))
	}
	p := cfg.Auth.Providers[0]
	if p.ClientSecret != "shh" {
		t.Errorf("ClientSecret = %q, want expanded env var", p.ClientSecret)
	}
	if strings.Join(p.Scopes, " ") != "openid email profile" {
		t.Errorf("Scopes = %v, want defaults", p.Scopes)
	}
	if got := cfg.CallbackURL(p); got != "https://login.example.com/auth/callback" {
		t.Errorf("CallbackURL() = %q", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
auth:
  token:
    secret: from-file
database:
  postgres:
    host: db.internal
`)
	t.Setenv("PASSAGE_TOKEN_SECRET", "from-env")
	t.Setenv("PASSAGE_PORT", "8181")
	t.Setenv("PASSAGE_POSTGRES_PASSWORD", "pw")
	t.Setenv("PASSAGE_TOKEN_TTL", "2h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.Token.Secret != "from-env" {
		t.Errorf("Token.Secret = %q, want from-env", cfg.Auth.Token.Secret)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("Server.Port = %d, want 8181", cfg.Server.Port)
	}
	if cfg.Auth.Token.TTL != 2*time.Hour {
		t.Errorf("Token.TTL = %v, want 2h", cfg.Auth.Token.TTL)
	}
	if cfg.Database.Postgres.Host != "db.internal" {
		t.Errorf("Postgres.Host = %q, want value from file kept", cfg.Database.Postgres.Host)
	}
	if !strings.Contains(cfg.Database.Postgres.ConnectionString(), "password=pw") {
		t.Errorf("ConnectionString() = %q, want env password", cfg.Database.Postgres.ConnectionString())
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing token secret",
			body:    "server:\n  port: 8080\n",
			wantErr: "auth.token.secret is required",
		},
		{
			name:    "bad port",
			body:    "server:\n  port: 70000\nauth:\n  token:\n    secret: k\n",
			wantErr: "server.port",
		},
		{
			name:    "unknown driver",
			body:    "database:\n  driver: mysql\nauth:\n  token:\n    secret: k\n",
			wantErr: "unsupported database driver",
		},
		{
			name:    "provider without issuer",
			body:    "auth:\n  token:\n    secret: k\n  providers:\n    - name: google\n      client_id: c\n",
			wantErr: "issuer is required",
		},
		{
			name:    "duplicate provider",
			body:    "auth:\n  token:\n    secret: k\n  providers:\n    - {name: g, client_id: c, issuer: \"https://i\"}\n    - {name: g, client_id: c, issuer: \"https://i\"}\n",
			wantErr: "more than once",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() of missing explicit file expected error")
	}
}

func TestCallbackURL_Explicit(t *testing.T) {
	cfg := Default()
	p := ProviderConfig{Name: "okta", RedirectURI: "https://id.example.com/cb"}
	if got := cfg.CallbackURL(p); got != "https://id.example.com/cb" {
		t.Errorf("CallbackURL() = %q", got)
	}

	if got := cfg.CallbackURL(ProviderConfig{Name: "google"}); got != "http://localhost:8080/auth/callback" {
		t.Errorf("CallbackURL() default = %q", got)
	}
}
