package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_PASSWORD", "test")
	t.Setenv("PROVIDER_URL", "https://project.example.co/")
	t.Setenv("PROVIDER_ANON_KEY", "anon-key")
	t.Setenv("PROVIDER_JWT_SECRET", "test-secret-32-characters-long!")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Provider.URL != "https://project.example.co" {
		t.Errorf("Provider.URL should drop trailing slash, got %q", cfg.Provider.URL)
	}
	if cfg.Provider.StorageNamespace != "sb-" {
		t.Errorf("StorageNamespace = %q, want sb-", cfg.Provider.StorageNamespace)
	}
	if cfg.Auth.EnforcePolicyOnSignIn {
		t.Error("EnforcePolicyOnSignIn should default to false")
	}
	if cfg.Auth.AttemptRetention != 30*24*time.Hour {
		t.Errorf("AttemptRetention = %v", cfg.Auth.AttemptRetention)
	}
	if cfg.Auth.CookieSecure {
		t.Error("CookieSecure should default to false outside production")
	}
	if cfg.Database.Name != "storefront" {
		t.Errorf("Database.Name = %q", cfg.Database.Name)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"database password", "DB_PASSWORD"},
		{"provider url", "PROVIDER_URL"},
		{"anon key", "PROVIDER_ANON_KEY"},
		{"jwt secret", "PROVIDER_JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.unset, "")

			if _, err := Load(); err == nil {
				t.Fatalf("Load() should fail without %s", tt.unset)
			}
		})
	}
}

func TestLoad_ProductionSecretStrength(t *testing.T) {
	setRequired(t)
	t.Setenv("ENV", "production")
	t.Setenv("PROVIDER_JWT_SECRET", "only-twenty-chars-xx")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a short secret in production")
	}
}

func TestLoad_WeakSecret(t *testing.T) {
	if err := validateJWTSecret("changeme", "development"); err == nil {
		t.Fatal("short weak secret should be rejected")
	}
	if err := validateJWTSecret("PASSWORD", "development"); err == nil {
		t.Fatal("weak secret should be rejected")
	}
}

func TestLoad_EmailRequiresFromAddress(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCKOUT_EMAIL_ENABLED", "true")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should require EMAIL_FROM_ADDRESS when lockout email is enabled")
	}

	t.Setenv("EMAIL_FROM_ADDRESS", "security@agentstore.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if !cfg.Email.Enabled {
		t.Error("Email.Enabled should be true")
	}
}

func TestServerConfig_Timeouts(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_READ_TIMEOUT", "25s")
	t.Setenv("SERVER_WRITE_TIMEOUT", "not-a-duration")
	t.Setenv("SERVER_IDLE_TIMEOUT", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout (custom)", cfg.Server.ReadTimeout, 25 * time.Second},
		{"WriteTimeout (invalid falls back)", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout (zero honoured)", cfg.Server.IdleTimeout, 0},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,172.16.0.0/12 ")

	got := getEnvAsList("TRUSTED_PROXIES")
	if len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "172.16.0.0/12" {
		t.Errorf("getEnvAsList() = %v", got)
	}
}
