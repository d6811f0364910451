package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Provider ProviderConfig
	Auth     AuthConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// ProviderConfig points at the managed auth backend (GoTrue-compatible REST API)
type ProviderConfig struct {
	URL              string
	AnonKey          string
	JWTSecret        string
	Timeout          time.Duration
	StorageNamespace string // prefix of every auth key the client stores, e.g. "sb-"
	ResetRedirectURL string
}

type AuthConfig struct {
	EnforcePolicyOnSignIn bool
	AttemptRetention      time.Duration
	CleanupInterval       time.Duration
	RequestsPerMinute     int
	TimingBaseDelay       time.Duration // minimum sign-in response time on failure
	TimingRandomDelay     time.Duration
	CookieDomain          string
	CookieSecure          bool
	CookieSameSite        string
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	SupportURL  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	db, err := LoadDatabase()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: *db,
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Provider: ProviderConfig{
			URL:              strings.TrimRight(getEnv("PROVIDER_URL", ""), "/"),
			AnonKey:          getEnv("PROVIDER_ANON_KEY", ""),
			JWTSecret:        getEnv("PROVIDER_JWT_SECRET", ""),
			Timeout:          getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
			StorageNamespace: getEnv("AUTH_STORAGE_NAMESPACE", "sb-"),
			ResetRedirectURL: getEnv("PASSWORD_RESET_REDIRECT_URL", ""),
		},
		Auth: AuthConfig{
			EnforcePolicyOnSignIn: getEnvAsBool("AUTH_ENFORCE_POLICY_ON_SIGNIN", false),
			AttemptRetention:      getEnvAsDuration("ATTEMPT_RETENTION", 30*24*time.Hour),
			CleanupInterval:       getEnvAsDuration("ATTEMPT_CLEANUP_INTERVAL", 1*time.Hour),
			RequestsPerMinute:     getEnvAsInt("AUTH_REQUESTS_PER_MINUTE", 10),
			TimingBaseDelay:       getEnvAsDuration("AUTH_TIMING_BASE_DELAY", 300*time.Millisecond),
			TimingRandomDelay:     getEnvAsDuration("AUTH_TIMING_RANDOM_DELAY", 100*time.Millisecond),
			CookieDomain:          getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:          getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieSameSite:        getEnv("COOKIE_SAMESITE", "lax"),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("LOCKOUT_EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
			SupportURL:  getEnv("SUPPORT_URL", ""),
		},
	}

	if cfg.Provider.URL == "" {
		return nil, fmt.Errorf("PROVIDER_URL is required")
	}
	if cfg.Provider.AnonKey == "" {
		return nil, fmt.Errorf("PROVIDER_ANON_KEY is required")
	}
	if err := validateJWTSecret(cfg.Provider.JWTSecret, env); err != nil {
		return nil, err
	}
	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when LOCKOUT_EMAIL_ENABLED is set")
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings. Used by tooling that never talks to the provider.
func LoadDatabase() (*DatabaseConfig, error) {
	_ = godotenv.Load()

	db := &DatabaseConfig{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              getEnvAsInt("DB_PORT", 5432),
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", ""),
		Name:              getEnv("DB_NAME", "storefront"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
		MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
		MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
	}

	if db.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	return db, nil
}

// validateJWTSecret checks the provider's token signing secret
func validateJWTSecret(secret, env string) error {
	if secret == "" {
		return fmt.Errorf("PROVIDER_JWT_SECRET is required")
	}

	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("PROVIDER_JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("PROVIDER_JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	items := strings.Split(value, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS")
	}

	// Development: the storefront dev server and preview build
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://localhost:4173", // Vite preview
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
