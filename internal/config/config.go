package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Plaid     PlaidConfig
	Crypto    CryptoConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

// ServerConfig holds configuration for the reference analysis backend
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// AppConfig holds configuration for the finsight front end
type AppConfig struct {
	Port        string
	Host        string
	Addr        string
	APIURL      string // Base URL of the analysis backend
	IdentityURL string // Base URL of the identity provider
	IdentityKey string // Optional apikey header sent to the identity provider
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// AuthConfig holds bearer-token settings for the backend
type AuthConfig struct {
	JWTSecret   string
	TokenTTL    time.Duration
	DevIdentity bool   // Serve the development identity provider under /auth/v1
	APIKey      string // Required apikey header for /auth/v1 when set
}

// PlaidConfig holds account-aggregation credentials
type PlaidConfig struct {
	ClientID     string
	Secret       string
	BaseURL      string
	ClientName   string
	CountryCodes []string
	HistoryDays  int
}

// Configured reports whether bank linking can be offered.
func (p PlaidConfig) Configured() bool {
	return p.ClientID != "" && p.Secret != ""
}

// CryptoConfig holds the key used to encrypt bank access tokens at rest
type CryptoConfig struct {
	EncryptionKey string // base64 fernet key
}

// SchedulerConfig holds background job schedules
type SchedulerConfig struct {
	SnapshotSchedule string // cron spec, empty disables the job
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
	JSON  bool
}

var plaidHosts = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8000"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		App: AppConfig{
			Port:        getEnv("APP_PORT", "3000"),
			Host:        getEnv("APP_HOST", "localhost"),
			APIURL:      strings.TrimRight(getEnv("API_URL", "http://127.0.0.1:8000"), "/"),
			IdentityKey: os.Getenv("IDENTITY_API_KEY"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/finance_insights.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}),
		},
		Auth: AuthConfig{
			JWTSecret:   os.Getenv("JWT_SECRET"),
			DevIdentity: getBool("DEV_IDENTITY", true),
			APIKey:      os.Getenv("IDENTITY_API_KEY"),
		},
		Plaid: PlaidConfig{
			ClientID:     os.Getenv("PLAID_CLIENT_ID"),
			Secret:       os.Getenv("PLAID_SECRET"),
			ClientName:   getEnv("PLAID_CLIENT_NAME", "Finance Insights"),
			CountryCodes: getList("PLAID_COUNTRY_CODES", []string{"CA"}),
		},
		Crypto: CryptoConfig{
			EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
		},
		Scheduler: SchedulerConfig{
			SnapshotSchedule: getEnv("SNAPSHOT_SCHEDULE", "@every 1h"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  getBool("LOG_JSON", false),
		},
	}

	ttl, err := time.ParseDuration(getEnv("JWT_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	config.Auth.TokenTTL = ttl

	days, err := strconv.Atoi(getEnv("PLAID_HISTORY_DAYS", "90"))
	if err != nil || days <= 0 {
		return nil, fmt.Errorf("invalid PLAID_HISTORY_DAYS: %q", os.Getenv("PLAID_HISTORY_DAYS"))
	}
	config.Plaid.HistoryDays = days

	env := strings.ToLower(getEnv("PLAID_ENV", "sandbox"))
	host, ok := plaidHosts[env]
	if !ok {
		return nil, fmt.Errorf("invalid PLAID_ENV: %q", env)
	}
	config.Plaid.BaseURL = getEnv("PLAID_BASE_URL", host)

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)
	config.App.Addr = fmt.Sprintf("%s:%s", config.App.Host, config.App.Port)
	config.App.IdentityURL = strings.TrimRight(getEnv("IDENTITY_URL", config.App.APIURL), "/")

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getBool parses a boolean environment variable, returning defaultValue when unset or malformed
func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getList splits a comma-separated environment variable
func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
