// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// DefaultDisposableDomainsURL is the community-maintained list of throwaway
// email domains, one domain per line.
const DefaultDisposableDomainsURL = "https://raw.githubusercontent.com/disposable/disposable-email-domains/master/domains.txt"

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	// Empty selects debug in development and info elsewhere.
	LogLevel string

	// AllowedOrigins lists origins permitted for cross-origin API calls.
	AllowedOrigins []string

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds token and session settings.
	Auth AuthConfig

	// Disposable holds settings for the disposable email domain cache.
	Disposable DisposableConfig

	// Audit holds settings for the login audit buffer.
	Audit AuditConfig
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so
// container orchestrators can manage each independently.
// If DATABASE_URL is set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	User     string
	Password string
	Name     string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsPath is the directory holding *.up.sql / *.down.sql files.
	MigrationsPath string
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// fields using the driver's Config.FormatDSN() to safely handle special
// characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds token signing and session lifetime settings.
type AuthConfig struct {
	// AccessSecret signs access tokens. Must differ from RefreshSecret so
	// that leaking one cannot be used to forge the other kind.
	AccessSecret string

	// RefreshSecret signs refresh tokens.
	RefreshSecret string

	// AccessTTL is the access token lifetime (minutes-scale).
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime (day-scale).
	RefreshTTL time.Duration

	// SessionTTL is how long a refresh session record lives in Redis.
	SessionTTL time.Duration
}

// DisposableConfig holds settings for the disposable domain cache.
type DisposableConfig struct {
	// SourceURL is fetched on every reload; newline-delimited domains.
	SourceURL string

	// ReloadInterval is the period between reloads (default: 6h).
	ReloadInterval time.Duration

	// EntryTTL is how long each cached domain survives without a reload.
	EntryTTL time.Duration

	// FetchTimeout bounds a single download of the list.
	FetchTimeout time.Duration
}

// AuditConfig holds login audit buffer settings.
type AuditConfig struct {
	// FlushInterval is the period between bulk writes (default: 10s).
	FlushInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present; real
// environment variables always win over values from the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", ""),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "accounts"),
			Password:        getEnv("DB_PASSWORD", "accounts"),
			Name:            getEnv("DB_NAME", "accounts"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "db/migrations"),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			AccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
			AccessTTL:     getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 24*time.Hour),
			SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
		},

		Disposable: DisposableConfig{
			SourceURL:      getEnv("DISPOSABLE_DOMAINS_URL", DefaultDisposableDomainsURL),
			ReloadInterval: getEnvDuration("DISPOSABLE_RELOAD_INTERVAL", 6*time.Hour),
			EntryTTL:       getEnvDuration("DISPOSABLE_ENTRY_TTL", 24*time.Hour),
			FetchTimeout:   getEnvDuration("DISPOSABLE_FETCH_TIMEOUT", 30*time.Second),
		},

		Audit: AuditConfig{
			FlushInterval: getEnvDuration("AUDIT_FLUSH_INTERVAL", 10*time.Second),
		},
	}

	if cfg.IsProduction() {
		if err := cfg.Auth.validateSecrets(); err != nil {
			return nil, err
		}
	}

	// Dev-only defaults so local runs work without a .env file.
	if cfg.Auth.AccessSecret == "" {
		cfg.Auth.AccessSecret = "dev-access-secret-do-not-use-in-production!!"
	}
	if cfg.Auth.RefreshSecret == "" {
		cfg.Auth.RefreshSecret = "dev-refresh-secret-do-not-use-in-production!"
	}

	if cfg.Auth.AccessTTL <= 0 || cfg.Auth.RefreshTTL <= 0 || cfg.Auth.SessionTTL <= 0 {
		return nil, fmt.Errorf("token and session TTLs must be positive")
	}
	if cfg.Disposable.ReloadInterval <= 0 || cfg.Audit.FlushInterval <= 0 {
		return nil, fmt.Errorf("background job intervals must be positive")
	}

	return cfg, nil
}

// validateSecrets enforces production requirements on the signing secrets.
func (a AuthConfig) validateSecrets() error {
	if a.AccessSecret == "" || a.RefreshSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required in production")
	}
	if len(a.AccessSecret) < 32 || len(a.RefreshSecret) < 32 {
		return fmt.Errorf("JWT secrets must be at least 32 characters in production")
	}
	if a.AccessSecret == a.RefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true for "production" and "prod" in any case.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "6h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var, dropping empty items.
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
