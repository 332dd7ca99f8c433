package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	Storage    StorageConfig
	Registry   RegistryConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventStoreConfig holds configuration for EventStoreDB, which backs the
// event bus and the append-only audit log.
type EventStoreConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// StorageConfig holds configuration for the document object store.
type StorageConfig struct {
	// Root is the directory the filesystem store writes under.
	Root string
	// PublicBaseURL prefixes the retrievable address of stored objects.
	PublicBaseURL string
}

// RegistryConfig holds configuration for the legacy civil-registry lookup
// (SQL Server). Optional; signup degrades to unverified Aadhaar records
// when disabled.
type RegistryConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// CitizenTable is the registry table queried by Aadhaar number.
	CitizenTable string
}

type RateLimitConfig struct {
	// AuthRPS and AuthBurst bound per-IP request rates on /api/v1/auth.
	AuthRPS   int
	AuthBurst int
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "sewa"),
			Password: getEnv("DB_PASSWORD", "sewa"),
			Database: getEnv("DB_NAME", "sewa"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Issuer:          getEnv("JWT_ISSUER", "sewa-connect"),
			AccessTokenTTL:  getEnvDuration("AUTH_ACCESS_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvDuration("AUTH_REFRESH_TTL", 8*time.Hour),
		},
		Storage: StorageConfig{
			Root:          getEnv("STORAGE_ROOT", "./data/documents"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "/api/v1/documents/files"),
		},
		Registry: RegistryConfig{
			Enabled:      getEnvBool("REGISTRY_ENABLED", false),
			Host:         getEnv("REGISTRY_HOST", "localhost"),
			Port:         getEnvInt("REGISTRY_PORT", 1433),
			User:         getEnv("REGISTRY_USER", ""),
			Password:     getEnv("REGISTRY_PASSWORD", ""),
			Database:     getEnv("REGISTRY_DB", "civilregistry"),
			SSLMode:      getEnv("REGISTRY_SSLMODE", "disable"),
			CitizenTable: getEnv("REGISTRY_CITIZEN_TABLE", "dbo.Citizens"),
		},
		RateLimit: RateLimitConfig{
			AuthRPS:   getEnvInt("RATE_LIMIT_AUTH_RPS", 5),
			AuthBurst: getEnvInt("RATE_LIMIT_AUTH_BURST", 10),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
