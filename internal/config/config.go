// Package config provides environment variable loading for the broker.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the broker services.
type Config struct {
	// Database
	DatabaseURL   string
	MigrationsDir string

	// Attachment storage (S3-compatible)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string

	// Server
	ListenAddr string

	// Optional
	LogLevel string
}

// Load reads configuration from environment variables.
// It attempts to load a .env file first (for local development).
func Load() *Config {
	// Load .env file if present (ignore errors - file may not exist in production)
	_ = godotenv.Load()

	return &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MigrationsDir:    getEnv("MIGRATIONS_DIR", "migrations"),
		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", ""),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", "broker-attachments"),
		StorageRegion:    getEnv("STORAGE_REGION", "auto"),
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
