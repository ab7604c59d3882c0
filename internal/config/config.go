// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for caches and exported reports (always absolute)
	LogLevel     string
	LogPretty    bool
	Port         int
	DevMode      bool
	PriceFile    string // Wide CSV of adjusted closes used when no price is cached
	PriceCache   string // msgpack price cache file
	PriceDB      string // SQLite price store, optional
	SweepWorkers int
	S3           S3Config
}

// S3Config configures the optional S3-compatible report sink.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // Custom endpoint for R2/MinIO; empty means AWS
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether reports should be uploaded.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("HARVESTER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", true),
		Port:         getEnvAsInt("HARVESTER_PORT", 8080),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		PriceFile:    getEnv("HARVESTER_PRICE_FILE", ""),
		PriceCache:   getEnv("HARVESTER_PRICE_CACHE", filepath.Join(absDataDir, "prices.msgpack")),
		PriceDB:      getEnv("HARVESTER_PRICE_DB", ""),
		SweepWorkers: getEnvAsInt("HARVESTER_SWEEP_WORKERS", 0),
		S3: S3Config{
			Bucket:          getEnv("HARVESTER_S3_BUCKET", ""),
			Prefix:          getEnv("HARVESTER_S3_PREFIX", "harvester"),
			Region:          getEnv("HARVESTER_S3_REGION", "auto"),
			Endpoint:        getEnv("HARVESTER_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SweepWorkers < 0 {
		return fmt.Errorf("sweep workers must not be negative, got %d", c.SweepWorkers)
	}
	// Static credentials must come in pairs; otherwise the SDK default chain is used
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return fmt.Errorf("both AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
