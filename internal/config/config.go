// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection (optional — empty host disables document
	// record bookkeeping)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (optional shared rendered-output cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Object storage for generated documents
	S3Endpoint   string
	S3Region     string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3PublicURL  string
	S3Collection string

	// Document generation
	DefaultRegion string
	TemplateDirs  []string
	PrewarmKinds  []string

	// Cache tuning
	TemplateMetadataTTL time.Duration
	TemplateContentTTL  time.Duration
	RenderTTL           time.Duration
	CacheMaxEntries     int
	CacheSweepInterval  time.Duration

	// Rendering engine
	EngineMemoryThreshold uint64
	EngineCheckInterval   time.Duration
	ChromePath            string

	// Upload retry count (after the first attempt)
	UploadRetries int
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     os.Getenv("POSTGRES_HOST"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "leasedocs"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "leasedocs"),

		ValkeyHost:     os.Getenv("VALKEY_HOST"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3Region:     envOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:  os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:  os.Getenv("S3_SECRET_KEY"),
		S3Bucket:     envOrDefault("S3_BUCKET_DOCUMENTS", "lease-documents"),
		S3PublicURL:  os.Getenv("S3_PUBLIC_URL"),
		S3Collection: envOrDefault("S3_COLLECTION", "leases"),

		DefaultRegion: envOrDefault("DEFAULT_REGION", "CO"),
		TemplateDirs: envList("TEMPLATE_DIRS",
			"./templates/pdf", "./assets/templates", "/usr/share/leasedocs/templates"),
		PrewarmKinds: envList("PREWARM_KINDS", "Lease"),

		TemplateMetadataTTL: envMillis("TEMPLATE_METADATA_TTL_MS", 5*time.Minute),
		TemplateContentTTL:  envMillis("TEMPLATE_CONTENT_TTL_MS", 30*time.Minute),
		RenderTTL:           envMillis("RENDER_TTL_MS", 5*time.Minute),
		CacheMaxEntries:     envInt("CACHE_MAX_ENTRIES", 128),
		CacheSweepInterval:  envMillis("CACHE_SWEEP_INTERVAL_MS", time.Minute),

		EngineMemoryThreshold: uint64(envInt64("ENGINE_MEMORY_THRESHOLD_BYTES", 1<<30)),
		EngineCheckInterval:   envMillis("ENGINE_MEMORY_CHECK_INTERVAL_MS", 30*time.Second),
		ChromePath:            os.Getenv("CHROME_PATH"),

		UploadRetries: envInt("UPLOAD_RETRIES", 3),
	}

	if cfg.Env == "production" {
		if cfg.DBHost != "" && cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.S3Endpoint == "" {
			return nil, fmt.Errorf("S3_ENDPOINT must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt reads an integer environment variable. Malformed values fall
// back to the default rather than failing startup.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// envMillis reads a millisecond duration environment variable.
func envMillis(key string, fallback time.Duration) time.Duration {
	ms := envInt64(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// envList reads a comma-separated environment variable, trimming blanks.
func envList(key string, fallback ...string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
