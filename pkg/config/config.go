package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	Port        string
	Environment string

	// Scheduler configuration
	SchedulerEnabled  bool
	RecomputeSchedule string
	LifecycleSchedule string
	SnapshotSchedule  string
	SyncRetrySchedule string
	JobTimeout        time.Duration

	// External sync configuration
	SyncEndpoint string
	SyncAPIKey   string

	// Security configuration
	AllowedOrigins  string
	TrustedProxies  string
	EnableRateLimit bool
	MaxRequestSize  int64
}

// New creates a new configuration instance from environment variables
func New() *Config {
	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		SchedulerEnabled:  getEnv("SCHEDULER_ENABLED", "true") == "true",
		RecomputeSchedule: getEnv("RECOMPUTE_SCHEDULE", "0 2 * * *"),
		LifecycleSchedule: getEnv("LIFECYCLE_SCHEDULE", "30 2 * * *"),
		SnapshotSchedule:  getEnv("SNAPSHOT_SCHEDULE", "0 3 1 * *"),
		SyncRetrySchedule: getEnv("SYNC_RETRY_SCHEDULE", "*/15 * * * *"),
		JobTimeout:        getEnvAsDuration("JOB_TIMEOUT", 10*time.Minute),

		SyncEndpoint: getEnv("SYNC_ENDPOINT", ""),
		SyncAPIKey:   getEnv("SYNC_API_KEY", ""),

		AllowedOrigins:  getEnv("ALLOWED_ORIGINS", ""),
		TrustedProxies:  getEnv("TRUSTED_PROXIES", ""),
		EnableRateLimit: getEnv("ENABLE_RATE_LIMIT", "true") == "true",
		MaxRequestSize:  getEnvAsInt64("MAX_REQUEST_SIZE", 10*1024*1024), // 10MB default
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasSyncEndpoint returns true if an external sync target is configured
func (c *Config) HasSyncEndpoint() bool {
	return c.SyncEndpoint != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetAllowedOrigins returns a slice of allowed CORS origins
func (c *Config) GetAllowedOrigins() []string {
	if c.AllowedOrigins == "" {
		return []string{}
	}
	return strings.Split(c.AllowedOrigins, ",")
}

// GetTrustedProxies returns a slice of trusted proxy IPs
func (c *Config) GetTrustedProxies() []string {
	if c.TrustedProxies == "" {
		return []string{} // No trusted proxies by default
	}
	return strings.Split(c.TrustedProxies, ",")
}

// IsSecurityEnabled returns true if security features should be enabled
func (c *Config) IsSecurityEnabled() bool {
	return c.IsProduction() || getEnv("ENABLE_SECURITY", "false") == "true"
}
