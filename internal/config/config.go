package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Scryfall ScryfallConfig
	Jobs     JobsConfig
	Lock     LockConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	MaxUploadBytes int64
	FrontendPath   string
}

// DatabaseConfig selects the gorm dialector. Driver is "sqlite" or "mysql".
type DatabaseConfig struct {
	Driver string
	Path   string
	DSN    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// ScryfallConfig controls the card metadata lookup client
type ScryfallConfig struct {
	BaseURL      string
	RequestDelay time.Duration
	Timeout      time.Duration
	CacheSize    int
	CacheTTL     time.Duration
}

// JobsConfig controls background enrichment jobs
type JobsConfig struct {
	CommitEvery         int
	RefreshMissingLimit int
	AlertDedupWindow    time.Duration
	MonitorInterval     time.Duration
	SnapshotHour        int
	MaxConcurrent       int
}

// LockConfig controls the per-owner job lock. An empty RedisAddr keeps locks in process.
type LockConfig struct {
	RedisAddr     string
	RedisPassword string
	TTL           time.Duration
}

// Load reads an optional .env file and then builds the configuration from the environment
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Config: failed to load .env: %v", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvOrDefault("PORT", "8080"),
			AllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
			MaxUploadBytes: int64(getInt("MAX_UPLOAD_MB", 20)) << 20,
			FrontendPath:   os.Getenv("FRONTEND_DIST_PATH"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnvOrDefault("DB_DRIVER", "sqlite")),
			Path:   getEnvOrDefault("DB_PATH", "./tcg_inventory.db"),
			DSN:    os.Getenv("DB_DSN"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
		Scryfall: ScryfallConfig{
			BaseURL:      strings.TrimRight(getEnvOrDefault("SCRYFALL_BASE_URL", "https://api.scryfall.com"), "/"),
			RequestDelay: getDuration("SCRYFALL_REQUEST_DELAY", 50*time.Millisecond),
			Timeout:      getDuration("SCRYFALL_TIMEOUT", 5*time.Second),
			CacheSize:    getInt("LOOKUP_CACHE_SIZE", 5000),
			CacheTTL:     getDuration("LOOKUP_CACHE_TTL", time.Hour),
		},
		Jobs: JobsConfig{
			CommitEvery:         getInt("ENRICH_COMMIT_EVERY", 10),
			RefreshMissingLimit: getInt("REFRESH_MISSING_LIMIT", 200),
			AlertDedupWindow:    getDuration("ALERT_DEDUP_WINDOW", 24*time.Hour),
			MonitorInterval:     getDuration("PRICE_MONITOR_INTERVAL", time.Hour),
			SnapshotHour:        getHour("SNAPSHOT_HOUR", 23),
			MaxConcurrent:       getInt("MAX_CONCURRENT_JOBS", 4),
		},
		Lock: LockConfig{
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			TTL:           getDuration("JOB_LOCK_TTL", 30*time.Minute),
		},
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			return parsed
		}
		log.Printf("Config: ignoring invalid %s=%q", key, v)
	}
	return defaultValue
}

// getHour accepts 0-23, unlike getInt which requires a positive value
func getHour(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 && parsed <= 23 {
			return parsed
		}
		log.Printf("Config: ignoring invalid %s=%q", key, v)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && parsed > 0 {
			return parsed
		}
		log.Printf("Config: ignoring invalid %s=%q", key, v)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
