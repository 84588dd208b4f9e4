package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (optional shared cache backend)
	Redis RedisConfig

	// Market data providers
	Providers ProvidersConfig

	// Scheduler
	SchedulerTimezone string

	// History and retention
	MaxHistoryYears            int
	DividendCheckIntervalHours int
	DailyPricesWindowDays      int
	SystemLogRetentionDays     int

	// Provider router cache
	CacheTTL time.Duration

	// HTTP retry policy
	MaxRetries     int
	RetryDelayBase int

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ProvidersConfig holds API keys for the three market-data providers
type ProvidersConfig struct {
	PrimaryAPIKey  string
	BackupAPIKey   string
	FallbackAPIKey string
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Providers: ProvidersConfig{
			PrimaryAPIKey:  getEnv("PRIMARY_API_KEY", ""),
			BackupAPIKey:   getEnv("BACKUP_API_KEY", ""),
			FallbackAPIKey: getEnv("FALLBACK_API_KEY", ""),
		},

		SchedulerTimezone: getEnv("SCHEDULER_TIMEZONE", "UTC"),

		MaxHistoryYears:            getEnvAsInt("MAX_HISTORY_YEARS", 15),
		DividendCheckIntervalHours: getEnvAsInt("DIVIDEND_CHECK_INTERVAL_HOURS", 24),
		DailyPricesWindowDays:      getEnvAsInt("DAILY_PRICES_WINDOW_DAYS", 365),
		SystemLogRetentionDays:     getEnvAsInt("SYSTEM_LOG_RETENTION_DAYS", 90),

		CacheTTL: time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 3600)) * time.Second,

		MaxRetries:     getEnvAsInt("MAX_RETRIES", 3),
		RetryDelayBase: getEnvAsInt("RETRY_DELAY_BASE", 2),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.MaxHistoryYears <= 0 {
		return fmt.Errorf("MAX_HISTORY_YEARS must be positive")
	}

	if c.DailyPricesWindowDays <= 0 {
		return fmt.Errorf("DAILY_PRICES_WINDOW_DAYS must be positive")
	}

	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}

	if c.RetryDelayBase < 1 {
		return fmt.Errorf("RETRY_DELAY_BASE must be at least 1")
	}

	if _, err := time.LoadLocation(c.SchedulerTimezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE is invalid: %w", err)
	}

	return nil
}

// SchedulerLocation returns the parsed scheduler time zone.
// Validity is checked by validate(), so errors here fall back to UTC.
func (c *Config) SchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.SchedulerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
