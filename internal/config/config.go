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
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Scheduling
	TimeZone                 string
	SchedulerEnabled         bool
	SchedulerIntervalSeconds int
	WorkerCount              int

	// Google Calendar
	GoogleClientID         string
	GoogleClientSecret     string
	GoogleRedirectURL      string
	CalendarTimeoutSeconds int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                     getEnvOrDefault("PORT", "8080"),
		Env:                      getEnvOrDefault("ENV", "development"),
		DatabaseURL:              mustGetEnv("DATABASE_URL"),
		RedisURL:                 getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:                mustGetEnv("JWT_SECRET"),
		TimeZone:                 getEnvOrDefault("APP_TIMEZONE", "UTC"),
		SchedulerEnabled:         getEnvAsBoolOrDefault("SCHEDULER_ENABLED", true),
		SchedulerIntervalSeconds: getEnvAsIntOrDefault("SCHEDULER_INTERVAL_SECONDS", 60),
		WorkerCount:              getEnvAsIntOrDefault("WORKER_COUNT", 3),
		GoogleClientID:           getEnvOrDefault("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:       getEnvOrDefault("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:        getEnvOrDefault("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/v1/calendar/callback"),
		CalendarTimeoutSeconds:   getEnvAsIntOrDefault("CALENDAR_TIMEOUT_SECONDS", 10),
		FrontendURL:              getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// Location resolves the reference timezone that session dates and times are
// interpreted in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func (c *Config) SchedulerInterval() time.Duration {
	if c.SchedulerIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SchedulerIntervalSeconds) * time.Second
}

func (c *Config) CalendarTimeout() time.Duration {
	if c.CalendarTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.CalendarTimeoutSeconds) * time.Second
}

func (c *Config) CalendarConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
