package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the reminder engine.
type AppConfig struct {
	TelegramToken string
	// DatabaseDriver selects the sqlx driver: "postgres" or "sqlite3".
	DatabaseDriver string
	DatabaseURL    string
	LogLevel       string
	Environment    string

	// CronSpecDispatch drives the periodic dispatch run in daemon mode.
	CronSpecDispatch string

	DispatchWorkers    int
	DispatchRatePerSec float64
	RecipientTimeout   time.Duration
	RunTimeout         time.Duration
	RunLockStaleAfter  time.Duration

	PreferenceCacheTTL time.Duration
}

// Load reads configuration from environment variables and a .env file (if
// present). godotenv does not override variables already set in the
// environment.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseDriver = os.Getenv("DATABASE_DRIVER")
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "postgres"
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecDispatch = os.Getenv("CRON_SPEC_DISPATCH")
	if cfg.CronSpecDispatch == "" {
		cfg.CronSpecDispatch = "*/5 * * * *" // Default: every 5 minutes
	}

	cfg.DispatchWorkers, err = intEnv("DISPATCH_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	cfg.DispatchRatePerSec, err = floatEnv("DISPATCH_RATE_PER_SEC", 5)
	if err != nil {
		return nil, err
	}

	cfg.RecipientTimeout, err = durationEnv("RECIPIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.RunTimeout, err = durationEnv("RUN_TIMEOUT", 4*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.RunLockStaleAfter, err = durationEnv("RUN_LOCK_STALE_AFTER", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.PreferenceCacheTTL, err = durationEnv("PREFERENCE_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func floatEnv(name string, def float64) (float64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}
