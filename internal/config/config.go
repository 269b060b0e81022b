package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// AppConfig holds all configuration inputs. They are read once at startup
// and immutable afterwards; the engine's write-once setters enforce that
// identity fields cannot change mid-run.
type AppConfig struct {
	// StationID is the provider-assigned station identifier.
	StationID string `validate:"required"`

	// APIKey is the Weather Underground credential: 32 lowercase
	// alphanumeric characters.
	APIKey string `validate:"required,len=32,alphanum,lowercase"`

	// DatabasePath is the SQLite file location.
	DatabasePath string `validate:"required"`

	// Active-hours window during which periodic polling is permitted.
	ActiveStart string `validate:"required,datetime=15:04"`
	ActiveEnd   string `validate:"required,datetime=15:04"`

	// PollInterval controls the scheduler tick cadence.
	PollInterval time.Duration

	// HTTPTimeout bounds each outbound provider request.
	HTTPTimeout time.Duration

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		StationID:    os.Getenv("PWS_STATION_ID"),
		APIKey:       os.Getenv("PWS_API_KEY"),
		DatabasePath: getenvDefault("DATABASE_PATH", "data/wunderground.db"),
		ActiveStart:  getenvDefault("ACTIVE_HOURS_START", "06:00"),
		ActiveEnd:    getenvDefault("ACTIVE_HOURS_END", "22:00"),
		Port:         getenvDefault("PORT", "8080"),
	}

	// Poll interval: default hourly, matching the provider's as-of-day
	// aggregation granularity.
	intervalStr := getenvDefault("POLL_INTERVAL", "1h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}
	cfg.PollInterval = interval

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
