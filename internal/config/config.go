package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	NASAAPIKey        string
	GeminiAPIKey      string
	GeminiModel       string
	GoogleGeocoderKey string

	// HTTPTimeout bounds every outbound provider call.
	HTTPTimeout time.Duration

	// PrefetchInterval controls how often the recent-imagery window is
	// refreshed; PrefetchWindowDays is its size in days.
	PrefetchInterval   time.Duration
	PrefetchWindowDays int

	// Snapshot cache retention.
	StoreMaxEntries int           // max cached snapshots (0 = unlimited)
	StoreMaxAge     time.Duration // max snapshot age (0 = unlimited)

	// LuminanceStride is the pixel sampling step for theme analysis.
	LuminanceStride int

	// SplashInterval is the fixed splash display time used by the view
	// state machine.
	SplashInterval time.Duration

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.NASAAPIKey = os.Getenv("NASA_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getenvDefault("GEMINI_MODEL", "gemini-2.0-flash-lite")
	cfg.GoogleGeocoderKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	// Prefetch interval: default hourly.
	intervalStr := getenvDefault("PREFETCH_INTERVAL", "1h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PREFETCH_INTERVAL: %w", err)
	}
	cfg.PrefetchInterval = interval
	cfg.PrefetchWindowDays = getenvInt("PREFETCH_WINDOW_DAYS", 10)

	// Snapshot cache retention.
	cfg.StoreMaxEntries = getenvInt("STORE_MAX_ENTRIES", 128)

	maxAgeStr := getenvDefault("STORE_MAX_AGE", "24h")
	maxAge, err := time.ParseDuration(maxAgeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	cfg.StoreMaxAge = maxAge

	cfg.LuminanceStride = getenvInt("LUMINANCE_STRIDE", 10)

	splashStr := getenvDefault("SPLASH_INTERVAL", "2s")
	splash, err := time.ParseDuration(splashStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SPLASH_INTERVAL: %w", err)
	}
	cfg.SplashInterval = splash

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
