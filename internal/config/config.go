package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	DBPath          string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration

	// Refresh scheduling.
	Realtime            bool
	UpdateCheckInterval time.Duration
	StalenessThreshold  time.Duration

	// Collection pipeline.
	BatchSize  int
	Workers    int
	BatchPause time.Duration

	// Forecast API client.
	ForecastBaseURL   string
	ForecastTimeout   time.Duration
	MaxCallsPerMinute int
	MaxCallsPerHour   int
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file is honored when present; its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	addr, err := parseHTTPAddr()
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	checkInterval, err := parseSeconds("UPDATE_CHECK_INTERVAL", 1800)
	if err != nil {
		return nil, err
	}
	staleness, err := parseDuration("STALENESS_THRESHOLD", 12*time.Hour)
	if err != nil {
		return nil, err
	}
	batchSize, err := parseIntInRange("BATCH_SIZE", 20, 1, 500)
	if err != nil {
		return nil, err
	}
	workers, err := parseIntInRange("WORKERS", 5, 1, 64)
	if err != nil {
		return nil, err
	}
	batchPause, err := parseDuration("BATCH_PAUSE", 10*time.Second)
	if err != nil {
		return nil, err
	}
	forecastTimeout, err := parseDuration("FORECAST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	perMinute, err := parseIntInRange("MAX_CALLS_PER_MINUTE", 30, 1, 10000)
	if err != nil {
		return nil, err
	}
	perHour, err := parseIntInRange("MAX_CALLS_PER_HOUR", 1000, 1, 1000000)
	if err != nil {
		return nil, err
	}

	debug := os.Getenv("DEBUG") == "true"
	logLevel := envOrDefault("LOG_LEVEL", "info")
	if debug {
		logLevel = "debug"
	}

	cfg := &Config{
		HTTPAddr:        addr,
		DBPath:          envOrDefault("DB_PATH", "weather_risks.db"),
		LogLevel:        logLevel,
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		Debug:           debug,
		ShutdownTimeout: shutdownTimeout,

		Realtime:            os.Getenv("REALTIME") == "true",
		UpdateCheckInterval: checkInterval,
		StalenessThreshold:  staleness,

		BatchSize:  batchSize,
		Workers:    workers,
		BatchPause: batchPause,

		ForecastBaseURL:   envOrDefault("FORECAST_BASE_URL", "https://api.open-meteo.com"),
		ForecastTimeout:   forecastTimeout,
		MaxCallsPerMinute: perMinute,
		MaxCallsPerHour:   perHour,
	}

	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH must not be empty")
	}
	if cfg.ForecastBaseURL == "" {
		return nil, errors.New("FORECAST_BASE_URL must not be empty")
	}

	return cfg, nil
}

// parseHTTPAddr resolves the listen address from HTTP_ADDR, falling back to
// PORT, then to :5000.
func parseHTTPAddr() (string, error) {
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		return addr, nil
	}
	port := envOrDefault("PORT", "5000")
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", errors.New("invalid PORT")
	}
	return ":" + port, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseSeconds(key string, fallback int) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return time.Duration(fallback) * time.Second, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return time.Duration(n) * time.Second, nil
}

func parseIntInRange(key string, fallback, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: must be %d-%d", key, min, max)
	}
	return n, nil
}
