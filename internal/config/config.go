package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shaibs3/PriceTracker/internal/fetcher"
	"go.uber.org/zap"
)

// Config holds all application-level configuration
type Config struct {
	Environment string
	LogLevel    string
	Port        string

	// StoreConfig is the JSON provider config handed to the store factory.
	StoreConfig string

	TrackingInterval  time.Duration
	TrackingAutoStart bool

	FetchAttempts   int
	FetchRetryDelay time.Duration
	FetchTimeout    time.Duration
	FetchUserAgent  string

	DisplayPollInterval time.Duration

	RPSLimit float64
	RPSBurst int
}

// Load reads an optional .env file and then the environment, falling back to defaults.
func Load(logger *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}

	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Port:                getEnv("PORT", "8080"),
		StoreConfig:         getEnv("STORE_CONFIG", defaultStoreConfig()),
		TrackingInterval:    time.Duration(getEnvInt(logger, "TRACKING_INTERVAL_MINUTES", 60)) * time.Minute,
		TrackingAutoStart:   getEnvBool(logger, "TRACKING_AUTOSTART", false),
		FetchAttempts:       getEnvInt(logger, "FETCH_ATTEMPTS", 3),
		FetchRetryDelay:     time.Duration(getEnvInt(logger, "FETCH_RETRY_DELAY_SECONDS", 5)) * time.Second,
		FetchTimeout:        time.Duration(getEnvInt(logger, "FETCH_TIMEOUT_SECONDS", 10)) * time.Second,
		FetchUserAgent:      getEnv("FETCH_USER_AGENT", fetcher.DefaultUserAgent),
		DisplayPollInterval: time.Duration(getEnvInt(logger, "DISPLAY_POLL_INTERVAL_MS", 100)) * time.Millisecond,
		RPSLimit:            getEnvFloat(logger, "RPS_LIMIT", 10),
		RPSBurst:            getEnvInt(logger, "RPS_BURST", 20),
	}

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
		zap.String("port", cfg.Port),
		zap.Duration("tracking_interval", cfg.TrackingInterval),
		zap.Bool("tracking_autostart", cfg.TrackingAutoStart),
		zap.Int("fetch_attempts", cfg.FetchAttempts),
	)
	return cfg
}

func defaultStoreConfig() string {
	b, _ := json.Marshal(map[string]interface{}{
		"db_type":       "sqlite",
		"extra_details": map[string]interface{}{"path": "price_tracking.db"},
	})
	return string(b)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(logger *zap.Logger, key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		logger.Warn("ignoring invalid integer setting", zap.String("key", key), zap.String("value", val))
		return defaultVal
	}
	return n
}

func getEnvFloat(logger *zap.Logger, key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		logger.Warn("ignoring invalid number setting", zap.String("key", key), zap.String("value", val))
		return defaultVal
	}
	return f
}

func getEnvBool(logger *zap.Logger, key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		logger.Warn("ignoring invalid boolean setting", zap.String("key", key), zap.String("value", val))
		return defaultVal
	}
	return b
}
