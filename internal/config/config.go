package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort          = "8000"
	DefaultDatabasePath  = "db/earworm.db"
	DefaultDataDir       = "data"
	DefaultRecognizerURL = "https://shazam.p.rapidapi.com"
	DefaultPollInterval  = 5 * time.Second
)

// Config holds all application configuration
type Config struct {
	Port          string
	DatabasePath  string
	DataDir       string
	RecognizerURL string
	RecognizerKey string
	PollInterval  time.Duration
	LogLevel      string
	LogFormat     string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", DefaultPort),
		DatabasePath:  getEnv("EARWORM_DATABASE", DefaultDatabasePath),
		DataDir:       getEnv("EARWORM_DATA_DIR", DefaultDataDir),
		RecognizerURL: getEnv("RECOGNIZER_URL", DefaultRecognizerURL),
		RecognizerKey: getEnv("RECOGNIZER_API_KEY", ""),
		PollInterval:  getDuration("POLL_INTERVAL", DefaultPollInterval),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DatabasePath == "" {
		errors = append(errors, "EARWORM_DATABASE cannot be empty")
	}

	if c.DataDir == "" {
		errors = append(errors, "EARWORM_DATA_DIR cannot be empty")
	}

	if c.RecognizerURL == "" {
		errors = append(errors, "RECOGNIZER_URL cannot be empty")
	} else {
		if _, err := url.Parse(c.RecognizerURL); err != nil {
			errors = append(errors, fmt.Sprintf("RECOGNIZER_URL is not a valid URL: %s", c.RecognizerURL))
		}
	}

	if c.PollInterval <= 0 {
		errors = append(errors, fmt.Sprintf("POLL_INTERVAL must be positive, got: %s", c.PollInterval))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getDuration retrieves a duration environment variable with a fallback default
func getDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
