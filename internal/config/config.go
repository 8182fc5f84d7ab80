package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// GitLab
	GitLabURL   string
	GitLabToken string

	// API Server
	APIPort string
	APIHost string

	// Aggregation
	RulesPath         string
	DefaultWindowDays int
	MaxWindowDays     int

	// CLI
	APIEndpoint string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		GitLabURL:         getEnv("GITLAB_API_URL", "https://gitlab.com"),
		GitLabToken:       getEnv("GITLAB_API_TOKEN", ""),
		APIPort:           getEnv("API_PORT", "8080"),
		APIHost:           getEnv("API_HOST", "localhost"),
		RulesPath:         getEnv("RULES_PATH", ""),
		DefaultWindowDays: getEnvInt("DEFAULT_WINDOW_DAYS", 30),
		MaxWindowDays:     getEnvInt("MAX_WINDOW_DAYS", 365),
		APIEndpoint:       getEnv("API_ENDPOINT", "http://localhost:8080"),
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GitLabToken == "" {
		return &ConfigError{Field: "GITLAB_API_TOKEN", Message: "GitLab token is required"}
	}
	if c.DefaultWindowDays <= 0 {
		return &ConfigError{Field: "DEFAULT_WINDOW_DAYS", Message: "must be positive"}
	}
	if c.MaxWindowDays < c.DefaultWindowDays {
		return &ConfigError{Field: "MAX_WINDOW_DAYS", Message: "must be at least DEFAULT_WINDOW_DAYS"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
