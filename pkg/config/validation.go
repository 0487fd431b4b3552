package config

import (
	"fmt"
	"strconv"
	"strings"

	errs "venue-discovery/pkg/errors"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error for field '%s' with value '%s': %s", e.Field, e.Value, e.Message)
}

// ConfigValidator collects every violation instead of stopping at the first.
type ConfigValidator struct {
	errors []ValidationError
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

func (cv *ConfigValidator) AddError(field, value, message string) {
	cv.errors = append(cv.errors, ValidationError{Field: field, Value: value, Message: message})
}

func (cv *ConfigValidator) HasErrors() bool { return len(cv.errors) > 0 }

func (cv *ConfigValidator) GetErrors() []ValidationError { return cv.errors }

func (cv *ConfigValidator) GetErrorsAsString() string {
	parts := make([]string, 0, len(cv.errors))
	for _, err := range cv.errors {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "\n")
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	v := NewConfigValidator()

	c.validateFormats(v)
	c.validateRanges(v)
	c.validateEnvironment(v)

	if v.HasErrors() {
		return errs.NewValidation("config.Validate", fmt.Sprintf("configuration validation failed:\n%s", v.GetErrorsAsString()), nil)
	}
	return nil
}

func (c *Config) validateFormats(v *ConfigValidator) {
	for name, port := range map[string]string{"PORT": c.Port, "ADMIN_PORT": c.AdminPort} {
		if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
			v.AddError(name, port, "invalid port number (must be 1-65535)")
		}
	}

	validLogLevels := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	if c.LogLevel != "" && !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		v.AddError("LOG_LEVEL", c.LogLevel, "invalid log level (must be one of: trace, debug, info, warn, error, fatal)")
	}
	if c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "text" {
		v.AddError("LOG_FORMAT", c.LogFormat, "invalid log format (must be 'json' or 'text')")
	}

	if c.DatabaseURL != "" && c.DatabaseDriver != "mysql" && c.DatabaseDriver != "sqlite3" {
		v.AddError("DATABASE_DRIVER", c.DatabaseDriver, "driver must be 'mysql' or 'sqlite3'")
	}
	if c.DatabaseDriver == "mysql" && c.DatabaseURL != "" && !strings.Contains(c.DatabaseURL, "/") {
		v.AddError("DATABASE_URL", maskString(c.DatabaseURL, 8), "invalid mysql DSN format")
	}

	for _, u := range c.FeedURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			v.AddError("FEED_URLS", u, "feed URL must be http(s)")
		}
	}
}

func (c *Config) validateRanges(v *ConfigValidator) {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		v.AddError("CONFIDENCE_THRESHOLD", fmt.Sprint(c.ConfidenceThreshold), "confidence threshold must be between 0 and 100")
	}
	if c.RetryAttempts < 1 || c.RetryAttempts > 10 {
		v.AddError("RETRY_ATTEMPTS", strconv.Itoa(c.RetryAttempts), "retry attempts must be between 1 and 10")
	}
	if c.RetryBaseDelay < 0 {
		v.AddError("RETRY_BASE_DELAY", c.RetryBaseDelay.String(), "retry base delay must not be negative")
	}
	if c.StageTimeout <= 0 {
		v.AddError("STAGE_TIMEOUT", c.StageTimeout.String(), "stage timeout must be positive")
	}
	if c.MaxRecommendations < 1 || c.MaxRecommendations > 200 {
		v.AddError("MAX_RECOMMENDATIONS", strconv.Itoa(c.MaxRecommendations), "max recommendations must be between 1 and 200")
	}
	if c.DiscoveryConcurrency < 1 || c.DiscoveryConcurrency > 32 {
		v.AddError("DISCOVERY_CONCURRENCY", strconv.Itoa(c.DiscoveryConcurrency), "discovery concurrency must be between 1 and 32")
	}
	if c.DiscoveryLimit < 1 {
		v.AddError("DISCOVERY_LIMIT", strconv.Itoa(c.DiscoveryLimit), "discovery limit must be positive")
	}
	if c.SourceRPS <= 0 {
		v.AddError("SOURCE_RPS", fmt.Sprint(c.SourceRPS), "source rate must be positive")
	}
	if c.SourceBurst < 1 {
		v.AddError("SOURCE_BURST", strconv.Itoa(c.SourceBurst), "source burst must be at least 1")
	}
	if c.CacheEnabled && c.CacheMaxSize < 1 {
		v.AddError("CACHE_MAX_SIZE", strconv.Itoa(c.CacheMaxSize), "cache size must be at least 1")
	}
	if c.FallbackMaxQueries < 1 || c.FallbackMaxResults < 1 {
		v.AddError("FALLBACK_MAX_QUERIES", strconv.Itoa(c.FallbackMaxQueries), "fallback query and result caps must be positive")
	}
	if c.OpenAITemperature < 0 || c.OpenAITemperature > 2 {
		v.AddError("OPENAI_TEMPERATURE", fmt.Sprint(c.OpenAITemperature), "temperature must be between 0 and 2")
	}
}

func (c *Config) validateEnvironment(v *ConfigValidator) {
	if c.Port != "" && c.Port == c.AdminPort {
		v.AddError("ADMIN_PORT", c.AdminPort, "port conflict with PORT")
	}
	if c.EnhancementEnabled && c.OpenAIAPIKey == "" {
		v.AddError("OPENAI_API_KEY", "", "enhancement enabled but no OpenAI API key configured")
	}
	if c.Env == "production" && c.GoogleMapsAPIKey == "" && len(c.FeedURLs) == 0 {
		v.AddError("GOOGLE_MAPS_API_KEY", "", "production requires at least one live source (Google Maps key or FEED_URLS)")
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GetConfigSummary returns a summary of the configuration (excluding sensitive data)
func (c *Config) GetConfigSummary() map[string]any {
	return map[string]any{
		"env":                  c.Env,
		"port":                 c.Port,
		"google_maps_api_key":  maskString(c.GoogleMapsAPIKey, 6),
		"openai_api_key":       maskString(c.OpenAIAPIKey, 6),
		"database_url":         maskString(c.DatabaseURL, 10),
		"feed_count":           len(c.FeedURLs),
		"enhancement_enabled":  c.EnhancementEnabled,
		"stage_timeout":        c.StageTimeout.String(),
		"retry_attempts":       c.RetryAttempts,
		"confidence_threshold": c.ConfidenceThreshold,
		"max_recommendations":  c.MaxRecommendations,
		"cache_max_size":       c.CacheMaxSize,
		"log_level":            c.LogLevel,
	}
}

// maskString masks sensitive strings for logging/display
func maskString(s string, keepFirst int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepFirst {
		return strings.Repeat("*", len(s))
	}
	return s[:keepFirst] + strings.Repeat("*", len(s)-keepFirst)
}
