package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"venue-discovery/internal/constants"
)

type Config struct {
	Port string
	Env  string // development, staging, production

	// External sources
	GoogleMapsAPIKey string
	FeedURLs         []string
	SourceTimeout    time.Duration
	SourceRPS        float64
	SourceBurst      int

	// AI enhancement
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAITimeout      time.Duration
	OpenAITemperature  float64
	OpenAIMaxTokens    int
	EnhancementEnabled bool
	PromptDir          string // external template overrides; empty = embedded only

	// Discovery
	DiscoveryConcurrency int
	DiscoveryLimit       int

	// Pipeline
	StageTimeout        time.Duration
	RetryAttempts       int
	RetryBaseDelay      time.Duration
	ConfidenceThreshold float64
	MaxRecommendations  int
	StrictValidation    bool

	// Fallback
	FallbackSearchEnabled  bool
	FallbackGenericEnabled bool
	FallbackMaxQueries     int
	FallbackMaxResults     int

	// Adaptive cache
	CacheEnabled       bool
	CacheMaxSize       int
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration

	// Run history store (optional)
	DatabaseDriver string // "mysql" or "sqlite3"
	DatabaseURL    string
	DBWriteTimeout time.Duration
	DBReadTimeout  time.Duration

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"
	LogFile   string

	// Profiling/metrics
	ProfilingEnabled bool
	AdminPort        string
	MetricsEnabled   bool
	MetricsPath      string

	ConfigReloadIntervalSeconds int
}

func Load() *Config {
	env := strings.ToLower(getEnv("ENV", "development"))
	devLike := env == "development" || env == "staging"

	return &Config{
		Port: getEnv("PORT", "8080"),
		Env:  env,

		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		FeedURLs:         getEnvList("FEED_URLS"),
		SourceTimeout:    getEnvDuration("SOURCE_TIMEOUT", constants.SourceTimeoutDefault),
		SourceRPS:        getEnvFloat("SOURCE_RPS", 5),
		SourceBurst:      getEnvInt("SOURCE_BURST", 5),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITimeout:      getEnvDuration("OPENAI_TIMEOUT", constants.OpenAIOperationTimeout),
		OpenAITemperature:  getEnvFloat("OPENAI_TEMPERATURE", 0.2),
		OpenAIMaxTokens:    getEnvInt("OPENAI_MAX_TOKENS", 1200),
		EnhancementEnabled: getEnvBool("ENHANCEMENT_ENABLED", false),
		PromptDir:          getEnv("PROMPT_DIR", ""),

		DiscoveryConcurrency: getEnvInt("DISCOVERY_CONCURRENCY", 3),
		DiscoveryLimit:       getEnvInt("DISCOVERY_LIMIT", 40),

		StageTimeout:        getEnvDuration("STAGE_TIMEOUT", constants.StageTimeoutDefault),
		RetryAttempts:       getEnvInt("RETRY_ATTEMPTS", constants.RetryAttemptsDefault),
		RetryBaseDelay:      getEnvDuration("RETRY_BASE_DELAY", constants.RetryBaseDelayDefault),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 40),
		MaxRecommendations:  getEnvInt("MAX_RECOMMENDATIONS", 20),
		StrictValidation:    getEnvBool("STRICT_VALIDATION", false),

		FallbackSearchEnabled:  getEnvBool("FALLBACK_SEARCH_ENABLED", true),
		FallbackGenericEnabled: getEnvBool("FALLBACK_GENERIC_ENABLED", true),
		FallbackMaxQueries:     getEnvInt("FALLBACK_MAX_QUERIES", 4),
		FallbackMaxResults:     getEnvInt("FALLBACK_MAX_RESULTS", 15),

		CacheEnabled:       getEnvBool("CACHE_ENABLED", true),
		CacheMaxSize:       getEnvInt("CACHE_MAX_SIZE", 500),
		CacheTTL:           getEnvDuration("CACHE_TTL", constants.CacheTTLDefault),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", constants.CacheSweepIntervalDefault),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "mysql")),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBWriteTimeout: getEnvDuration("DB_WRITE_TIMEOUT", constants.DBWriteTimeoutDefault),
		DBReadTimeout:  getEnvDuration("DB_READ_TIMEOUT", constants.DBReadTimeoutDefault),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),

		ProfilingEnabled: getEnvBool("PROFILING_ENABLED", devLike),
		AdminPort:        getEnv("ADMIN_PORT", "6060"),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		MetricsPath:      getEnv("METRICS_PATH", "/metrics"),

		ConfigReloadIntervalSeconds: getEnvInt("CONFIG_RELOAD_INTERVAL_SECONDS", 5),
	}
}

// HistoryEnabled reports whether runs should be persisted.
func (c *Config) HistoryEnabled() bool { return c.DatabaseURL != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration accepts Go durations ("750ms") or bare seconds ("5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func getEnvList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
