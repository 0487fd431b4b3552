package constants

import "time"

// Centralized default values for timeouts, intervals, and related settings.
// These provide sane defaults; environment/config may override where supported.

const (
	// Run history store
	DBReadTimeoutDefault  = 8 * time.Second
	DBWriteTimeoutDefault = 6 * time.Second

	// Google Maps
	GoogleMapsOperationTimeout = 10 * time.Second
	GoogleMapsOpenFor          = 30 * time.Second

	// Feeds
	FeedFetchTimeout = 8 * time.Second
	FeedOpenFor      = 60 * time.Second

	// OpenAI enhancement
	OpenAIOperationTimeout = 30 * time.Second
	OpenAIOpenFor          = 45 * time.Second

	// Pipeline
	StageTimeoutDefault   = 20 * time.Second
	RetryBaseDelayDefault = 500 * time.Millisecond
	RetryAttemptsDefault  = 3

	// Discovery
	SourceTimeoutDefault = 10 * time.Second

	// Adaptive cache
	CacheTTLDefault           = 30 * time.Minute
	CacheSweepIntervalDefault = time.Minute

	// Health
	HealthTimeoutDefault = 5 * time.Second

	// Config watcher
	ConfigWatcherIntervalDefault = 5 * time.Second

	// App shutdown
	GracefulShutdownTimeoutDefault = 10 * time.Second

	// Request budget for one generateRecommendations call over HTTP
	RecommendRequestTimeout = 90 * time.Second
)
