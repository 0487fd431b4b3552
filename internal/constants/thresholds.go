package constants

// Centralized threshold values used across the application.
// These are not configuration knobs; use pkg/config for env-driven settings.

const (
	// Extraction confidence (0.0 - 1.0)
	ExtractionMinConfidence = 0.4

	// Quality tiers (0 - 100)
	QualityHighTier   = 70.0
	QualityMediumTier = 40.0

	// Recommendation confidence floor (0 - 100)
	ConfidenceThresholdDefault = 40.0
	MaxRecommendationsDefault  = 20

	// Discovery source priorities
	PrioritySearch  = 3
	PrioritySocial  = 2
	PriorityCurated = 1

	// Discovery diversification: per-category cap relaxes once this share of the limit is filled
	DiversityRelaxShare   = 0.8
	DiscoveryLimitDefault = 40

	// Cache eviction stops once occupancy falls below this share of capacity
	CacheEvictionTarget = 0.9

	// Fallback
	FallbackMaxQueriesDefault = 4
	FallbackMaxResultsDefault = 15

	// Circuit breaker thresholds
	CircuitFailureRate       = 0.6 // default for external HTTP
	OpenAICircuitFailureRate = 0.5
	CircuitMaxConsecFailures = 5
)
