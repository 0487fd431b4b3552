package scorer

import (
	"sync"
	"time"

	"venue-discovery/pkg/metrics"
)

// Per-token prices in USD for the default small chat model.
const (
	promptTokenPrice     = 0.15 / 1_000_000
	completionTokenPrice = 0.60 / 1_000_000
)

// CostTracker tracks OpenAI API usage and costs
type CostTracker struct {
	mu               sync.RWMutex
	totalTokens      int
	totalRequests    int
	estimatedCostUSD float64
	startTime        time.Time

	mTokens *metrics.Counter
}

func NewCostTracker() *CostTracker {
	return &CostTracker{
		startTime: time.Now(),
		mTokens:   metrics.Default.Counter("openai_tokens_total", "OpenAI tokens used"),
	}
}

func (c *CostTracker) AddUsage(promptTokens, completionTokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalTokens += promptTokens + completionTokens
	c.totalRequests++
	c.estimatedCostUSD += float64(promptTokens)*promptTokenPrice + float64(completionTokens)*completionTokenPrice
	if c.mTokens != nil {
		c.mTokens.Inc(int64(promptTokens + completionTokens))
	}
}

// CostStats is a usage snapshot.
type CostStats struct {
	TotalTokens      int           `json:"total_tokens"`
	TotalRequests    int           `json:"total_requests"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
	Since            time.Duration `json:"since"`
}

func (c *CostTracker) Stats() CostStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CostStats{
		TotalTokens:      c.totalTokens,
		TotalRequests:    c.totalRequests,
		EstimatedCostUSD: c.estimatedCostUSD,
		Since:            time.Since(c.startTime),
	}
}
