package processor

import (
	"context"

	"venue-discovery/internal/models"
	"venue-discovery/pkg/events"
)

// Engine is the contract the recommendation service and HTTP layer use.
// Keep it small; callers can mock it.
type Engine interface {
	Run(ctx context.Context, req models.RequestContext) RunResult
	RunWith(ctx context.Context, initial *models.PipelineData) RunResult
	GetStats() ProcessingStats
	ResetStats()
	ApplyConfig(cfg ProcessingConfig)
	Config() ProcessingConfig
	SetEventStore(es events.EventStore)
}

// Ensure ProcessingEngine implements Engine.
var _ Engine = (*ProcessingEngine)(nil)
