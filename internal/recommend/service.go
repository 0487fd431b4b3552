// Package recommend is the entry point that turns a trip request into a
// ranked recommendation list. It wires discovery, quality control, optional
// AI enhancement and ranking into one pipeline run.
package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"venue-discovery/internal/discovery"
	"venue-discovery/internal/fallback"
	"venue-discovery/internal/models"
	"venue-discovery/internal/processor"
	"venue-discovery/internal/quality"
	"venue-discovery/internal/scorer"
	"venue-discovery/pkg/cache"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/events"
	"venue-discovery/pkg/logging"
)

// Stage names, in run order.
const (
	StageDiscovery      = "discovery"
	StageQuality        = "quality"
	StageEnhancement    = "enhancement"
	StageRecommendation = "recommendation"
)

// FailedAtRequest marks responses rejected before the pipeline ran.
const FailedAtRequest = "request"

type Options struct {
	Discovery *discovery.Engine
	Quality   *quality.Controller
	Fallback  *fallback.Manager
	Enhancer  scorer.Enhancer // nil skips the enhancement stage

	Processing processor.ProcessingConfig
	MinResults int

	// Optional caches. Venues are cached per request key before quality
	// control; responses are cached only when successful.
	VenueCache    *cache.Cache[[]*models.Venue]
	ResponseCache *cache.Cache[Response]
	ResponseTTL   time.Duration

	Events events.EventStore
	Logger *logging.ComponentLogger
}

// Response is what callers of GenerateRecommendations receive.
type Response struct {
	Success  bool                    `json:"success"`
	Data     []models.Recommendation `json:"data"`
	Error    string                  `json:"error,omitempty"`
	Metadata ResponseMetadata        `json:"metadata"`
}

type ResponseMetadata struct {
	RunID         string                     `json:"run_id,omitempty"`
	FailedAt      string                     `json:"failedAt,omitempty"`
	Cached        bool                       `json:"cached"`
	Stages        []*models.ProcessingResult `json:"stages,omitempty"`
	QualityChecks []processor.CheckResult    `json:"quality_checks,omitempty"`
	Filtered      int                        `json:"filtered"`
	Candidates    int                        `json:"candidates"`
	Warnings      []string                   `json:"warnings,omitempty"`
	Duration      time.Duration              `json:"duration"`
	GeneratedAt   time.Time                  `json:"generated_at"`
}

func (r Response) clone() Response {
	c := r
	c.Data = make([]models.Recommendation, len(r.Data))
	for i, rec := range r.Data {
		c.Data[i] = rec.Clone()
	}
	c.Metadata.Warnings = append([]string(nil), r.Metadata.Warnings...)
	return c
}

type Service struct {
	discovery *discovery.Engine
	quality   *quality.Controller
	fallback  *fallback.Manager
	enhancer  scorer.Enhancer

	engine      *processor.ProcessingEngine
	venues      *cache.Cache[[]*models.Venue]
	responses   *cache.Cache[Response]
	responseTTL time.Duration
	log         *logging.ComponentLogger
}

func NewService(opts Options) *Service {
	if opts.Quality == nil {
		opts.Quality = quality.NewController(quality.Options{Logger: opts.Logger})
	}
	if opts.MinResults <= 0 {
		opts.MinResults = 3
	}
	s := &Service{
		discovery:   opts.Discovery,
		quality:     opts.Quality,
		fallback:    opts.Fallback,
		enhancer:    opts.Enhancer,
		engine:      processor.NewProcessingEngine(opts.Processing, opts.Logger.With(logging.String("component", "pipeline"))),
		venues:      opts.VenueCache,
		responses:   opts.ResponseCache,
		responseTTL: opts.ResponseTTL,
		log:         opts.Logger,
	}

	s.engine.AddStage(processor.NewStage(StageDiscovery, s.discover))
	if s.fallback != nil {
		s.engine.RegisterFallback(StageDiscovery, s.discoveryFallback)
	}
	s.engine.AddStage(processor.NewStage(StageQuality, s.checkQuality))
	if s.enhancer != nil {
		s.engine.AddStage(processor.NewStage(StageEnhancement, s.enhance))
		s.engine.RegisterFallback(StageEnhancement, skipEnhancement)
	}
	s.engine.AddStage(processor.NewStage(StageRecommendation, recommendStage))
	for _, c := range DefaultChecks(opts.MinResults) {
		s.engine.AddQualityChecker(c)
	}
	if opts.Events != nil {
		s.engine.SetEventStore(opts.Events)
	}
	return s
}

// Engine exposes the pipeline for stats and reconfiguration.
func (s *Service) Engine() *processor.ProcessingEngine { return s.engine }

// GenerateRecommendations runs the pipeline for req. It never returns an
// error: failures are reported with Success=false and Metadata.FailedAt.
func (s *Service) GenerateRecommendations(ctx context.Context, req models.RequestContext) Response {
	req = Normalize(req)
	if err := ValidateRequest(req); err != nil {
		return Response{
			Data:     []models.Recommendation{},
			Error:    err.Error(),
			Metadata: ResponseMetadata{FailedAt: FailedAtRequest, GeneratedAt: time.Now()},
		}
	}

	key := req.CacheKey()
	if s.responses != nil {
		if hit, ok := s.responses.Get(key); ok {
			out := hit.clone()
			out.Metadata.Cached = true
			return out
		}
	}

	res := s.engine.Run(ctx, req)
	out := Response{
		Success: res.Success,
		Data:    []models.Recommendation{},
		Error:   res.Message,
		Metadata: ResponseMetadata{
			RunID:         res.Metadata.RunID,
			FailedAt:      res.Metadata.FailedAt,
			Stages:        res.Metadata.Stages,
			QualityChecks: res.Metadata.QualityChecks,
			Filtered:      res.Metadata.Filtered,
			Duration:      res.Metadata.Duration,
			GeneratedAt:   time.Now(),
		},
	}
	if res.Success && res.Data != nil {
		out.Data = res.Data.Recommendations
		out.Metadata.Candidates = len(res.Data.Venues)
		out.Metadata.Warnings = res.Data.Warnings
		if s.responses != nil {
			s.responses.Set(key, out.clone(), cache.SetOptions{
				TTL:      s.responseTTL,
				Priority: cache.PriorityMedium,
				Tags:     []string{destinationTag(req.Destination)},
			})
		}
	}
	return out
}

// InvalidateDestination drops cached venues and responses for destination.
func (s *Service) InvalidateDestination(destination string) int {
	n := 0
	tag := destinationTag(destination)
	if s.venues != nil {
		n += s.venues.ClearByTags(tag)
	}
	if s.responses != nil {
		n += s.responses.ClearByTags(tag)
	}
	return n
}

// CacheStats reports every configured cache by name.
func (s *Service) CacheStats() map[string]cache.Stats {
	out := map[string]cache.Stats{}
	if s.venues != nil {
		out["venues"] = s.venues.Stats()
	}
	if s.responses != nil {
		out["responses"] = s.responses.Stats()
	}
	return out
}

// OptimizeCaches expires stale entries and re-prioritizes the rest.
func (s *Service) OptimizeCaches() map[string]int {
	out := map[string]int{}
	if s.venues != nil {
		out["venues_expired"] = s.venues.ClearExpired()
		out["venues_reprioritized"] = s.venues.Optimize()
	}
	if s.responses != nil {
		out["responses_expired"] = s.responses.ClearExpired()
		out["responses_reprioritized"] = s.responses.Optimize()
	}
	return out
}

// ClearQualityCache forgets memoized venue evaluations.
func (s *Service) ClearQualityCache() { s.quality.ClearCache() }

func (s *Service) discover(ctx context.Context, data *models.PipelineData) error {
	key := data.Request.CacheKey()
	if s.venues != nil {
		if hit, ok := s.venues.Get(key); ok {
			data.Venues = models.CloneVenues(hit)
			return nil
		}
	}
	if s.discovery == nil {
		return errs.NewBiz("recommend.discover", "no discovery engine", errs.ErrNoSources)
	}
	res, err := s.discovery.Discover(ctx, data.Request)
	if err != nil {
		return err
	}
	if len(res.Venues) == 0 {
		return errs.NewBiz("recommend.discover", "sources returned no venues", errs.ErrEmptyResult)
	}
	for _, r := range res.Metadata.Sources {
		if r.Error != "" {
			data.Warnings = append(data.Warnings, fmt.Sprintf("source %s failed: %s", r.Name, r.Error))
		}
	}
	data.Venues = res.Venues
	if s.venues != nil {
		s.venues.Set(key, models.CloneVenues(res.Venues), cache.SetOptions{Tags: []string{destinationTag(data.Request.Destination)}})
	}
	return nil
}

func (s *Service) discoveryFallback(ctx context.Context, data *models.PipelineData, cause error) error {
	res := s.fallback.Execute(ctx, data.Request, StageDiscovery)
	if res.Exhausted() {
		return fmt.Errorf("%w: %v", errs.ErrNoFallback, cause)
	}
	data.Venues = res.Venues
	data.Warnings = append(data.Warnings, fmt.Sprintf("discovery served by fallback %s (level %d)", res.Source, res.Level))
	return nil
}

func (s *Service) checkQuality(_ context.Context, data *models.PipelineData) error {
	batch := s.quality.ProcessBatch(data.Venues)
	if n := batch.Stats.InvalidCount; n > 0 {
		data.Warnings = append(data.Warnings, fmt.Sprintf("%d venue(s) failed validation", n))
	}
	data.Venues = batch.Valid
	return nil
}

func (s *Service) enhance(ctx context.Context, data *models.PipelineData) error {
	if len(data.Venues) == 0 {
		return nil
	}
	// Enhancers get copies; the originals must survive a rejected enhancement.
	enhanced, err := s.enhancer.Enhance(ctx, models.CloneVenues(data.Venues), data.Request)
	if err != nil {
		return err
	}
	if cerr := scorer.CheckIdentity(data.Venues, enhanced); cerr != nil {
		s.log.Warn("enhancement discarded", logging.Error(cerr))
		data.Warnings = append(data.Warnings, "enhancement discarded: "+cerr.Error())
		return nil
	}
	data.Venues = enhanced
	return nil
}

// skipEnhancement keeps the unenhanced venues when the enhancer is down.
func skipEnhancement(_ context.Context, data *models.PipelineData, cause error) error {
	data.Warnings = append(data.Warnings, "enhancement skipped: "+cause.Error())
	return nil
}

func recommendStage(_ context.Context, data *models.PipelineData) error {
	data.Recommendations = Build(data.Venues, data.Request)
	return nil
}

func destinationTag(d string) string { return "dest:" + strings.ToLower(strings.TrimSpace(d)) }
