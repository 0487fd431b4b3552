package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/models"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/events"
	"venue-discovery/pkg/logging"
	"venue-discovery/pkg/metrics"
)

// ProcessingConfig holds the run-level knobs of the engine.
type ProcessingConfig struct {
	ConfidenceThreshold float64
	MaxRecommendations  int
	Retry               Policy
}

func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		ConfidenceThreshold: constants.ConfidenceThresholdDefault,
		MaxRecommendations:  constants.MaxRecommendationsDefault,
		Retry:               DefaultPolicy(),
	}
}

// StageStats aggregates executions of one stage across runs.
type StageStats struct {
	Runs            int64         `json:"runs"`
	Failures        int64         `json:"failures"`
	Fallbacks       int64         `json:"fallbacks"`
	Attempts        int64         `json:"attempts"`
	AverageDuration time.Duration `json:"average_duration"`
}

// ProcessingStats are updated after every run, success or failure.
type ProcessingStats struct {
	TotalRuns       int64                 `json:"total_runs"`
	SuccessfulRuns  int64                 `json:"successful_runs"`
	FailedRuns      int64                 `json:"failed_runs"`
	AverageDuration time.Duration         `json:"average_duration"`
	LastRun         time.Time             `json:"last_run"`
	Stages          map[string]StageStats `json:"stages"`
}

// RunMetadata describes one run.
type RunMetadata struct {
	RunID         string                     `json:"run_id"`
	FailedAt      string                     `json:"failed_at,omitempty"`
	Stages        []*models.ProcessingResult `json:"stages"`
	QualityChecks []CheckResult              `json:"quality_checks"`
	Filtered      int                        `json:"filtered"`
	StartedAt     time.Time                  `json:"started_at"`
	Duration      time.Duration              `json:"duration"`
}

// RunResult never carries a partial success: Data is nil when Success is
// false and Metadata.FailedAt names the stage that aborted the run.
type RunResult struct {
	Success  bool                 `json:"success"`
	Data     *models.PipelineData `json:"data,omitempty"`
	Error    error                `json:"-"`
	Message  string               `json:"error,omitempty"`
	Metadata RunMetadata          `json:"metadata"`
}

// ProcessingEngine runs registered stages strictly in order for each request.
type ProcessingEngine struct {
	mu        sync.RWMutex
	stages    []Stage
	fallbacks map[string]FallbackFunc
	checkers  []QualityChecker
	cfg       ProcessingConfig

	stats   ProcessingStats
	statsMu sync.Mutex

	eventStore events.EventStore
	log        *logging.ComponentLogger

	mRuns     *metrics.Counter
	mFailures *metrics.Counter
	mDuration *metrics.Histogram
}

func NewProcessingEngine(cfg ProcessingConfig, log *logging.ComponentLogger) *ProcessingEngine {
	return &ProcessingEngine{
		fallbacks: map[string]FallbackFunc{},
		cfg:       cfg,
		stats:     ProcessingStats{Stages: map[string]StageStats{}},
		log:       log,
		mRuns:     metrics.Default.Counter("pipeline_runs_total", "Pipeline runs"),
		mFailures: metrics.Default.Counter("pipeline_failures_total", "Pipeline runs that failed"),
		mDuration: metrics.Default.Histogram("pipeline_duration_ms", "Pipeline run latency in milliseconds", nil),
	}
}

// AddStage appends s to the run order.
func (e *ProcessingEngine) AddStage(s Stage) {
	e.mu.Lock()
	e.stages = append(e.stages, s)
	e.mu.Unlock()
}

// RegisterFallback sets the handler used when the named stage exhausts its
// attempts. A nil fn removes it.
func (e *ProcessingEngine) RegisterFallback(stage string, fn FallbackFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn == nil {
		delete(e.fallbacks, stage)
		return
	}
	e.fallbacks[stage] = fn
}

func (e *ProcessingEngine) AddQualityChecker(c QualityChecker) {
	e.mu.Lock()
	e.checkers = append(e.checkers, c)
	e.mu.Unlock()
}

// SetEventStore enables best-effort run history.
func (e *ProcessingEngine) SetEventStore(es events.EventStore) {
	e.mu.Lock()
	e.eventStore = es
	e.mu.Unlock()
}

// ApplyConfig swaps run-level settings. Stats are untouched.
func (e *ProcessingEngine) ApplyConfig(cfg ProcessingConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	e.log.Info("pipeline config applied",
		logging.Float64("confidence_threshold", cfg.ConfidenceThreshold),
		logging.Int("max_recommendations", cfg.MaxRecommendations),
		logging.Int("retry_attempts", cfg.Retry.MaxAttempts),
		logging.Duration("stage_timeout", cfg.Retry.Timeout))
}

func (e *ProcessingEngine) Config() ProcessingConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// StageNames lists stages in run order.
func (e *ProcessingEngine) StageNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.stages))
	for i, s := range e.stages {
		out[i] = s.Name()
	}
	return out
}

// Run executes the pipeline for req.
func (e *ProcessingEngine) Run(ctx context.Context, req models.RequestContext) RunResult {
	return e.RunWith(ctx, &models.PipelineData{Request: req})
}

// RunWith executes the pipeline starting from initial, which is not modified.
func (e *ProcessingEngine) RunWith(ctx context.Context, initial *models.PipelineData) RunResult {
	e.mu.RLock()
	stages := append([]Stage(nil), e.stages...)
	checkers := append([]QualityChecker(nil), e.checkers...)
	fallbacks := make(map[string]FallbackFunc, len(e.fallbacks))
	for k, v := range e.fallbacks {
		fallbacks[k] = v
	}
	cfg := e.cfg
	store := e.eventStore
	e.mu.RUnlock()

	timer := e.mDuration.Start()
	meta := RunMetadata{
		RunID:         uuid.NewString(),
		StartedAt:     time.Now(),
		Stages:        make([]*models.ProcessingResult, 0, len(stages)),
		QualityChecks: []CheckResult{},
	}
	log := e.log.With(logging.String("run_id", meta.RunID))
	if initial == nil {
		initial = &models.PipelineData{}
	}
	e.emit(ctx, store, events.RunStarted{
		Base:        events.NewBase(meta.RunID),
		Destination: initial.Request.Destination,
		Stages:      stageNames(stages),
	})

	current := initial.Clone()
	for _, st := range stages {
		pr, next, err := e.runStage(ctx, st, current, cfg.Retry, fallbacks[st.Name()], log)
		meta.Stages = append(meta.Stages, pr)
		e.recordStage(st.Name(), pr, err != nil)
		if err != nil {
			meta.FailedAt = st.Name()
			meta.Duration = time.Since(meta.StartedAt)
			timer.Observe()
			e.finish(false, meta.Duration)
			e.emit(ctx, store, events.StageFailed{
				Base: events.NewBase(meta.RunID), Stage: st.Name(), Attempts: pr.Attempts, Error: err.Error(),
			})
			e.emit(ctx, store, events.RunCompleted{
				Base: events.NewBase(meta.RunID), Success: false, FailedAt: meta.FailedAt, Duration: meta.Duration,
			})
			log.Warn("pipeline run failed",
				logging.String("failed_at", meta.FailedAt),
				logging.Int("attempts", pr.Attempts),
				logging.Error(err))
			return RunResult{Success: false, Error: err, Message: err.Error(), Metadata: meta}
		}
		e.emit(ctx, store, events.StageCompleted{
			Base:         events.NewBase(meta.RunID),
			Stage:        st.Name(),
			Attempts:     pr.Attempts,
			UsedFallback: pr.UsedFallback,
			Elapsed:      pr.Elapsed,
		})
		current = next
	}

	for _, c := range checkers {
		meta.QualityChecks = append(meta.QualityChecks, safeCheck(c, current))
	}
	meta.Filtered = finalFilter(current, cfg)
	meta.Duration = time.Since(meta.StartedAt)
	timer.Observe()
	e.finish(true, meta.Duration)
	e.emit(ctx, store, events.RunCompleted{
		Base:            events.NewBase(meta.RunID),
		Success:         true,
		Recommendations: len(current.Recommendations),
		Filtered:        meta.Filtered,
		Duration:        meta.Duration,
	})
	log.Info("pipeline run complete",
		logging.String("destination", current.Request.Destination),
		logging.Int("recommendations", len(current.Recommendations)),
		logging.Int("filtered", meta.Filtered),
		logging.Duration("duration", meta.Duration))
	return RunResult{Success: true, Data: current, Metadata: meta}
}

// runStage attempts st under policy and falls back when it is exhausted.
// The returned data is a fresh copy; in is never modified.
func (e *ProcessingEngine) runStage(ctx context.Context, st Stage, in *models.PipelineData, policy Policy, fb FallbackFunc, log *logging.ComponentLogger) (*models.ProcessingResult, *models.PipelineData, error) {
	pr := models.NewProcessingResult(st.Name())
	pr.Start()
	start := time.Now()

	policy.OnFailure = func(n int, err error) {
		pr.AddError(fmt.Errorf("attempt %d: %w", n, err))
	}
	out, attempts, err := Retry(ctx, policy, func(actx context.Context) (*models.PipelineData, error) {
		work := in.Clone()
		if err := st.Process(actx, work); err != nil {
			return nil, err
		}
		return work, nil
	})
	pr.Attempts = attempts
	if err == nil {
		pr.Complete(out, time.Since(start))
		return pr, out, nil
	}
	log.Warn("stage exhausted attempts",
		logging.String("stage", st.Name()),
		logging.Int("attempts", attempts),
		logging.Error(err))

	if fb == nil || ctx.Err() != nil {
		serr := errs.NewStage(st.Name(), attempts, err)
		pr.Fail(serr, time.Since(start))
		return pr, nil, serr
	}
	work := in.Clone()
	if ferr := safeFallback(ctx, fb, work, err); ferr != nil {
		serr := errs.NewStage(st.Name(), attempts, fmt.Errorf("%w; fallback failed: %v", err, ferr))
		pr.Fail(serr, time.Since(start))
		return pr, nil, serr
	}
	pr.UsedFallback = true
	pr.AddWarning(fmt.Sprintf("fallback used after %d attempt(s): %v", attempts, err))
	pr.Complete(work, time.Since(start))
	log.Info("stage fallback used", logging.String("stage", st.Name()))
	return pr, work, nil
}

func safeFallback(ctx context.Context, fb FallbackFunc, data *models.PipelineData, cause error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fallback panicked: %v", r)
		}
	}()
	return fb(ctx, data, cause)
}

func safeCheck(c QualityChecker, data *models.PipelineData) (res CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			res = CheckResult{Name: c.Name(), Passed: false, Message: fmt.Sprintf("checker panicked: %v", r)}
		}
	}()
	// checkers see a copy so a misbehaving one cannot alter the result
	return c.Check(data.Clone())
}

// finalFilter drops recommendations below the confidence threshold and
// truncates to the limit. It returns how many were removed.
func finalFilter(data *models.PipelineData, cfg ProcessingConfig) int {
	before := len(data.Recommendations)
	kept := data.Recommendations[:0]
	for _, r := range data.Recommendations {
		if r.Venue == nil || r.Venue.ConfidenceScore < cfg.ConfidenceThreshold {
			continue
		}
		kept = append(kept, r)
	}
	if cfg.MaxRecommendations > 0 && len(kept) > cfg.MaxRecommendations {
		kept = kept[:cfg.MaxRecommendations]
	}
	if kept == nil {
		kept = []models.Recommendation{}
	}
	data.Recommendations = kept
	return before - len(kept)
}

func stageNames(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.Name()
	}
	return out
}

func (e *ProcessingEngine) emit(ctx context.Context, store events.EventStore, ev events.Event) {
	if store == nil {
		return
	}
	// history must not fail or stall a run
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DBWriteTimeoutDefault)
	defer cancel()
	if err := store.Append(wctx, ev); err != nil {
		e.log.Warn("run event not recorded", logging.String("type", ev.Type()), logging.Error(err))
	}
}

func (e *ProcessingEngine) recordStage(name string, pr *models.ProcessingResult, failed bool) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	s := e.stats.Stages[name]
	s.Runs++
	s.Attempts += int64(pr.Attempts)
	if failed {
		s.Failures++
	}
	if pr.UsedFallback {
		s.Fallbacks++
	}
	s.AverageDuration = rollingAverage(s.AverageDuration, pr.Elapsed, s.Runs)
	e.stats.Stages[name] = s
}

func (e *ProcessingEngine) finish(success bool, d time.Duration) {
	e.mRuns.Inc(1)
	if !success {
		e.mFailures.Inc(1)
	}
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats.TotalRuns++
	if success {
		e.stats.SuccessfulRuns++
	} else {
		e.stats.FailedRuns++
	}
	e.stats.AverageDuration = rollingAverage(e.stats.AverageDuration, d, e.stats.TotalRuns)
	e.stats.LastRun = time.Now()
}

func rollingAverage(avg, sample time.Duration, n int64) time.Duration {
	if n <= 1 {
		return sample
	}
	return avg + (sample-avg)/time.Duration(n)
}

// GetStats returns a copy of the current statistics.
func (e *ProcessingEngine) GetStats() ProcessingStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	out := e.stats
	out.Stages = make(map[string]StageStats, len(e.stats.Stages))
	for k, v := range e.stats.Stages {
		out.Stages[k] = v
	}
	return out
}

// ResetStats zeroes statistics without touching stages or config.
func (e *ProcessingEngine) ResetStats() {
	e.statsMu.Lock()
	e.stats = ProcessingStats{Stages: map[string]StageStats{}}
	e.statsMu.Unlock()
}
