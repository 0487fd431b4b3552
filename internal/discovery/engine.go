// Package discovery fans a request out over venue sources, merges duplicate
// venues across sources and returns a ranked, category-diverse list.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/models"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/logging"
	"venue-discovery/pkg/metrics"
)

// Source is one venue provider. Priority orders sources when the same venue
// is reported more than once (higher wins).
type Source interface {
	Name() string
	Type() models.SourceType
	Priority() int
	Discover(ctx context.Context, req models.RequestContext) ([]*models.Venue, error)
}

type Options struct {
	Concurrency   int
	Limit         int
	RPS           float64 // <= 0 disables pacing
	Burst         int
	SourceTimeout time.Duration
	Logger        *logging.ComponentLogger
}

// SourceReport describes one source call of a run.
type SourceReport struct {
	Name     string        `json:"name"`
	Count    int           `json:"count"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Metadata struct {
	Sources    []SourceReport `json:"sources"`
	Discovered int            `json:"discovered"`
	Merged     int            `json:"merged"`
	Returned   int            `json:"returned"`
	Duration   time.Duration  `json:"duration"`
}

type Result struct {
	Venues   []*models.Venue `json:"venues"`
	Metadata Metadata        `json:"metadata"`
}

type entry struct {
	src     Source
	enabled bool
}

type Engine struct {
	mu      sync.RWMutex
	sources []entry
	opts    Options
	limiter *rate.Limiter
	log     *logging.ComponentLogger

	mSourceErrors *prometheus.CounterVec
	mVenues       *metrics.Counter
	mDuration     *metrics.Histogram
}

func NewEngine(opts Options, sources ...Source) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Limit <= 0 {
		opts.Limit = constants.DiscoveryLimitDefault
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = constants.SourceTimeoutDefault
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.Concurrency
	}
	e := &Engine{
		opts:          opts,
		limiter:       rate.NewLimiter(limit, opts.Burst),
		log:           opts.Logger,
		mSourceErrors: metrics.Default.CounterVec("discovery_source_errors_total", "Failed discovery source calls", "source"),
		mVenues:       metrics.Default.Counter("discovery_venues_total", "Venues returned by discovery"),
		mDuration:     metrics.Default.Histogram("discovery_duration_ms", "Discovery run latency in milliseconds", nil),
	}
	for _, s := range sources {
		e.AddSource(s)
	}
	return e
}

// AddSource registers s enabled. A source with the same name is replaced.
func (e *Engine) AddSource(s Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.sources {
		if e.sources[i].src.Name() == s.Name() {
			e.sources[i] = entry{src: s, enabled: true}
			return
		}
	}
	e.sources = append(e.sources, entry{src: s, enabled: true})
}

// SetEnabled toggles the named source. It reports whether it exists.
func (e *Engine) SetEnabled(name string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.sources {
		if e.sources[i].src.Name() == name {
			e.sources[i].enabled = enabled
			return true
		}
	}
	return false
}

// SetLimit changes the number of venues returned per run.
func (e *Engine) SetLimit(n int) {
	if n <= 0 {
		return
	}
	e.mu.Lock()
	e.opts.Limit = n
	e.mu.Unlock()
}

// Sources lists registered source names.
func (e *Engine) Sources() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.sources))
	for i, s := range e.sources {
		out[i] = s.src.Name()
	}
	return out
}

type sourceBatch struct {
	src    Source
	venues []*models.Venue
	err    error
}

// Discover queries every enabled source and returns the merged ranking. It
// fails only when no source is enabled or every source failed.
func (e *Engine) Discover(ctx context.Context, req models.RequestContext) (Result, error) {
	timer := e.mDuration.Start()
	start := time.Now()

	e.mu.RLock()
	var active []Source
	for _, s := range e.sources {
		if s.enabled {
			active = append(active, s.src)
		}
	}
	opts := e.opts
	e.mu.RUnlock()

	if len(active) == 0 {
		return Result{Venues: []*models.Venue{}}, errs.NewBiz("discovery", "no sources enabled", errs.ErrNoSources)
	}

	batches := make([]sourceBatch, len(active))
	reports := make([]SourceReport, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, src := range active {
		g.Go(func() error {
			began := time.Now()
			vs, err := e.call(gctx, src, req, opts.SourceTimeout)
			batches[i] = sourceBatch{src: src, venues: vs, err: err}
			reports[i] = SourceReport{Name: src.Name(), Count: len(vs), Duration: time.Since(began)}
			if err != nil {
				reports[i].Error = err.Error()
				e.mSourceErrors.WithLabelValues(src.Name()).Inc()
				e.log.Warn("discovery source failed",
					logging.String("source", src.Name()),
					logging.String("destination", req.Destination),
					logging.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	failed, discovered := 0, 0
	for _, b := range batches {
		if b.err != nil {
			failed++
			if firstErr == nil {
				firstErr = b.err
			}
			continue
		}
		discovered += len(b.venues)
	}
	meta := Metadata{Sources: reports, Discovered: discovered}
	if failed == len(batches) {
		meta.Duration = time.Since(start)
		timer.Observe()
		return Result{Venues: []*models.Venue{}, Metadata: meta},
			errs.NewBiz("discovery", fmt.Sprintf("%d source(s) failed, first: %v", failed, firstErr), errs.ErrAllSourcesFailed)
	}

	merged := merge(batches, req)
	meta.Merged = len(merged)
	top := diversify(rank(merged), opts.Limit)

	out := make([]*models.Venue, len(top))
	for i, r := range top {
		r.venue.Metadata["discovery_score"] = r.score
		out[i] = r.venue
	}
	meta.Returned = len(out)
	meta.Duration = time.Since(start)
	timer.Observe()
	e.mVenues.Inc(int64(len(out)))

	e.log.Info("discovery complete",
		logging.String("destination", req.Destination),
		logging.Int("sources", len(active)),
		logging.Int("failed", failed),
		logging.Int("discovered", discovered),
		logging.Int("merged", meta.Merged),
		logging.Int("returned", meta.Returned),
		logging.Duration("duration", meta.Duration))
	return Result{Venues: out, Metadata: meta}, nil
}

// call paces, bounds and isolates one source call.
func (e *Engine) call(ctx context.Context, src Source, req models.RequestContext, timeout time.Duration) (venues []*models.Venue, err error) {
	defer func() {
		if r := recover(); r != nil {
			venues = nil
			err = errs.NewBiz("discovery."+src.Name(), fmt.Sprintf("source panicked: %v", r), nil)
		}
	}()
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return src.Discover(cctx, req)
}
