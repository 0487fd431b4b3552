// Package fallback substitutes degraded venue data when a pipeline stage
// fails. Strategies are tried strictly by level until one returns venues.
package fallback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"venue-discovery/internal/models"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/logging"
	"venue-discovery/pkg/metrics"
)

// Strategy is one level of the hierarchy. Lower levels are tried first.
type Strategy interface {
	Level() int
	Name() string
	Fetch(ctx context.Context, req models.RequestContext) ([]*models.Venue, error)
}

// Attempt is the diagnostic record of one strategy.
type Attempt struct {
	Level      int           `json:"level"`
	Name       string        `json:"name"`
	Ran        bool          `json:"ran"`
	Succeeded  bool          `json:"succeeded"`
	VenueCount int           `json:"venue_count"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

type Metadata struct {
	FailedStage string    `json:"failed_stage"`
	Attempts    []Attempt `json:"attempts"`
}

// Result has Level 0 and no venues when every strategy was exhausted.
type Result struct {
	Level    int             `json:"level"`
	Venues   []*models.Venue `json:"venues"`
	Source   string          `json:"source"`
	Metadata Metadata        `json:"metadata"`
}

// Exhausted reports whether no strategy produced venues.
func (r Result) Exhausted() bool { return r.Level == 0 }

type registered struct {
	s       Strategy
	enabled bool
}

type Manager struct {
	mu         sync.RWMutex
	strategies []registered
	log        *logging.ComponentLogger

	mResults *prometheus.CounterVec
}

// NewManager returns an empty manager; see New for the standard hierarchy.
func NewManager(log *logging.ComponentLogger) *Manager {
	return &Manager{
		log:      log,
		mResults: metrics.Default.CounterVec("fallback_results_total", "Fallback executions by serving strategy", "strategy"),
	}
}

// Add registers s. Strategies are kept ordered by level.
func (m *Manager) Add(s Strategy, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies = append(m.strategies, registered{s: s, enabled: enabled})
	sort.SliceStable(m.strategies, func(i, j int) bool {
		return m.strategies[i].s.Level() < m.strategies[j].s.Level()
	})
}

// SetEnabled toggles every strategy at level. Disabled levels are recorded
// as not run.
func (m *Manager) SetEnabled(level int, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.strategies {
		if m.strategies[i].s.Level() == level {
			m.strategies[i].enabled = enabled
		}
	}
}

// Execute walks the hierarchy for req. It never returns an error; callers
// treat an exhausted Result as terminal.
func (m *Manager) Execute(ctx context.Context, req models.RequestContext, failedStage string) Result {
	m.mu.RLock()
	strategies := append([]registered(nil), m.strategies...)
	m.mu.RUnlock()

	res := Result{Venues: []*models.Venue{}, Metadata: Metadata{FailedStage: failedStage, Attempts: []Attempt{}}}
	for _, r := range strategies {
		a := Attempt{Level: r.s.Level(), Name: r.s.Name()}
		if !r.enabled {
			res.Metadata.Attempts = append(res.Metadata.Attempts, a)
			continue
		}
		if err := ctx.Err(); err != nil {
			a.Error = err.Error()
			res.Metadata.Attempts = append(res.Metadata.Attempts, a)
			continue
		}

		a.Ran = true
		start := time.Now()
		venues, err := safeFetch(ctx, r.s, req)
		a.Duration = time.Since(start)
		a.VenueCount = len(venues)
		switch {
		case err != nil:
			a.Error = err.Error()
		case len(venues) == 0:
			a.Error = errs.ErrEmptyResult.Error()
		default:
			a.Succeeded = true
		}
		res.Metadata.Attempts = append(res.Metadata.Attempts, a)
		m.log.Debug("fallback attempt",
			logging.String("strategy", a.Name),
			logging.Int("level", a.Level),
			logging.Bool("succeeded", a.Succeeded),
			logging.Int("venues", a.VenueCount),
			logging.Duration("duration", a.Duration))

		if a.Succeeded {
			for _, v := range venues {
				markFallback(v, a.Level, a.Name)
			}
			res.Level = a.Level
			res.Venues = venues
			res.Source = a.Name
			m.mResults.WithLabelValues(a.Name).Inc()
			m.log.Info("fallback served",
				logging.String("failed_stage", failedStage),
				logging.String("strategy", a.Name),
				logging.Int("venues", len(venues)))
			return res
		}
	}

	m.mResults.WithLabelValues("exhausted").Inc()
	m.log.Warn("fallback exhausted",
		logging.String("failed_stage", failedStage),
		logging.String("destination", req.Destination))
	return res
}

func safeFetch(ctx context.Context, s Strategy, req models.RequestContext) (venues []*models.Venue, err error) {
	defer func() {
		if r := recover(); r != nil {
			venues = nil
			err = errs.NewBiz("fallback."+s.Name(), fmt.Sprintf("strategy panicked: %v", r), nil)
		}
	}()
	return s.Fetch(ctx, req)
}

func markFallback(v *models.Venue, level int, strategy string) {
	if v == nil {
		return
	}
	if v.Metadata == nil {
		v.Metadata = map[string]any{}
	}
	v.Metadata["fallback_level"] = level
	v.Metadata["fallback_strategy"] = strategy
}
