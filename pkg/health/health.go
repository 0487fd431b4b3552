package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"venue-discovery/internal/constants"
	"venue-discovery/pkg/cache"
	"venue-discovery/pkg/circuit"
	"venue-discovery/pkg/database"
	"venue-discovery/pkg/logging"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Name        string         `json:"name"`
	Status      HealthStatus   `json:"status"`
	Message     string         `json:"message,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SystemHealth represents the overall system health
type SystemHealth struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     time.Duration              `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	Summary    HealthSummary              `json:"summary"`
}

type HealthSummary struct {
	TotalComponents int `json:"total_components"`
	HealthyCount    int `json:"healthy_count"`
	DegradedCount   int `json:"degraded_count"`
	UnhealthyCount  int `json:"unhealthy_count"`
	UnknownCount    int `json:"unknown_count"`
}

// HealthChecker defines the interface for health check functions
type HealthChecker interface {
	Check(ctx context.Context) ComponentHealth
	Name() string
}

type HealthCheckFunc struct {
	name string
	fn   func(ctx context.Context) ComponentHealth
}

func (hcf HealthCheckFunc) Check(ctx context.Context) ComponentHealth { return hcf.fn(ctx) }
func (hcf HealthCheckFunc) Name() string                              { return hcf.name }

func NewHealthCheckFunc(name string, fn func(ctx context.Context) ComponentHealth) HealthChecker {
	return HealthCheckFunc{name: name, fn: fn}
}

// HealthManager manages health checks for all system components
type HealthManager struct {
	checkers  map[string]HealthChecker
	results   map[string]ComponentHealth
	startTime time.Time
	version   string
	timeout   time.Duration
	logger    *logging.ComponentLogger
	mu        sync.RWMutex
}

type HealthConfig struct {
	Timeout time.Duration `json:"timeout"`
	Version string        `json:"version"`
}

func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Timeout: constants.HealthTimeoutDefault,
		Version: "1.0.0",
	}
}

func NewHealthManager(config HealthConfig, logger *logging.ComponentLogger) *HealthManager {
	if config.Timeout <= 0 {
		config.Timeout = DefaultHealthConfig().Timeout
	}
	return &HealthManager{
		checkers:  make(map[string]HealthChecker),
		results:   make(map[string]ComponentHealth),
		startTime: time.Now(),
		version:   config.Version,
		timeout:   config.Timeout,
		logger:    logger,
	}
}

// RegisterChecker registers a health checker, replacing one with the same name.
func (hm *HealthManager) RegisterChecker(checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	name := checker.Name()
	hm.checkers[name] = checker
	hm.results[name] = ComponentHealth{Name: name, Status: HealthStatusUnknown}

	hm.logger.Debug("Registered health checker", logging.String("checker", name))
}

// CheckAll runs all health checks concurrently. A checker that panics is
// reported unhealthy.
func (hm *HealthManager) CheckAll(ctx context.Context) SystemHealth {
	start := time.Now()

	hm.mu.RLock()
	checkers := make([]HealthChecker, 0, len(hm.checkers))
	for _, checker := range hm.checkers {
		checkers = append(checkers, checker)
	}
	hm.mu.RUnlock()

	results := make([]ComponentHealth, len(checkers))
	var g errgroup.Group
	for i, checker := range checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, hm.timeout)
			defer cancel()
			results[i] = safeCheck(checkCtx, checker)
			return nil
		})
	}
	_ = g.Wait()

	components := make(map[string]ComponentHealth, len(results))
	hm.mu.Lock()
	for _, result := range results {
		components[result.Name] = result
		hm.results[result.Name] = result
	}
	hm.mu.Unlock()

	systemStatus := determineSystemHealth(components)
	hm.logger.Debug("Completed health check",
		logging.String("status", string(systemStatus)),
		logging.Duration("duration", time.Since(start)),
		logging.Int("components", len(components)))

	return SystemHealth{
		Status:     systemStatus,
		Timestamp:  time.Now(),
		Version:    hm.version,
		Uptime:     time.Since(hm.startTime),
		Components: components,
		Summary:    calculateSummary(components),
	}
}

func safeCheck(ctx context.Context, c HealthChecker) (res ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			res = ComponentHealth{
				Name:        c.Name(),
				Status:      HealthStatusUnhealthy,
				Message:     "health check panicked",
				LastChecked: time.Now(),
			}
		}
	}()
	res = c.Check(ctx)
	if res.Name == "" {
		res.Name = c.Name()
	}
	return res
}

// GetCachedHealth returns the last known health status
func (hm *HealthManager) GetCachedHealth() SystemHealth {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(hm.results))
	for name, result := range hm.results {
		components[name] = result
	}
	return SystemHealth{
		Status:     determineSystemHealth(components),
		Timestamp:  time.Now(),
		Version:    hm.version,
		Uptime:     time.Since(hm.startTime),
		Components: components,
		Summary:    calculateSummary(components),
	}
}

func determineSystemHealth(components map[string]ComponentHealth) HealthStatus {
	if len(components) == 0 {
		return HealthStatusUnknown
	}
	s := calculateSummary(components)
	switch {
	case s.UnhealthyCount > 0:
		return HealthStatusUnhealthy
	case s.DegradedCount > 0:
		return HealthStatusDegraded
	case s.HealthyCount == s.TotalComponents:
		return HealthStatusHealthy
	}
	return HealthStatusUnknown
}

func calculateSummary(components map[string]ComponentHealth) HealthSummary {
	summary := HealthSummary{TotalComponents: len(components)}
	for _, component := range components {
		switch component.Status {
		case HealthStatusHealthy:
			summary.HealthyCount++
		case HealthStatusDegraded:
			summary.DegradedCount++
		case HealthStatusUnhealthy:
			summary.UnhealthyCount++
		default:
			summary.UnknownCount++
		}
	}
	return summary
}

// Standard Health Checkers

// DatabaseChecker pings the run history database.
func DatabaseChecker(db *database.DB) HealthChecker {
	return NewHealthCheckFunc("database", func(ctx context.Context) ComponentHealth {
		start := time.Now()
		result := ComponentHealth{Name: "database", LastChecked: start, Metadata: map[string]any{"driver": db.Driver()}}
		if err := db.Ping(ctx); err != nil {
			result.Status = HealthStatusUnhealthy
			result.Error = err.Error()
			result.Message = "Database connection failed"
			result.Duration = time.Since(start)
			return result
		}
		stats := db.Conn().Stats()
		result.Status = HealthStatusHealthy
		result.Message = "Database connection successful"
		result.Metadata["open_connections"] = stats.OpenConnections
		result.Metadata["in_use"] = stats.InUse
		result.Metadata["idle"] = stats.Idle
		result.Metadata["wait_count"] = stats.WaitCount
		result.Duration = time.Since(start)
		return result
	})
}

// BreakerChecker reports an external dependency by its circuit state: open
// is unhealthy, half-open is degraded.
func BreakerChecker(b *circuit.Breaker) HealthChecker {
	name := "circuit_" + b.Name()
	return NewHealthCheckFunc(name, func(ctx context.Context) ComponentHealth {
		state := b.State()
		result := ComponentHealth{
			Name:        name,
			LastChecked: time.Now(),
			Metadata:    map[string]any{"state": state.String()},
		}
		switch state {
		case circuit.Open:
			result.Status = HealthStatusUnhealthy
			result.Message = b.Name() + " circuit is open"
		case circuit.HalfOpen:
			result.Status = HealthStatusDegraded
			result.Message = b.Name() + " circuit is probing"
		default:
			result.Status = HealthStatusHealthy
		}
		return result
	})
}

// CacheChecker reports cache occupancy. A cache at capacity is degraded
// since every insert evicts.
func CacheChecker(name string, stats func() cache.Stats) HealthChecker {
	return NewHealthCheckFunc("cache_"+name, func(ctx context.Context) ComponentHealth {
		st := stats()
		result := ComponentHealth{
			Name:        "cache_" + name,
			Status:      HealthStatusHealthy,
			LastChecked: time.Now(),
			Metadata: map[string]any{
				"size":     st.Size,
				"max_size": st.MaxSize,
				"hit_rate": st.HitRate,
			},
		}
		if st.MaxSize > 0 && st.Size >= st.MaxSize {
			result.Status = HealthStatusDegraded
			result.Message = "cache is full"
		}
		return result
	})
}

// StatsChecker is always healthy and attaches stats as metadata.
func StatsChecker(name string, getStats func() any) HealthChecker {
	return NewHealthCheckFunc(name, func(ctx context.Context) ComponentHealth {
		return ComponentHealth{
			Name:        name,
			Status:      HealthStatusHealthy,
			LastChecked: time.Now(),
			Metadata:    map[string]any{"stats": getStats()},
		}
	})
}

// Register mounts the health endpoints on r.
func (hm *HealthManager) Register(r *mux.Router) {
	r.HandleFunc("/health", hm.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", hm.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", hm.handleReadiness).Methods(http.MethodGet)
	r.HandleFunc("/health/components", hm.handleComponents).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth answers 503 only when a component is unhealthy.
func (hm *HealthManager) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := hm.CheckAll(r.Context())
	status := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (hm *HealthManager) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    time.Since(hm.startTime).String(),
	})
}

func (hm *HealthManager) handleReadiness(w http.ResponseWriter, r *http.Request) {
	health := hm.CheckAll(r.Context())
	status := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":     health.Status,
		"ready":      health.Status != HealthStatusUnhealthy,
		"timestamp":  health.Timestamp,
		"components": len(health.Components),
	})
}

func (hm *HealthManager) handleComponents(w http.ResponseWriter, r *http.Request) {
	var health SystemHealth
	if r.URL.Query().Get("cached") == "true" {
		health = hm.GetCachedHealth()
	} else {
		health = hm.CheckAll(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"components": health.Components,
		"summary":    health.Summary,
		"timestamp":  health.Timestamp,
	})
}
