package monitoring

import (
	"net/http"
	pp "net/http/pprof"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"venue-discovery/pkg/metrics"
)

var latencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Metrics keeps recent request durations for quick JSON snapshots. Totals
// and per-route counts go to the Prometheus registry.
type Metrics struct {
	mu        sync.Mutex
	durations []float64 // milliseconds, circular buffer of last N
	idx       int
	count     int64
	n         int

	mRequests *prometheus.CounterVec
	mLatency  *metrics.Histogram
}

func NewMetrics(capacity int) *Metrics {
	if capacity <= 0 {
		capacity = 256
	}
	return &Metrics{
		durations: make([]float64, capacity),
		n:         capacity,
		mRequests: metrics.Default.CounterVec("http_requests_total", "HTTP requests by route, method and status", "route", "method", "status"),
		mLatency:  metrics.Default.Histogram("http_request_duration_ms", "HTTP request latency in milliseconds", latencyBuckets),
	}
}

// Observe adds a duration sample (in milliseconds).
func (m *Metrics) Observe(ms float64) {
	m.mu.Lock()
	m.durations[m.idx] = ms
	m.idx = (m.idx + 1) % m.n
	m.count++
	m.mu.Unlock()
	m.mLatency.Observe(ms)
}

// Snapshot returns the request count plus average and quantiles of the
// recent samples.
func (m *Metrics) Snapshot() (count int64, avg, p50, p95 float64) {
	m.mu.Lock()
	var samples []float64
	if m.count < int64(m.n) {
		samples = append(samples, m.durations[:m.idx]...)
	} else {
		samples = append(samples, m.durations...)
	}
	count = m.count
	m.mu.Unlock()

	if len(samples) == 0 {
		return count, 0, 0, 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	avg = sum / float64(len(samples))
	sort.Float64s(samples)
	p50 = samples[(len(samples)*50)/100]
	p95 = samples[(len(samples)*95)/100]
	return count, avg, p50, p95
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(statusCode int) {
	sw.statusCode = statusCode
	sw.ResponseWriter.WriteHeader(statusCode)
}

// routeLabel uses the mux path template so ids in paths don't explode
// label cardinality.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Middleware measures request duration and counts requests per route.
func Middleware(m *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
			m.mRequests.WithLabelValues(routeLabel(r), r.Method, strconv.Itoa(sw.statusCode)).Inc()
		})
	}
}

// MetricsHandler exposes runtime and request metrics as JSON. extra, when
// set, is merged in under the "pipeline" key.
func MetricsHandler(m *Metrics, extra func() any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		count, avg, p50, p95 := m.Snapshot()
		resp := map[string]any{
			"time":             time.Now().Format(time.RFC3339),
			"requests_total":   count,
			"duration_ms_avg":  avg,
			"duration_ms_p50":  p50,
			"duration_ms_p95":  p95,
			"goroutines":       runtime.NumGoroutine(),
			"mem_alloc_bytes":  ms.Alloc,
			"heap_inuse_bytes": ms.HeapInuse,
			"gc_num":           ms.NumGC,
		}
		if extra != nil {
			resp["pipeline"] = extra()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}

// RegisterPprof registers the standard pprof handlers under /debug/pprof/.
func RegisterPprof(sm *http.ServeMux) {
	sm.HandleFunc("/debug/pprof/", pp.Index)
	sm.HandleFunc("/debug/pprof/cmdline", pp.Cmdline)
	sm.HandleFunc("/debug/pprof/profile", pp.Profile)
	sm.HandleFunc("/debug/pprof/symbol", pp.Symbol)
	sm.HandleFunc("/debug/pprof/trace", pp.Trace)
	for _, name := range []string{"goroutine", "heap", "block", "mutex"} {
		sm.Handle("/debug/pprof/"+name, pp.Handler(name))
	}
}

// EnableProfiling toggles block and mutex profiling rates.
func EnableProfiling(enabled bool) {
	if enabled {
		runtime.SetBlockProfileRate(1)
		runtime.SetMutexProfileFraction(5)
		return
	}
	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
}
