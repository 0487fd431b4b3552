package metrics

import (
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry hands out named collectors backed by a prometheus registry.
// Lookups are get-or-create so components can be constructed repeatedly
// (tests, config reloads) without duplicate registration panics.
type Registry struct {
	mu     sync.Mutex
	reg    *prometheus.Registry
	c      map[string]*Counter
	g      map[string]*Gauge
	h      map[string]*Histogram
	cv     map[string]*prometheus.CounterVec
	prefix string
}

// NewRegistry creates a registry with the Go runtime and process collectors attached.
func NewRegistry(prefix string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Registry{
		reg:    reg,
		c:      map[string]*Counter{},
		g:      map[string]*Gauge{},
		h:      map[string]*Histogram{},
		cv:     map[string]*prometheus.CounterVec{},
		prefix: prefix,
	}
}

// Default is the process-wide registry served on the admin port.
var Default = NewRegistry("venue_discovery")

// Counter is a monotonically increasing number. The value is mirrored
// locally so stats endpoints and tests can read it back.
type Counter struct {
	pc  prometheus.Counter
	val int64
}

func (c *Counter) Inc(delta int64) {
	if delta < 0 {
		return
	}
	atomic.AddInt64(&c.val, delta)
	c.pc.Add(float64(delta))
}
func (c *Counter) Add(delta int64) { c.Inc(delta) }
func (c *Counter) Get() int64      { return atomic.LoadInt64(&c.val) }

// Gauge is an arbitrary number that can go up and down.
type Gauge struct {
	pg  prometheus.Gauge
	f64 uint64
}

func (g *Gauge) SetFloat64(v float64) {
	atomic.StoreUint64(&g.f64, math.Float64bits(v))
	g.pg.Set(v)
}

func (g *Gauge) AddFloat64(delta float64) {
	for {
		old := atomic.LoadUint64(&g.f64)
		nv := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&g.f64, old, math.Float64bits(nv)) {
			g.pg.Set(nv)
			return
		}
	}
}

func (g *Gauge) GetFloat64() float64 { return math.Float64frombits(atomic.LoadUint64(&g.f64)) }

// Histogram records observations into fixed buckets.
type Histogram struct {
	ph    prometheus.Histogram
	count uint64
}

func (h *Histogram) Observe(v float64) {
	atomic.AddUint64(&h.count, 1)
	h.ph.Observe(v)
}

// Count returns the number of observations so far.
func (h *Histogram) Count() uint64 { return atomic.LoadUint64(&h.count) }

func (r *Registry) fullName(name string) string {
	n := sanitize(name)
	if r.prefix == "" || strings.HasPrefix(n, r.prefix+"_") {
		return n
	}
	return r.prefix + "_" + n
}

// register tolerates collisions: an unregistered collector still works locally.
func (r *Registry) register(c prometheus.Collector) {
	_ = r.reg.Register(c)
}

func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.fullName(name)
	if c, ok := r.c[key]; ok {
		return c
	}
	c := &Counter{pc: prometheus.NewCounter(prometheus.CounterOpts{Name: key, Help: help})}
	r.register(c.pc)
	r.c[key] = c
	return c
}

func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.fullName(name)
	if g, ok := r.g[key]; ok {
		return g
	}
	g := &Gauge{pg: prometheus.NewGauge(prometheus.GaugeOpts{Name: key, Help: help})}
	r.register(g.pg)
	r.g[key] = g
	return g
}

func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.fullName(name)
	if h, ok := r.h[key]; ok {
		return h
	}
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	h := &Histogram{ph: prometheus.NewHistogram(prometheus.HistogramOpts{Name: key, Help: help, Buckets: buckets})}
	r.register(h.ph)
	r.h[key] = h
	return h
}

// CounterVec returns a labelled counter family.
func (r *Registry) CounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.fullName(name)
	if v, ok := r.cv[key]; ok {
		return v
	}
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: key, Help: help}, labels)
	r.register(v)
	r.cv[key] = v
	return v
}

// Handler exposes the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Handler exposes the default registry.
func Handler() http.Handler { return Default.Handler() }

func sanitize(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Timer measures elapsed milliseconds into a histogram.
type Timer struct {
	h     *Histogram
	start time.Time
}

func (h *Histogram) Start() Timer { return Timer{h: h, start: time.Now()} }

func (t Timer) Observe() time.Duration {
	d := time.Since(t.start)
	t.h.Observe(float64(d) / float64(time.Millisecond))
	return d
}
