// Package cache is an in-memory TTL cache with priority-aware eviction.
// Values above a size threshold are kept gzip-compressed as JSON when they
// survive a JSON round trip unchanged.
package cache

import (
	"bytes"
	"compress/gzip"
	"io"
	"math"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"venue-discovery/internal/constants"
	"venue-discovery/pkg/logging"
	"venue-discovery/pkg/metrics"
)

// DefaultSizeEstimate is charged for values that cannot be serialized.
const DefaultSizeEstimate = 1024

// Priority biases eviction; higher survives longer.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// Options configures a Cache.
type Options struct {
	Name              string // metrics prefix, e.g. "recommendations"
	MaxSize           int    // entry capacity
	DefaultTTL        time.Duration
	SweepInterval     time.Duration
	CompressThreshold int // bytes; 0 disables compression. Only JSON-lossless values compress.
	Now               func() time.Time
	Logger            *logging.ComponentLogger
}

// SetOptions are per-entry settings. Zero TTL uses the cache default and
// zero Priority means medium.
type SetOptions struct {
	TTL      time.Duration
	Priority Priority
	Tags     []string
}

type entry[V any] struct {
	value       V
	packed      []byte // gzip JSON when compressed
	compressed  bool
	createdAt   time.Time
	lastAccess  time.Time
	ttl         time.Duration
	accessCount int
	size        int
	priority    Priority
	tags        []string
}

// Stats is a point-in-time snapshot.
type Stats struct {
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	Bytes       int     `json:"bytes"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	Compressed  int     `json:"compressed"`
	HitRate     float64 `json:"hit_rate"`
}

// Cache is safe for concurrent use. It never returns errors; values that
// fail to serialize are stored uncompressed with an estimated size.
type Cache[V any] struct {
	mu      sync.Mutex
	opts    Options
	entries map[string]*entry[V]
	bytes   int

	hits, misses, evictions, expirations int64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	log    *logging.ComponentLogger
	mHits  *metrics.Counter
	mMiss  *metrics.Counter
	mEvict *metrics.Counter
	mSize  *metrics.Gauge
}

func New[V any](opts Options) *Cache[V] {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1000
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = constants.CacheSweepIntervalDefault
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	return &Cache[V]{
		opts:    opts,
		entries: make(map[string]*entry[V]),
		log:     opts.Logger,
		mHits:   metrics.Default.Counter("cache_"+opts.Name+"_hits_total", "Cache hits"),
		mMiss:   metrics.Default.Counter("cache_"+opts.Name+"_misses_total", "Cache misses"),
		mEvict:  metrics.Default.Counter("cache_"+opts.Name+"_evictions_total", "Cache evictions"),
		mSize:   metrics.Default.Gauge("cache_"+opts.Name+"_entries", "Cache entries"),
	}
}

// Set stores v under key, evicting low-value entries first when full.
func (c *Cache[V]) Set(key string, v V, o SetOptions) {
	now := c.opts.Now()
	if o.TTL <= 0 {
		o.TTL = c.opts.DefaultTTL
	}
	if o.Priority < PriorityLow || o.Priority > PriorityCritical {
		o.Priority = PriorityMedium
	}
	e := &entry[V]{
		createdAt:  now,
		lastAccess: now,
		ttl:        o.TTL,
		priority:   o.Priority,
		tags:       append([]string(nil), o.Tags...),
	}
	c.pack(e, v)

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[key]; ok {
		c.bytes -= old.size
		delete(c.entries, key)
	} else if len(c.entries) >= c.opts.MaxSize {
		c.evictLocked(now, e.size)
	}
	c.entries[key] = e
	c.bytes += e.size
	c.mSize.SetFloat64(float64(len(c.entries)))
}

// Get returns the value for key. Expired entries are removed and miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	now := c.opts.Now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && c.expired(e, now) {
		c.removeLocked(key, e)
		c.expirations++
		ok = false
	}
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.mMiss.Inc(1)
		return zero, false
	}
	e.accessCount++
	e.lastAccess = now
	c.hits++
	c.mu.Unlock()
	c.mHits.Inc(1)

	if !e.compressed {
		return e.value, true
	}
	v, err := unpack[V](e.packed)
	if err != nil {
		c.log.Warn("dropping undecodable cache entry", logging.String("key", key), logging.Error(err))
		c.dropIfCurrent(key, e)
		return zero, false
	}
	return v, true
}

// dropIfCurrent removes key only while it still maps to e, so a Set that
// landed after e was read survives.
func (c *Cache[V]) dropIfCurrent(key string, e *entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[key]; ok && cur == e {
		c.removeLocked(key, e)
	}
}

// Has reports whether a live entry exists without counting an access.
func (c *Cache[V]) Has(key string) bool {
	now := c.opts.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.expired(e, now) {
		c.removeLocked(key, e)
		c.expirations++
		return false
	}
	return true
}

// Delete removes key, reporting whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok {
		c.removeLocked(key, e)
	}
	return ok
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
	c.bytes = 0
	c.mSize.SetFloat64(0)
}

// ClearExpired removes expired entries and returns how many were removed.
func (c *Cache[V]) ClearExpired() int {
	now := c.opts.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			c.removeLocked(k, e)
			n++
		}
	}
	c.expirations += int64(n)
	return n
}

// ClearByTags removes entries carrying any of tags.
func (c *Cache[V]) ClearByTags(tags ...string) int {
	if len(tags) == 0 {
		return 0
	}
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		for _, t := range e.tags {
			if want[t] {
				c.removeLocked(k, e)
				n++
				break
			}
		}
	}
	return n
}

// UpdateTTL gives a live entry a new TTL counted from now. Expired entries
// are removed instead of revived.
func (c *Cache[V]) UpdateTTL(key string, ttl time.Duration) bool {
	now := c.opts.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.expired(e, now) {
		c.removeLocked(key, e)
		c.expirations++
		return false
	}
	e.ttl = ttl
	e.createdAt = now
	return true
}

// Optimize re-prioritizes entries by usage: frequently read entries become
// high, recently created ones medium, the rest low. Critical entries are
// left alone. It returns the number of entries whose priority changed.
func (c *Cache[V]) Optimize() int {
	now := c.opts.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := 0
	for _, e := range c.entries {
		if e.priority == PriorityCritical {
			continue
		}
		p := PriorityLow
		switch {
		case e.accessCount >= 10:
			p = PriorityHigh
		case now.Sub(e.createdAt) <= 5*time.Minute:
			p = PriorityMedium
		}
		if p != e.priority {
			e.priority = p
			changed++
		}
	}
	return changed
}

// Len is the number of stored entries, including not yet swept expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Size:        len(c.entries),
		MaxSize:     c.opts.MaxSize,
		Bytes:       c.bytes,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
	for _, e := range c.entries {
		if e.compressed {
			s.Compressed++
		}
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Start runs the expiry sweep in the background until Close.
func (c *Cache[V]) Start() {
	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		t := time.NewTicker(c.opts.SweepInterval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if n := c.ClearExpired(); n > 0 {
					c.log.Debug("swept expired entries", logging.Int("count", n))
				}
			}
		}
	}()
}

// Close stops the sweep and waits for it to exit. Safe to call repeatedly.
func (c *Cache[V]) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		stop, done := c.stop, c.done
		c.mu.Unlock()
		if stop != nil {
			close(stop)
			<-done
		}
	})
}

func (c *Cache[V]) expired(e *entry[V], now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

func (c *Cache[V]) removeLocked(key string, e *entry[V]) {
	delete(c.entries, key)
	c.bytes -= e.size
	c.mSize.SetFloat64(float64(len(c.entries)))
}

// evictionScore ranks entries; the lowest is evicted first.
func evictionScore[V any](e *entry[V], now time.Time) float64 {
	sinceAccess := now.Sub(e.lastAccess).Minutes()
	sinceCreate := now.Sub(e.createdAt).Minutes()
	return 25*float64(e.priority) +
		math.Min(5*float64(e.accessCount), 50) +
		math.Max(0, 100-sinceAccess) -
		math.Min(sinceCreate, 50) -
		math.Min(float64(e.size)/1000, 25)
}

// evictLocked frees room for an entry of need bytes. It stops once the
// freed bytes cover need or occupancy drops below the eviction target.
func (c *Cache[V]) evictLocked(now time.Time, need int) {
	type scored struct {
		key   string
		score float64
	}
	ranked := make([]scored, 0, len(c.entries))
	for k, e := range c.entries {
		ranked = append(ranked, scored{k, evictionScore(e, now)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return ranked[i].key < ranked[j].key
	})

	target := float64(c.opts.MaxSize) * constants.CacheEvictionTarget
	freed := 0
	for _, r := range ranked {
		e := c.entries[r.key]
		c.removeLocked(r.key, e)
		freed += e.size
		c.evictions++
		c.mEvict.Inc(1)
		if freed >= need || float64(len(c.entries)) < target {
			break
		}
	}
}

// pack sizes v and compresses it when above the threshold. Values that do not
// decode back to an equal value (map[string]any holding []string or ints,
// timestamps with a monotonic reading) stay uncompressed.
func (c *Cache[V]) pack(e *entry[V], v V) {
	raw, err := json.Marshal(v)
	if err != nil {
		e.value = v
		e.size = DefaultSizeEstimate
		return
	}
	e.size = len(raw)
	if c.opts.CompressThreshold <= 0 || len(raw) <= c.opts.CompressThreshold {
		e.value = v
		return
	}
	var back V
	if err := json.Unmarshal(raw, &back); err != nil || !reflect.DeepEqual(v, back) {
		e.value = v
		return
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		e.value = v
		return
	}
	if err := zw.Close(); err != nil {
		e.value = v
		return
	}
	e.packed = buf.Bytes()
	e.compressed = true
	e.size = len(e.packed)
}

func unpack[V any](b []byte) (V, error) {
	var v V
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return v, err
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(raw, &v)
	return v, err
}
