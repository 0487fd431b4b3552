package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"venue-discovery/internal/constants"
	"venue-discovery/pkg/metrics"
)

// Change describes a configuration update event.
// Only a subset of fields may have changed; see Fields for the list of keys.
type Change struct {
	Old    *Config
	New    *Config
	Fields []string
	Err    error
}

// Subscriber channel buffer size; small to apply back-pressure if receivers are slow.
const subBuf = 4

// Watcher periodically reloads configuration from the environment. When
// CONFIG_FILE points to a .env file, that file is re-applied on mtime change.
type Watcher struct {
	mu        sync.RWMutex
	cur       *Config
	closed    bool
	intv      time.Duration
	subs      []chan Change
	cancel    context.CancelFunc
	done      chan struct{}
	filePath  string
	lastMTime time.Time

	mReloads  *metrics.Counter
	mFailures *metrics.Counter
}

func NewWatcher(interval time.Duration) *Watcher {
	return NewFileWatcher(interval, strings.TrimSpace(os.Getenv("CONFIG_FILE")))
}

// NewFileWatcher watches an explicit .env path (empty disables file reloads).
func NewFileWatcher(interval time.Duration, path string) *Watcher {
	if interval <= 0 {
		interval = constants.ConfigWatcherIntervalDefault
	}
	w := &Watcher{
		intv:      interval,
		filePath:  path,
		mReloads:  metrics.Default.Counter("config_reload_total", "Total number of config reload attempts"),
		mFailures: metrics.Default.Counter("config_reload_failures_total", "Total number of failed config reloads"),
	}
	w.cur = Load()
	return w
}

// Current returns the last applied configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// Subscribe returns a channel to receive Change notifications.
// Caller should drain the channel until it is closed.
func (w *Watcher) Subscribe() <-chan Change {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan Change, subBuf)
	if w.closed {
		close(ch)
		return ch
	}
	w.subs = append(w.subs, ch)
	return ch
}

// Close stops the watcher and closes subscriber channels.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	w.mu.Lock()
	for _, s := range w.subs {
		close(s)
	}
	w.subs = nil
	w.mu.Unlock()
}

// Start begins polling in a goroutine. It is safe to call once.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.cancel != nil || w.closed {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	t := time.NewTicker(w.intv)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.checkOnce()
		}
	}
}

func (w *Watcher) checkOnce() {
	if w.filePath != "" {
		if fi, err := os.Stat(w.filePath); err == nil {
			mt := fi.ModTime()
			if mt.After(w.lastMTime) {
				if err := godotenv.Overload(filepath.Clean(w.filePath)); err != nil {
					w.mFailures.Inc(1)
					w.notify(Change{Old: w.Current(), Err: fmt.Errorf("reload %s: %w", w.filePath, err)})
					return
				}
				w.lastMTime = mt
			}
		}
	}

	newCfg := Load()
	old := w.Current()
	if err := newCfg.Validate(); err != nil {
		w.mFailures.Inc(1)
		w.notify(Change{Old: old, New: newCfg, Err: fmt.Errorf("invalid config: %w", err)})
		return
	}

	fields := diffKeys(old, newCfg)
	if len(fields) == 0 {
		return
	}

	w.mReloads.Inc(1)
	w.mu.Lock()
	w.cur = newCfg
	w.mu.Unlock()
	w.notify(Change{Old: old, New: newCfg, Fields: fields})
}

func (w *Watcher) notify(chg Change) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, s := range w.subs {
		select {
		case s <- chg:
		default:
			// drop if slow; keep system moving
		}
	}
}

// diffKeys lists the hot-reloadable settings that changed.
func diffKeys(a, b *Config) []string {
	if a == nil || b == nil {
		return []string{"all"}
	}
	var f []string
	appendIf := func(cond bool, name string) {
		if cond {
			f = append(f, name)
		}
	}
	appendIf(a.ConfidenceThreshold != b.ConfidenceThreshold, "ConfidenceThreshold")
	appendIf(a.MaxRecommendations != b.MaxRecommendations, "MaxRecommendations")
	appendIf(a.RetryAttempts != b.RetryAttempts || a.RetryBaseDelay != b.RetryBaseDelay, "Retry")
	appendIf(a.StageTimeout != b.StageTimeout, "StageTimeout")
	appendIf(a.DiscoveryLimit != b.DiscoveryLimit, "DiscoveryLimit")
	return f
}
