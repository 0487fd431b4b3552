package circuit

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/logging"
	"venue-discovery/pkg/metrics"
)

// State mirrors the underlying breaker state for logging and metrics.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config tunes a circuit breaker instance.
type Config struct {
	Name string

	OperationTimeout    time.Duration // per-call timeout, 0 disables
	OpenFor             time.Duration // how long to stay open before probing
	Interval            time.Duration // closed-state count reset period, 0 never resets
	MaxConsecFailures   uint32        // consecutive failures to open
	FailureRate         float64       // 0..1 fraction of failures to open once MinRequests seen
	MinRequests         uint32
	HalfOpenMaxRequests uint32
}

// DefaultConfig is used for external venue sources.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		OperationTimeout:    10 * time.Second,
		OpenFor:             30 * time.Second,
		Interval:            time.Minute,
		MaxConsecFailures:   5,
		FailureRate:         0.6,
		MinRequests:         10,
		HalfOpenMaxRequests: 1,
	}
}

// ErrOpen indicates the breaker is open and calls are short-circuited.
var ErrOpen = errs.ErrCircuitOpen

// Breaker wraps gobreaker with per-call timeouts, fallbacks and metrics.
type Breaker struct {
	cfg Config
	cb  *gobreaker.CircuitBreaker[struct{}]
	log *logging.ComponentLogger

	mState   *metrics.Gauge
	mOpen    *metrics.Counter
	mSuccess *metrics.Counter
	mFailure *metrics.Counter
	mTimeout *metrics.Counter
	mLatency *metrics.Histogram
}

func New(cfg Config, log *logging.ComponentLogger) *Breaker {
	if cfg.HalfOpenMaxRequests == 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	b := &Breaker{
		cfg:      cfg,
		log:      log,
		mState:   metrics.Default.Gauge("cb_"+cfg.Name+"_state", "Circuit breaker state (0=closed,1=open,2=half-open)"),
		mOpen:    metrics.Default.Counter("cb_"+cfg.Name+"_opens_total", "Circuit opened events"),
		mSuccess: metrics.Default.Counter("cb_"+cfg.Name+"_success_total", "Successful calls through circuit"),
		mFailure: metrics.Default.Counter("cb_"+cfg.Name+"_failure_total", "Failed calls through circuit"),
		mTimeout: metrics.Default.Counter("cb_"+cfg.Name+"_timeout_total", "Timed out calls"),
		mLatency: metrics.Default.Histogram("cb_"+cfg.Name+"_latency_ms", "Latency of calls (ms)", []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000}),
	}
	b.mState.SetFloat64(0)

	b.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if cfg.MaxConsecFailures > 0 && c.ConsecutiveFailures >= cfg.MaxConsecFailures {
				return true
			}
			if cfg.FailureRate > 0 && c.Requests >= cfg.MinRequests && c.Requests > 0 {
				return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRate
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about the dependency
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			st := fromGobreaker(to)
			b.mState.SetFloat64(float64(st))
			if st == Open {
				b.mOpen.Inc(1)
			}
			b.log.Info("breaker state change",
				logging.String("name", name),
				logging.String("from", fromGobreaker(from).String()),
				logging.String("to", st.String()))
		},
	})
	return b
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return Open
	case gobreaker.StateHalfOpen:
		return HalfOpen
	default:
		return Closed
	}
}

// Name returns the configured breaker name.
func (b *Breaker) Name() string { return b.cfg.Name }

// State returns the current breaker state.
func (b *Breaker) State() State { return fromGobreaker(b.cb.State()) }

// Do runs op under the breaker. When the breaker rejects the call or op fails,
// fallback (if any) receives the cause; otherwise the error is returned.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error, fallback func(ctx context.Context, cause error) error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		callCtx := ctx
		if b.cfg.OperationTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.cfg.OperationTimeout)
			defer cancel()
		}
		t := b.mLatency.Start()
		opErr := op(callCtx)
		t.Observe()
		if errors.Is(opErr, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			b.mTimeout.Inc(1)
		}
		return struct{}{}, opErr
	})

	if err == nil {
		b.mSuccess.Inc(1)
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrOpen
	} else {
		b.mFailure.Inc(1)
	}
	if fallback != nil {
		return fallback(ctx, err)
	}
	return err
}

// Execute is Do for operations that produce a value.
func Execute[T any](ctx context.Context, b *Breaker, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, nil)
	return out, err
}
