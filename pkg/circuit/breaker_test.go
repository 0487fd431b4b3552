package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"venue-discovery/pkg/logging"
)

var errBoom = errors.New("boom")

func newTestBreaker(name string) *Breaker {
	return New(Config{
		Name:              name,
		OpenFor:           50 * time.Millisecond,
		MaxConsecFailures: 2,
	}, logging.Nop().WithComponent("circuit"))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := newTestBreaker("test_open")
	fail := func(ctx context.Context) error { return errBoom }

	for i := 0; i < 2; i++ {
		if err := b.Do(context.Background(), fail, nil); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}
	if b.State() != Open {
		t.Fatalf("expected open, got %v", b.State())
	}

	called := false
	err := b.Do(context.Background(), func(ctx context.Context) error { called = true; return nil }, nil)
	if !errors.Is(err, ErrOpen) || called {
		t.Fatalf("expected short circuit, err=%v called=%v", err, called)
	}

	time.Sleep(70 * time.Millisecond)
	if err := b.Do(context.Background(), func(ctx context.Context) error { return nil }, nil); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("expected closed after successful probe, got %v", b.State())
	}
}

func TestBreakerFallbackReceivesCause(t *testing.T) {
	b := newTestBreaker("test_fallback")
	var cause error
	err := b.Do(context.Background(),
		func(ctx context.Context) error { return errBoom },
		func(ctx context.Context, c error) error { cause = c; return nil })
	if err != nil {
		t.Fatalf("fallback result should be returned, got %v", err)
	}
	if !errors.Is(cause, errBoom) {
		t.Fatalf("unexpected cause %v", cause)
	}
}

func TestExecuteAppliesTimeout(t *testing.T) {
	b := New(Config{Name: "test_timeout", OperationTimeout: 20 * time.Millisecond}, nil)
	_, err := Execute(context.Background(), b, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	v, err := Execute(context.Background(), b, func(ctx context.Context) (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Fatalf("unexpected result %q %v", v, err)
	}
}

func TestCancellationDoesNotTrip(t *testing.T) {
	b := newTestBreaker("test_cancel")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_ = b.Do(ctx, func(ctx context.Context) error { return ctx.Err() }, nil)
	}
	if b.State() != Closed {
		t.Fatalf("cancellation should not open the breaker")
	}
}
