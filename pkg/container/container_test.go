package container

import (
	"errors"
	"strings"
	"testing"
)

type store interface{ Name() string }

type memStore struct {
	closed *[]string
}

func (m *memStore) Name() string { return "mem" }
func (m *memStore) Close() error {
	*m.closed = append(*m.closed, "store")
	return nil
}

type service struct {
	st     store
	closed *[]string
}

func (s *service) Close() { *s.closed = append(*s.closed, "service") }

func TestResolveSingletonsAndInterfaces(t *testing.T) {
	var closed []string
	builds := 0
	c := New()
	if err := c.Provide(func() *memStore { builds++; return &memStore{closed: &closed} }, true); err != nil {
		t.Fatalf("provide: %v", err)
	}
	if err := c.Provide(func(st store) *service { return &service{st: st, closed: &closed} }, true); err != nil {
		t.Fatalf("provide: %v", err)
	}

	var svc *service
	if err := c.Resolve(&svc); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if svc.st.Name() != "mem" {
		t.Fatalf("interface dependency not resolved")
	}
	var again *memStore
	if err := c.Resolve(&again); err != nil || builds != 1 {
		t.Fatalf("singleton rebuilt: builds=%d err=%v", builds, err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if strings.Join(closed, ",") != "service,store" {
		t.Fatalf("close order %v", closed)
	}
}

func TestProvideAndResolveErrors(t *testing.T) {
	c := New()
	if err := c.Provide("not a func", true); err == nil {
		t.Fatalf("expected error for non-function")
	}
	if err := c.Provide(func() (int, string) { return 0, "" }, true); err == nil {
		t.Fatalf("expected error for non-error second result")
	}
	if err := c.Provide(func() int { return 1 }, true); err != nil {
		t.Fatalf("provide: %v", err)
	}
	if err := c.Provide(func() int { return 2 }, true); err == nil {
		t.Fatalf("expected duplicate provider error")
	}

	boom := errors.New("boom")
	_ = c.Provide(func(int) (string, error) { return "", boom }, true)
	var s string
	if err := c.Resolve(&s); !errors.Is(err, boom) {
		t.Fatalf("expected constructor error, got %v", err)
	}
	var f float64
	if err := c.Resolve(&f); err == nil {
		t.Fatalf("expected missing provider error")
	}
	if err := c.Resolve(f); err == nil {
		t.Fatalf("expected non-pointer error")
	}
}

func TestSupplyAndInvoke(t *testing.T) {
	c := New()
	if err := c.Supply(42); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := c.Supply(7); err == nil {
		t.Fatalf("expected duplicate supply error")
	}
	var got int
	if err := c.Invoke(func(n int) { got = n }); err != nil || got != 42 {
		t.Fatalf("invoke: got=%d err=%v", got, err)
	}
	want := errors.New("invoke failed")
	if err := c.Invoke(func(int) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected invoke error, got %v", err)
	}
}

func TestCycle(t *testing.T) {
	c := New()
	_ = c.Provide(func(string) int { return 0 }, true)
	_ = c.Provide(func(int) string { return "" }, true)
	var n int
	if err := c.Resolve(&n); err == nil || !strings.Contains(err.Error(), "cyclic") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}
