package specs

import (
	"context"
	"strings"
	"testing"
)

func TestComposition(t *testing.T) {
	ctx := context.Background()
	long := New(func(_ context.Context, s string) bool { return len(s) > 3 })
	upper := New(func(_ context.Context, s string) bool { return s != "" && strings.ToUpper(s[:1]) == s[:1] })

	tests := []struct {
		name string
		spec Specification[string]
		in   string
		want bool
	}{
		{"and both", long.And(upper), "Cafe", true},
		{"and one", long.And(upper), "cafe", false},
		{"or one", long.Or(upper), "Ab", true},
		{"not", long.Not(), "Ab", true},
		{"all empty", All[string](), "x", true},
		{"any empty", Any[string](), "x", false},
		{"all", All(long, upper), "Museo", true},
		{"any", Any(long, upper), "ab", false},
		{"none", None(long, upper), "ab", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(ctx, tt.spec, tt.in); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCancelledContextIsUnsatisfied(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	always := New(func(_ context.Context, _ int) bool { return true })
	if always.IsSatisfiedBy(ctx, 1) || always.Not().IsSatisfiedBy(ctx, 1) || All(always).IsSatisfiedBy(ctx, 1) {
		t.Fatalf("cancelled ctx should never satisfy")
	}
}
