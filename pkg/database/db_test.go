package database

import (
	"context"
	"testing"

	errs "venue-discovery/pkg/errors"
)

func TestNewRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		url    string
	}{
		{"unknown driver", "postgres", "postgres://localhost/x"},
		{"empty url", DriverSQLite, ""},
		{"bad mysql dsn", DriverMySQL, "not a dsn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.driver, tt.url)
			if !errs.Is(err, errs.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSQLiteBuilderRoundTrip(t *testing.T) {
	db, err := New(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.Builder().Insert("kv").Columns("k", "v").Values("a", 1).Values("b", 2).ExecContext(ctx); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var v int
	if err := db.Builder().Select("v").From("kv").Where("k = ?", "b").QueryRowContext(ctx).Scan(&v); err != nil {
		t.Fatalf("select: %v", err)
	}
	if v != 2 {
		t.Fatalf("v = %d", v)
	}
	if db.Driver() != DriverSQLite {
		t.Fatalf("driver = %q", db.Driver())
	}
}
