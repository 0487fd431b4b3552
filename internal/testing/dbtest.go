package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"venue-discovery/pkg/database"
)

// DBTest provides a real DB connection for integration tests.
// DATABASE_URL_TEST selects a MySQL database; otherwise an in-memory SQLite
// database is used so store tests always run.
type DBTest struct {
	T   *testing.T
	DB  *database.DB
	SQL *sql.DB
}

func NewDBTest(t *testing.T) *DBTest {
	t.Helper()
	driver, url := database.DriverSQLite, "file::memory:?cache=shared"
	if u := os.Getenv("DATABASE_URL_TEST"); u != "" {
		driver, url = database.DriverMySQL, u
	}
	return open(t, driver, url)
}

// NewMySQLTest is NewDBTest restricted to MySQL; it skips when
// DATABASE_URL_TEST is unset.
func NewMySQLTest(t *testing.T) *DBTest {
	t.Helper()
	url := os.Getenv("DATABASE_URL_TEST")
	if url == "" {
		t.Skip("DATABASE_URL_TEST not set; skipping MySQL integration tests")
	}
	return open(t, database.DriverMySQL, url)
}

func open(t *testing.T, driver, url string) *DBTest {
	t.Helper()
	db, err := database.New(driver, url)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	d := &DBTest{T: t, DB: db, SQL: db.Conn()}
	t.Cleanup(d.Close)
	return d
}

func (d *DBTest) Close() {
	_ = d.DB.Close()
}

// Truncate wipes the given tables. Missing tables are ignored.
func (d *DBTest) Truncate(tables ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, tbl := range tables {
		_, _ = d.SQL.ExecContext(ctx, "DELETE FROM "+tbl)
	}
}

// WithTx runs fn inside a transaction and rolls back by default.
func (d *DBTest) WithTx(fn func(tx *sql.Tx)) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tx, err := d.SQL.BeginTx(ctx, nil)
	if err != nil {
		d.T.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()
	fn(tx)
}
