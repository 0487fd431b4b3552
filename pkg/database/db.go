// Package database opens the optional run history database. MySQL is used in
// deployments; SQLite serves local runs and tests.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"venue-discovery/internal/constants"
	errs "venue-discovery/pkg/errors"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

type Options struct {
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

type DB struct {
	conn         *sql.DB
	driver       string
	builder      sq.StatementBuilderType
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New opens databaseURL with driver using default pool settings.
func New(driver, databaseURL string) (*DB, error) {
	return NewWithOptions(context.Background(), Options{Driver: driver, URL: databaseURL})
}

func NewWithOptions(ctx context.Context, opts Options) (*DB, error) {
	switch opts.Driver {
	case "":
		opts.Driver = DriverMySQL
	case DriverMySQL, DriverSQLite:
	default:
		return nil, errs.NewValidation("database.New", fmt.Sprintf("unsupported driver %q", opts.Driver), nil)
	}
	if opts.URL == "" {
		return nil, errs.NewValidation("database.New", "database URL required", nil)
	}

	if opts.Driver == DriverMySQL {
		// DATETIME columns are scanned into time.Time
		cfg, err := mysql.ParseDSN(opts.URL)
		if err != nil {
			return nil, errs.NewValidation("database.New", "invalid mysql DSN", err)
		}
		cfg.ParseTime = true
		opts.URL = cfg.FormatDSN()
	}

	conn, err := sql.Open(opts.Driver, opts.URL)
	if err != nil {
		return nil, errs.NewDB("database.New", "open", err)
	}

	if opts.Driver == DriverSQLite {
		// every sqlite connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns <= 0 {
			opts.MaxOpenConns = 10
		}
		if opts.MaxIdleConns <= 0 {
			opts.MaxIdleConns = 5
		}
		if opts.ConnMaxLifetime <= 0 {
			opts.ConnMaxLifetime = 10 * time.Minute
		}
		conn.SetMaxOpenConns(opts.MaxOpenConns)
		conn.SetMaxIdleConns(opts.MaxIdleConns)
		conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = constants.DBReadTimeoutDefault
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = constants.DBWriteTimeoutDefault
	}

	db := &DB{
		conn:         conn,
		driver:       opts.Driver,
		builder:      sq.StatementBuilder.PlaceholderFormat(sq.Question),
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
	}
	if err := db.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.WithReadTimeout(ctx)
	defer cancel()
	if err := db.conn.PingContext(ctx); err != nil {
		return errs.NewDB("database.Ping", "ping", err)
	}
	return nil
}

func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) Conn() *sql.DB { return db.conn }

func (db *DB) Driver() string { return db.driver }

// Builder returns a squirrel statement builder bound to this connection.
func (db *DB) Builder() sq.StatementBuilderType { return db.builder.RunWith(db.conn) }

// ExecContext runs a statement under the write timeout.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := db.WithWriteTimeout(ctx)
	defer cancel()
	return db.conn.ExecContext(ctx, query, args...)
}

// WithReadTimeout bounds ctx by the read budget.
func (db *DB) WithReadTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, db.readTimeout)
}

// WithWriteTimeout bounds ctx by the write budget.
func (db *DB) WithWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, db.writeTimeout)
}
