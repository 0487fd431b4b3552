package events

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"venue-discovery/pkg/database"
	errs "venue-discovery/pkg/errors"
)

const table = "pipeline_run_events"

// SQLEventStore stores run events in one ordered table. The schema is
// created on first use for both MySQL and SQLite.
type SQLEventStore struct {
	db *database.DB
}

func NewSQLEventStore(ctx context.Context, db *database.DB) (*SQLEventStore, error) {
	s := &SQLEventStore{db: db}
	if err := s.ensureTable(ctx); err != nil {
		return nil, errs.NewDB("events.ensureTable", "create table", err)
	}
	return s, nil
}

func (s *SQLEventStore) ensureTable(ctx context.Context) error {
	var qry string
	switch s.db.Driver() {
	case database.DriverSQLite:
		qry = `CREATE TABLE IF NOT EXISTS ` + table + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			type TEXT NOT NULL,
			at DATETIME NOT NULL,
			data TEXT NOT NULL
		)`
	default:
		qry = `CREATE TABLE IF NOT EXISTS ` + table + ` (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(36) NOT NULL,
			type VARCHAR(64) NOT NULL,
			at DATETIME(6) NOT NULL,
			data JSON NOT NULL,
			KEY idx_run_id (run_id, id)
		)`
	}
	_, err := s.db.ExecContext(ctx, qry)
	return err
}

func (s *SQLEventStore) Append(ctx context.Context, e Event) error {
	payload, err := e.MarshalData()
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	at := e.Timestamp()
	if at.IsZero() {
		at = time.Now()
	}
	ctx, cancel := s.db.WithWriteTimeout(ctx)
	defer cancel()
	_, err = s.db.Builder().
		Insert(table).
		Columns("run_id", "type", "at", "data").
		Values(e.RunID(), e.Type(), at.UTC(), string(payload)).
		ExecContext(ctx)
	if err != nil {
		return errs.NewDB("events.Append", "insert event", err)
	}
	return nil
}

func (s *SQLEventStore) ListByRun(ctx context.Context, runID string) ([]StoredEvent, error) {
	ctx, cancel := s.db.WithReadTimeout(ctx)
	defer cancel()
	rows, err := s.db.Builder().
		Select("id", "run_id", "type", "at", "data").
		From(table).
		Where(sq.Eq{"run_id": runID}).
		OrderBy("id ASC").
		QueryContext(ctx)
	if err != nil {
		return nil, errs.NewDB("events.ListByRun", "query events", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var se StoredEvent
		var data string
		if err := rows.Scan(&se.Seq, &se.RunID, &se.Type, &se.Ts, &data); err != nil {
			return nil, errs.NewDB("events.ListByRun", "scan event", err)
		}
		se.Payload = []byte(data)
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDB("events.ListByRun", "iterate events", err)
	}
	return out, nil
}

func (s *SQLEventStore) ReplayRun(ctx context.Context, runID string) (*RunState, error) {
	evs, err := s.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return Replay(evs), nil
}

// ListRuns returns up to limit runs ordered by their latest event, newest
// first.
func (s *SQLEventStore) ListRuns(ctx context.Context, limit int) ([]RunState, error) {
	if limit <= 0 {
		limit = 50
	}
	rctx, cancel := s.db.WithReadTimeout(ctx)
	rows, err := s.db.Builder().
		Select("run_id").
		From(table).
		GroupBy("run_id").
		OrderBy("MAX(id) DESC").
		Limit(uint64(limit)).
		QueryContext(rctx)
	if err != nil {
		cancel()
		return nil, errs.NewDB("events.ListRuns", "query runs", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			cancel()
			return nil, errs.NewDB("events.ListRuns", "scan run id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	cancel()

	out := make([]RunState, 0, len(ids))
	for _, id := range ids {
		st, err := s.ReplayRun(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

var _ EventStore = (*SQLEventStore)(nil)
