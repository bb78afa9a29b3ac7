package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id            INTEGER PRIMARY KEY,
  ran_at        TEXT NOT NULL,
  server_id     TEXT NOT NULL,
  server_name   TEXT,
  outcome       TEXT NOT NULL CHECK (outcome IN ('renew_success','maxed_out','renew_failed','cooldown','error')),
  before_hours  INTEGER NOT NULL DEFAULT 0,
  after_hours   INTEGER NOT NULL DEFAULT 0,
  attempts      INTEGER NOT NULL DEFAULT 0,
  message       TEXT,
  error         TEXT,
  duration_ms   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_time ON runs(ran_at);
CREATE INDEX IF NOT EXISTS idx_runs_server ON runs(server_id, ran_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Fixed width so ran_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun stores r and returns its row id. A zero RanAt is stamped with the
// current time.
func (d *DB) RecordRun(ctx context.Context, r Run) (int64, error) {
	if r.RanAt.IsZero() {
		r.RanAt = time.Now()
	}
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO runs(ran_at, server_id, server_name, outcome, before_hours, after_hours, attempts, message, error, duration_ms) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.RanAt.UTC().Format(timeFormat), r.ServerID, nullIfEmpty(r.ServerName), r.Outcome,
		r.BeforeHours, r.AfterHours, r.Attempts, nullIfEmpty(r.Message), nullIfEmpty(r.Error), r.DurationMS)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	return res.LastInsertId()
}

const runColumns = "id, ran_at, server_id, server_name, outcome, before_hours, after_hours, attempts, message, error, duration_ms"

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                   Run
		ranAt               string
		name, message, errS sql.NullString
	)
	if err := s.Scan(&r.ID, &ranAt, &r.ServerID, &name, &r.Outcome, &r.BeforeHours, &r.AfterHours, &r.Attempts, &message, &errS, &r.DurationMS); err != nil {
		return Run{}, err
	}
	if t, err := time.Parse(timeFormat, ranAt); err == nil {
		r.RanAt = t
	}
	r.ServerName = name.String
	r.Message = message.String
	r.Error = errS.String
	return r, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY ran_at DESC, id DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// LastRun returns the newest run for serverID, or nil when there is none.
func (d *DB) LastRun(ctx context.Context, serverID string) (*Run, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE server_id = ? ORDER BY ran_at DESC, id DESC LIMIT 1", serverID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// OutcomeCounts tallies runs per outcome, most frequent first.
func (d *DB) OutcomeCounts(ctx context.Context) ([]OutcomeCount, error) {
	query := `
		SELECT
			outcome,
			COUNT(*)
		FROM
			runs
		GROUP BY
			outcome
		ORDER BY
			COUNT(*) DESC, outcome;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []OutcomeCount
	for rows.Next() {
		var c OutcomeCount
		if err := rows.Scan(&c.Outcome, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
