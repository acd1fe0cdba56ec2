package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/okian/kpisync/internal/domain/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	trigger     TEXT NOT NULL,
	year        INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	result_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS notifications (
	channel     TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	day         TEXT NOT NULL,
	changes     INTEGER NOT NULL,
	sent_at     TEXT NOT NULL,
	PRIMARY KEY (channel, fingerprint, day)
);
`

// SQLiteStore persists history in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveRun implements Store.
func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	if run.ID == "" {
		return ErrInvalidRun
	}
	result, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, trigger, year, status, started_at, finished_at, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			trigger = excluded.trigger,
			year = excluded.year,
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			result_json = excluded.result_json`,
		run.ID, string(run.Trigger), run.Year, run.Result.Status,
		formatTime(run.StartedAt), formatTime(run.FinishedAt), string(result))
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger, year, started_at, finished_at, result_json
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// LastRun implements Store.
func (s *SQLiteStore) LastRun(ctx context.Context) (model.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, trigger, year, started_at, finished_at, result_json
		FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, ErrNotFound
	}
	return run, err
}

// SaveNotification implements Store.
func (s *SQLiteStore) SaveNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notifications (channel, fingerprint, day, changes, sent_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.Channel, n.Fingerprint, n.Day, n.Changes, formatTime(n.SentAt))
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

// NotificationSent implements Store.
func (s *SQLiteStore) NotificationSent(ctx context.Context, channel, fingerprint, day string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE channel = ? AND fingerprint = ? AND day = ?`,
		channel, fingerprint, day).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query notifications: %w", err)
	}
	return n > 0, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.RunRecord, error) {
	var (
		run               model.RunRecord
		trigger           string
		started, finished string
		result            string
	)
	if err := row.Scan(&run.ID, &trigger, &run.Year, &started, &finished, &result); err != nil {
		return model.RunRecord{}, err
	}
	run.Trigger = model.Trigger(trigger)
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	if err := json.Unmarshal([]byte(result), &run.Result); err != nil {
		return model.RunRecord{}, fmt.Errorf("decode run %s: %w", run.ID, err)
	}
	return run, nil
}

// timeLayout is fixed width so text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
