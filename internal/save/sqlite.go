package save

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"chickmaster/internal/game"
	"chickmaster/internal/metric"
)

// SQLiteStore keeps save slots and the per-day metric history of each run.
type SQLiteStore struct {
	conn *sqlx.DB
}

// OpenSQLite opens or creates a database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		slot TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		digest TEXT NOT NULL,
		day INTEGER NOT NULL,
		saved_at INTEGER NOT NULL,
		blob_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		taken_at INTEGER NOT NULL,
		metrics_json TEXT NOT NULL,
		events_json TEXT NOT NULL,
		modifier TEXT NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_saves_run ON saves(run_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

type saveRow struct {
	Slot     string `db:"slot"`
	RunID    string `db:"run_id"`
	Digest   string `db:"digest"`
	Day      int    `db:"day"`
	SavedAt  int64  `db:"saved_at"`
	BlobJSON string `db:"blob_json"`
}

func (r saveRow) record() (Record, error) {
	b, err := game.DecodeSaveBlob([]byte(r.BlobJSON))
	if err != nil {
		return Record{}, fmt.Errorf("slot %s: %w", r.Slot, err)
	}
	return Record{
		Slot:    r.Slot,
		RunID:   r.RunID,
		Digest:  r.Digest,
		Day:     r.Day,
		SavedAt: time.Unix(0, r.SavedAt).UTC(),
		Blob:    b,
	}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, r Record) error {
	r, err := prepare(r)
	if err != nil {
		return err
	}
	raw, err := r.Blob.Encode()
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO saves (slot, run_id, digest, day, saved_at, blob_json) VALUES (?, ?, ?, ?, ?, ?)",
		r.Slot, r.RunID, r.Digest, r.Day, r.SavedAt.UnixNano(), string(raw),
	)
	if err != nil {
		return fmt.Errorf("save slot %s: %w", r.Slot, err)
	}
	slog.Debug("save written", "slot", r.Slot, "run", r.RunID, "day", r.Day)
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, slot string) (Record, error) {
	var row saveRow
	err := s.conn.GetContext(ctx, &row,
		"SELECT slot, run_id, digest, day, saved_at, blob_json FROM saves WHERE slot = ?", slot)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %q", ErrNotFound, slot)
	}
	if err != nil {
		return Record{}, err
	}
	return row.record()
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	var rows []saveRow
	if err := s.conn.SelectContext(ctx, &rows,
		"SELECT slot, run_id, digest, day, saved_at, blob_json FROM saves ORDER BY slot"); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		r, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, slot string) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM saves WHERE slot = ?", slot)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, slot)
	}
	return nil
}

type snapshotRow struct {
	Day         int    `db:"day"`
	TakenAt     int64  `db:"taken_at"`
	MetricsJSON string `db:"metrics_json"`
	EventsJSON  string `db:"events_json"`
	Modifier    string `db:"modifier"`
}

// RecordSnapshots stores the daily snapshots of a run, replacing any
// already stored for the same days.
func (s *SQLiteStore) RecordSnapshots(ctx context.Context, runID string, snaps []game.MetricSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT OR REPLACE INTO snapshots
		(run_id, day, taken_at, metrics_json, events_json, modifier)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, snap := range snaps {
		metricsJSON, err := json.Marshal(snap.Metrics)
		if err != nil {
			return err
		}
		events := snap.Events
		if events == nil {
			events = []string{}
		}
		eventsJSON, _ := json.Marshal(events)

		if _, err := stmt.ExecContext(ctx,
			runID, snap.Day, snap.Timestamp.UnixNano(),
			string(metricsJSON), string(eventsJSON), snap.Modifier,
		); err != nil {
			return fmt.Errorf("insert snapshot day %d: %w", snap.Day, err)
		}
	}

	return tx.Commit()
}

// Snapshots returns a run's stored snapshots ordered by day.
func (s *SQLiteStore) Snapshots(ctx context.Context, runID string) ([]game.MetricSnapshot, error) {
	var rows []snapshotRow
	if err := s.conn.SelectContext(ctx, &rows,
		"SELECT day, taken_at, metrics_json, events_json, modifier FROM snapshots WHERE run_id = ? ORDER BY day",
		runID); err != nil {
		return nil, err
	}

	out := make([]game.MetricSnapshot, 0, len(rows))
	for _, row := range rows {
		snap := game.MetricSnapshot{
			Day:       row.Day,
			Timestamp: time.Unix(0, row.TakenAt).UTC(),
			Modifier:  row.Modifier,
		}
		if err := json.Unmarshal([]byte(row.MetricsJSON), &snap.Metrics); err != nil {
			return nil, fmt.Errorf("snapshot day %d: %w", row.Day, err)
		}
		if snap.Metrics == nil {
			snap.Metrics = make(map[metric.Metric]float64)
		}
		if err := json.Unmarshal([]byte(row.EventsJSON), &snap.Events); err != nil {
			return nil, fmt.Errorf("snapshot day %d: %w", row.Day, err)
		}
		out = append(out, snap)
	}
	return out, nil
}
