package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-etl/internal/weather"
)

const runsSchema = `CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	city        TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	status      TEXT NOT NULL,
	object_key  TEXT,
	record      TEXT,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);`

const runColumns = `id, city, started_at, finished_at, status, object_key, record, error`

// SQLiteStore persists run history with the pure Go modernc.org/sqlite driver.
// Timestamps are stored as unix nanoseconds so range queries compare numerically.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveRun(run weather.RunResult) error {
	var record sql.NullString
	if run.Record != nil {
		data, err := json.Marshal(run.Record)
		if err != nil {
			return fmt.Errorf("encode run record: %w", err)
		}
		record = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs(`+runColumns+`) VALUES(?,?,?,?,?,?,?,?)`,
		run.ID,
		run.City,
		run.StartedAt.UnixNano(),
		run.FinishedAt.UnixNano(),
		string(run.Status),
		run.ObjectKey,
		record,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetLatest() (weather.RunResult, error) {
	runs, err := s.query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT 1`)
	if err != nil {
		return weather.RunResult{}, err
	}
	if len(runs) == 0 {
		return weather.RunResult{}, ErrNotFound
	}
	return runs[0], nil
}

func (s *SQLiteStore) GetRange(from, to time.Time) ([]weather.RunResult, error) {
	runs, err := s.query(
		`SELECT `+runColumns+` FROM runs WHERE started_at >= ? AND started_at <= ? ORDER BY started_at`,
		from.UnixNano(), to.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return runs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(q string, args ...any) ([]weather.RunResult, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []weather.RunResult
	for rows.Next() {
		var (
			run                 weather.RunResult
			started, finished   int64
			status              string
			key, record, errMsg sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.City, &started, &finished, &status, &key, &record, &errMsg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.Unix(0, started).UTC()
		run.FinishedAt = time.Unix(0, finished).UTC()
		run.Status = weather.RunStatus(status)
		run.ObjectKey = key.String
		run.Error = errMsg.String
		if record.Valid {
			var rec weather.Record
			if err := json.Unmarshal([]byte(record.String), &rec); err != nil {
				return nil, fmt.Errorf("decode run record %s: %w", run.ID, err)
			}
			run.Record = &rec
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
