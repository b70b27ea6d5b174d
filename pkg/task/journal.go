// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	atlaserrors "github.com/jllopis/atlas/pkg/errors"
	_ "modernc.org/sqlite"
)

// Journal is an append-only history of task transitions.
type Journal interface {
	Append(ctx context.Context, rec Record) error
	History(ctx context.Context, filter JournalFilter) ([]Record, error)
}

// JournalFilter narrows History results. Zero values match everything.
type JournalFilter struct {
	TaskID uuid.UUID
	Status Status
	Limit  int
}

// SQLiteJournal persists task transitions in SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// OpenSQLiteJournal opens (or creates) a journal database at path.
func OpenSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	j, err := NewSQLiteJournal(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// NewSQLiteJournal wraps db and ensures the schema exists.
func NewSQLiteJournal(db *sql.DB) (*SQLiteJournal, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureJournalSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

// Close releases the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Ping checks that the database is reachable.
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Append implements Journal.
func (j *SQLiteJournal) Append(ctx context.Context, rec Record) error {
	result := ""
	if rec.Result != nil {
		data, err := json.Marshal(rec.Result)
		if err != nil {
			return err
		}
		result = string(data)
	}
	recordedAt := rec.UpdatedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO task_journal (
			task_id, status, tool, result_json, error_text, error_code, created_at, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID.String(),
		string(rec.Status),
		rec.Tool,
		result,
		rec.Error,
		string(rec.ErrorCode),
		formatTime(rec.CreatedAt),
		formatTime(recordedAt),
	)
	return err
}

// History implements Journal, oldest transition first.
func (j *SQLiteJournal) History(ctx context.Context, filter JournalFilter) ([]Record, error) {
	query := `
		SELECT task_id, status, tool, result_json, error_text, error_code, created_at, recorded_at
		FROM task_journal
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.TaskID != uuid.Nil {
		addFilter("task_id = ?", filter.TaskID.String())
	}
	if filter.Status != "" {
		addFilter("status = ?", string(filter.Status))
	}
	query += where + " ORDER BY seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                   Record
			id, status, code      string
			resultJSON            string
			createdAt, recordedAt string
		)
		if err := rows.Scan(&id, &status, &rec.Tool, &resultJSON, &rec.Error, &code, &createdAt, &recordedAt); err != nil {
			return nil, err
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		rec.ErrorCode = atlaserrors.ErrorCode(code)
		if resultJSON != "" {
			if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
				return nil, err
			}
		}
		rec.CreatedAt = parseTime(createdAt)
		rec.UpdatedAt = parseTime(recordedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func ensureJournalSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS task_journal (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			status TEXT NOT NULL,
			tool TEXT,
			result_json TEXT,
			error_text TEXT,
			error_code TEXT,
			created_at TEXT,
			recorded_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_task_journal_task ON task_journal(task_id);
		CREATE INDEX IF NOT EXISTS idx_task_journal_status ON task_journal(status);
	`)
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
