package sink

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine"
)

func init() {
	Register("sqlite", newSQLite)
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	doc_index  TEXT NOT NULL,
	pattern    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	records    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	start_line INTEGER,
	end_line   INTEGER,
	fields     TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_runs_doc_index ON runs(doc_index);
`

// sqliteSink stores each table as one run. Record fields are kept as a
// JSON object because patterns differ in their columns. Timestamps are
// RFC3339Nano strings; SQLite has no native time type.
type sqliteSink struct {
	db      *sql.DB
	pattern string
	now     func() time.Time
}

func newSQLite(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sink sqlite: missing database path")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", cfg.DSN, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &sqliteSink{db: db, pattern: cfg.Pattern, now: time.Now}, nil
}

func (s *sqliteSink) Write(ctx context.Context, t *chunkmine.Table) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	runID := uuid.NewString()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, doc_index, pattern, created_at, records) VALUES (?, ?, ?, ?, ?)`,
		runID, t.Index, s.pattern, s.now().UTC().Format(time.RFC3339Nano), t.Len(),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, seq, start_line, end_line, fields) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var buf bytes.Buffer
	for i, row := range t.Rows {
		buf.Reset()
		if err = encodeObject(&buf, t.Columns[2:], row[2:]); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		if _, err = stmt.ExecContext(ctx, runID, i, lineValue(row[0]), lineValue(row[1]), buf.String()); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteSink) Close() error { return s.db.Close() }

// lineValue keeps integer line bounds and stores NULL when a record field
// replaced the bound with something else.
func lineValue(v any) any {
	if n, ok := v.(int); ok {
		return n
	}
	return nil
}
