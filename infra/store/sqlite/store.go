// Package sqlite persists every pipeline entity in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/MarcinPiech/DHLAI/core/model"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = model.ErrNotFound

const schema = `
CREATE TABLE IF NOT EXISTS periods (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	label       TEXT NOT NULL,
	year        INTEGER NOT NULL,
	status      TEXT NOT NULL DEFAULT 'draft',
	source_path TEXT NOT NULL DEFAULT '',
	sent_at     TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	UNIQUE(label, year)
);
CREATE TABLE IF NOT EXISTS ingest_versions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	period_id    INTEGER NOT NULL REFERENCES periods(id) ON DELETE CASCADE,
	number       INTEGER NOT NULL,
	source_path  TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	record_count INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	UNIQUE(period_id, number)
);
CREATE TABLE IF NOT EXISTS locations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	period_id     INTEGER NOT NULL REFERENCES periods(id) ON DELETE CASCADE,
	version_id    INTEGER NOT NULL REFERENCES ingest_versions(id) ON DELETE CASCADE,
	row_index     INTEGER NOT NULL,
	primary_code  TEXT NOT NULL DEFAULT '',
	street        TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	postal        TEXT NOT NULL DEFAULT '',
	coordinates   TEXT NOT NULL DEFAULT '',
	substrate     TEXT NOT NULL DEFAULT '',
	electric      TEXT NOT NULL DEFAULT '',
	service       TEXT NOT NULL DEFAULT '',
	assembly1     TEXT NOT NULL DEFAULT '',
	assembly2     TEXT NOT NULL DEFAULT '',
	assembly3     TEXT NOT NULL DEFAULT '',
	auto_company  TEXT NOT NULL DEFAULT '',
	auto_data     TEXT NOT NULL DEFAULT '{}',
	jumbo_company TEXT NOT NULL DEFAULT '',
	jumbo_data    TEXT NOT NULL DEFAULT '{}',
	protocol_path TEXT NOT NULL DEFAULT '',
	photos        TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_locations_version ON locations(version_id, row_index);
CREATE TABLE IF NOT EXISTS bags (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	period_id        INTEGER NOT NULL REFERENCES periods(id) ON DELETE CASCADE,
	row_index        INTEGER NOT NULL,
	load_date        TEXT NOT NULL,
	handling_company TEXT NOT NULL,
	details          TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS contacts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	full_name  TEXT NOT NULL,
	phone      TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL UNIQUE,
	category   TEXT NOT NULL DEFAULT 'team',
	company    TEXT NOT NULL DEFAULT '',
	active     INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS drafts (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	period_id         INTEGER NOT NULL REFERENCES periods(id) ON DELETE CASCADE,
	recipient_email   TEXT NOT NULL,
	recipient_name    TEXT NOT NULL DEFAULT '',
	cc                TEXT NOT NULL DEFAULT '[]',
	subject           TEXT NOT NULL,
	category          TEXT NOT NULL,
	priority          INTEGER NOT NULL DEFAULT 0,
	body_html         TEXT NOT NULL,
	body_plain        TEXT NOT NULL,
	attachments       TEXT NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL,
	validation_errors TEXT NOT NULL DEFAULT '[]',
	sent_at           TEXT,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drafts_period ON drafts(period_id, status);
CREATE TABLE IF NOT EXISTS delivery_logs (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	draft_id               INTEGER REFERENCES drafts(id) ON DELETE SET NULL,
	period_id              INTEGER NOT NULL REFERENCES periods(id) ON DELETE CASCADE,
	recipient              TEXT NOT NULL,
	subject                TEXT NOT NULL,
	outcome                TEXT NOT NULL,
	message_id             TEXT NOT NULL DEFAULT '',
	error                  TEXT NOT NULL DEFAULT '',
	attempt                INTEGER NOT NULL DEFAULT 0,
	read_receipt_requested INTEGER NOT NULL DEFAULT 0,
	attempted_at           TEXT NOT NULL,
	opened_at              TEXT,
	read_receipt_at        TEXT
);
CREATE INDEX IF NOT EXISTS idx_delivery_logs_draft ON delivery_logs(draft_id);
`

// Store is the SQLite implementation of every repository interface used by
// the pipeline.
type Store struct {
	db *sql.DB
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens or creates the database at path and ensures schema. The pool
// holds a single connection so pragmas and transactions see one session.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func exec(ctx context.Context, q querier, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.ExecContext(ctx, query, args...)
}

func insert(ctx context.Context, q querier, b sq.InsertBuilder) (int64, error) {
	res, err := exec(ctx, q, b)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func query(ctx context.Context, q querier, b sq.SelectBuilder) (*sql.Rows, error) {
	qs, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.QueryContext(ctx, qs, args...)
}

func queryRow(ctx context.Context, q querier, b sq.SelectBuilder) (*sql.Row, error) {
	qs, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.QueryRowContext(ctx, qs, args...), nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func fromJSON[T any](s string) T {
	var v T
	_ = json.Unmarshal([]byte(s), &v)
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
