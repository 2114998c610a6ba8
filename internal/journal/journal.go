/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package journal persists labeled history commits outside the process. The
// default backend is an embedded SQLite file; PostgreSQL is reached through
// the pgx database/sql driver.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "layerforge/internal/log"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// ErrUnknownDriver is returned by Open for drivers other than sqlite and pgx.
var ErrUnknownDriver = errors.New("journal: unknown driver")

// Entry is one persisted commit.
type Entry struct {
	ID    string
	Doc   string
	Label string
	TS    time.Time
	Blob  []byte
}

type dialect struct {
	driver   string
	numbered bool // $1, $2 placeholders instead of ?
	ddl      string
}

var dialects = map[string]dialect{
	// dialect=SQLite
	"sqlite": {driver: "sqlite", ddl: `CREATE TABLE IF NOT EXISTS journal (
		seq   INTEGER PRIMARY KEY AUTOINCREMENT,
		id    TEXT NOT NULL UNIQUE,
		doc   TEXT NOT NULL,
		label TEXT NOT NULL,
		ts    TEXT NOT NULL,
		blob  BLOB
	)`},
	// dialect=PostgreSQL
	"pgx": {driver: "pgx", numbered: true, ddl: `CREATE TABLE IF NOT EXISTS journal (
		seq   BIGSERIAL PRIMARY KEY,
		id    TEXT NOT NULL UNIQUE,
		doc   TEXT NOT NULL,
		label TEXT NOT NULL,
		ts    TEXT NOT NULL,
		blob  BYTEA
	)`},
}

const (
	insertEntrySQL = `INSERT INTO journal(id, doc, label, ts, blob) VALUES (?, ?, ?, ?, ?)`
	listEntriesSQL = `SELECT id, doc, label, ts, blob FROM journal WHERE doc = ? ORDER BY seq DESC LIMIT ?`
	pruneSQL       = `DELETE FROM journal WHERE doc = ? AND seq NOT IN (
	SELECT seq FROM journal WHERE doc = ? ORDER BY seq DESC LIMIT ?
)`
	createIndexSQL = `CREATE INDEX IF NOT EXISTS idx_journal_doc ON journal(doc, seq)`
)

// Journal is an open history store. It is safe for concurrent use.
type Journal struct {
	db  *sql.DB
	d   dialect
	log *slog.Logger
}

// Open connects to driver ("sqlite" or "pgx", "postgres" is accepted as an
// alias) and ensures the schema exists. A plain sqlite dsn is treated as a
// file path whose directory is created on demand.
func Open(ctx context.Context, driver, dsn string) (*Journal, error) {
	if driver == "postgres" {
		driver = "pgx"
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	l := applog.WithOperation(applog.WithComponent("journal"), "open").With(slog.String("driver", driver))
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("journal: dsn is required")
	}
	if driver == "sqlite" {
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		l.Error("open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	j := &Journal{db: db, d: d, log: applog.WithComponent("journal")}
	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		l.Error("schema setup failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("journal ready")
	return j, nil
}

func sqliteDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return dsn, nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return "", fmt.Errorf("create journal dir: %w", err)
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(dsn)), nil
}

func (j *Journal) migrate(ctx context.Context) error {
	if err := j.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if _, err := j.db.ExecContext(ctx, j.d.ddl); err != nil {
		return fmt.Errorf("create journal table: %w", err)
	}
	if _, err := j.db.ExecContext(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("create journal index: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append stores e, assigning an id and a timestamp when missing, and returns
// the stored entry.
func (j *Journal) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.Doc == "" {
		return Entry{}, errors.New("journal: doc is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	e.TS = e.TS.UTC()
	_, err := j.db.ExecContext(ctx, j.rebind(insertEntrySQL), e.ID, e.Doc, e.Label, e.TS.Format(time.RFC3339Nano), e.Blob)
	if err != nil {
		return Entry{}, fmt.Errorf("append %q: %w", e.Label, err)
	}
	j.log.Debug("entry appended", slog.String("doc", e.Doc), slog.String("label", e.Label), slog.Int("bytes", len(e.Blob)))
	return e, nil
}

// List returns up to limit entries of doc, newest first. A non-positive
// limit means 50.
func (j *Journal) List(ctx context.Context, doc string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, j.rebind(listEntriesSQL), doc, limit)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", doc, err)
	}
	defer func() { _ = rows.Close() }()
	var out []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &e.Doc, &e.Label, &ts, &e.Blob); err != nil {
			return nil, err
		}
		if e.TS, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("list %q: entry %s: bad timestamp: %w", doc, e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune keeps the newest keepLast entries of doc and deletes the rest.
func (j *Journal) Prune(ctx context.Context, doc string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := j.db.ExecContext(ctx, j.rebind(pruneSQL), doc, doc, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune %q: %w", doc, err)
	}
	return res.RowsAffected()
}

// rebind rewrites ? placeholders for drivers that number them.
func (j *Journal) rebind(q string) string {
	if !j.d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
