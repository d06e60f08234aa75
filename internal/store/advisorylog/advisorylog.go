// Package advisorylog keeps an append-only record of sentiment advisory
// fetches for operational review. It deliberately stays on database/sql: the
// table is a flat log with two statements against it.
package advisorylog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"riskbook/internal/logger"
	"riskbook/internal/pkg/text"
)

const summaryExcerptLimit = 200

// Entry is one advisory fetch outcome.
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Ticker    string    `json:"ticker"`
	Status    string    `json:"status"` // ok | error | breaker_open
	Attempts  int       `json:"attempts"`
	LatencyMS int64     `json:"latencyMs"`
	Error     string    `json:"error,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

type Log struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates the log database (and its directory) if needed.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating advisory log dir failed: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening advisory log failed: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Infof("[store] advisory log open at %s", path)
	return &Log{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS advisory_fetches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts          TIMESTAMP NOT NULL,
	user        TEXT NOT NULL,
	ticker      TEXT NOT NULL,
	status      TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	latency_ms  INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_advisory_fetches_ts ON advisory_fetches(ts);`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("creating advisory log schema failed: %w", err)
	}
	return nil
}

// Append writes one outcome. The summary is truncated to an excerpt; the full
// text lives on the trade record, not here.
func (l *Log) Append(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO advisory_fetches (ts, user, ticker, status, attempts, latency_ms, error, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.User, e.Ticker, e.Status, e.Attempts, e.LatencyMS,
		e.Error, text.Truncate(e.Summary, summaryExcerptLimit))
	if err != nil {
		return fmt.Errorf("appending advisory entry failed: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, ts, user, ticker, status, attempts, latency_ms, error, summary
		 FROM advisory_fetches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying advisory log failed: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.User, &e.Ticker, &e.Status,
			&e.Attempts, &e.LatencyMS, &e.Error, &e.Summary); err != nil {
			return nil, fmt.Errorf("scanning advisory entry failed: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Log) Close() error {
	return l.db.Close()
}
