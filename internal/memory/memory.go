// Package memory persists reflection lessons so future decisions can recall
// how similar past situations actually played out.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// LessonRecord is one persisted lesson with its originating situation.
type LessonRecord struct {
	ID           string
	Ticker       string
	DecisionDate string
	Action       string
	ActualReturn float64
	Summary      string
	Situation    string
	CreatedAt    string
}

// TickerStats aggregates recorded outcomes for one ticker.
type TickerStats struct {
	Ticker    string
	Lessons   int
	AvgReturn float64
}

// Store is a sqlite-backed lesson store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the lesson database at dbPath.
func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS lessons (
    id TEXT PRIMARY KEY,
    ticker TEXT NOT NULL,
    decision_date TEXT NOT NULL,
    action TEXT NOT NULL,
    actual_return REAL NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    situation TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_lessons_ticker_created ON lessons(ticker, created_at);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// RecordLesson inserts a lesson. The ID is generated when empty.
func (s *Store) RecordLesson(ctx context.Context, rec LessonRecord) (string, error) {
	if strings.TrimSpace(rec.Ticker) == "" {
		return "", fmt.Errorf("lesson ticker is required")
	}
	if rec.ID == "" {
		rec.ID = newID()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO lessons (id, ticker, decision_date, action, actual_return, summary, situation)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`, rec.ID, rec.Ticker, rec.DecisionDate, rec.Action, rec.ActualReturn, rec.Summary, rec.Situation)
	if err != nil {
		return "", fmt.Errorf("insert lesson: %w", err)
	}
	return rec.ID, nil
}

// RecentLessons returns the newest lessons for a ticker, most recent first.
func (s *Store) RecentLessons(ctx context.Context, ticker string, limit int) ([]LessonRecord, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if limit <= 0 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, ticker, decision_date, action, actual_return, summary, situation, created_at
FROM lessons
WHERE ticker = ?
ORDER BY rowid DESC
LIMIT ?
`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []LessonRecord
	for rows.Next() {
		var rec LessonRecord
		if err := rows.Scan(&rec.ID, &rec.Ticker, &rec.DecisionDate, &rec.Action, &rec.ActualReturn, &rec.Summary, &rec.Situation, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lessons rows: %w", err)
	}
	return lessons, nil
}

// Stats aggregates recorded outcomes per ticker across the whole store.
func (s *Store) Stats(ctx context.Context) ([]TickerStats, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ticker, COUNT(*), AVG(actual_return)
FROM lessons
GROUP BY ticker
ORDER BY ticker ASC
`)
	if err != nil {
		return nil, fmt.Errorf("lesson stats: %w", err)
	}
	defer rows.Close()

	var stats []TickerStats
	for rows.Next() {
		var st TickerStats
		if err := rows.Scan(&st.Ticker, &st.Lessons, &st.AvgReturn); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lesson stats rows: %w", err)
	}
	return stats, nil
}

func newID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
