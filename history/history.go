// Package history keeps an audit log of download attempts in SQLite. It is
// never consulted to decide whether a story should be fetched; the archive
// alone answers that.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pevans/newsgrab/story"
)

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Custom errors for history operations
var (
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrInvalidOutcome  = errors.New("outcome must be downloaded, skipped, or failed")
)

// Outcome is the result of one download attempt.
type Outcome string

// Attempt outcomes.
const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeDownloaded, OutcomeSkipped, OutcomeFailed:
		return true
	}
	return false
}

// Attempt is one recorded download attempt.
type Attempt struct {
	AttemptID  uuid.UUID     `json:"attempt_id"`
	Key        story.Key     `json:"key"`
	Title      string        `json:"title"`
	Link       string        `json:"link"`
	Outcome    Outcome       `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      *string       `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Filter represents filtering options for listing attempts.
type Filter struct {
	Outcome *Outcome   // Filter by outcome
	Key     *story.Key // Filter by story key
	Limit   int        // Maximum rows; 0 means no limit
}

// Store manages download attempts using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the history database at dsn.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Attempts are recorded from many goroutines; SQLite allows one writer.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the attempts table if it doesn't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		attempt_id TEXT PRIMARY KEY,
		story_key TEXT NOT NULL,
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		outcome TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS attempts_story_key ON attempts (story_key);
	CREATE INDEX IF NOT EXISTS attempts_started_at ON attempts (started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores an attempt. A zero AttemptID is replaced with a new UUID.
func (s *Store) Record(ctx context.Context, a Attempt) error {
	if !a.Outcome.Valid() {
		return ErrInvalidOutcome
	}

	if a.AttemptID == uuid.Nil {
		a.AttemptID = uuid.New()
	}

	query := `
		INSERT INTO attempts (
			attempt_id, story_key, title, link, outcome,
			status_code, error, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		a.AttemptID.String(),
		a.Key.String(),
		a.Title,
		a.Link,
		string(a.Outcome),
		a.StatusCode,
		a.Error,
		formatTime(a.StartedAt),
		a.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}

	return nil
}

// Get retrieves an attempt by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Attempt, error) {
	query := `
		SELECT attempt_id, story_key, title, link, outcome,
		       status_code, error, started_at, duration_ms
		FROM attempts
		WHERE attempt_id = ?
	`

	a, err := scanAttempt(s.db.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt: %w", err)
	}

	return a, nil
}

// List returns attempts matching filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Attempt, error) {
	query := `
		SELECT attempt_id, story_key, title, link, outcome,
		       status_code, error, started_at, duration_ms
		FROM attempts
	`

	var conditions []string
	var args []any

	if filter.Outcome != nil {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(*filter.Outcome))
	}
	if filter.Key != nil {
		conditions = append(conditions, "story_key = ?")
		args = append(args, filter.Key.String())
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY started_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attempts: %w", err)
	}

	return attempts, nil
}

// Counts returns the number of recorded attempts per outcome.
func (s *Store) Counts(ctx context.Context) (map[Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM attempts GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	defer rows.Close()

	counts := map[Outcome]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[Outcome(outcome)] = n
	}

	return counts, rows.Err()
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (*Attempt, error) {
	var idStr, key, title, link, outcome, startedAtStr string
	var statusCode int
	var durationMS int64
	var errMsg sql.NullString

	err := row.Scan(&idStr, &key, &title, &link, &outcome,
		&statusCode, &errMsg, &startedAtStr, &durationMS)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid attempt_id %q: %w", idStr, err)
	}

	a := &Attempt{
		AttemptID:  id,
		Key:        story.Key(key),
		Title:      title,
		Link:       link,
		Outcome:    Outcome(outcome),
		StatusCode: statusCode,
		StartedAt:  parseTime(startedAtStr),
		Duration:   time.Duration(durationMS) * time.Millisecond,
	}
	if errMsg.Valid {
		a.Error = &errMsg.String
	}

	return a, nil
}

func formatTime(t time.Time) string {
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.Truncate(0)
}
