package journal

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"camrent/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

const OutcomeOK = "ok"

// Entry is one issued remote request and how it ended.
type Entry struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	BookingID string    `json:"booking_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Journal is an append-only SQLite log of workflow requests.
type Journal struct {
	db *sql.DB

	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// a single writer keeps ":memory:" on one connection and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS operations (
            id TEXT PRIMARY KEY,
            op TEXT NOT NULL,
            booking_id TEXT,
            outcome TEXT NOT NULL,
            message TEXT,
            created_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_operations_booking_id ON operations(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_outcome ON operations(outcome)`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Record appends the outcome of op. A nil err is recorded as OutcomeOK.
func (j *Journal) Record(ctx context.Context, op, bookingID string, opErr error) error {
	e := Entry{Op: op, BookingID: bookingID, Outcome: OutcomeOK}
	if opErr != nil {
		e.Outcome = string(domain.KindOf(opErr))
		if e.Outcome == "" {
			e.Outcome = "error"
		}
		e.Message = domain.MessageOf(opErr)
	}

	j.mu.Lock()
	e.At = j.now().UTC()
	id, err := ulid.New(ulid.Timestamp(e.At), j.entropy)
	j.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to generate journal id: %w", err)
	}
	e.ID = id.String()

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO operations (id, op, booking_id, outcome, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Op, e.BookingID, e.Outcome, e.Message, e.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. bookingID filters when non-empty.
func (j *Journal) Recent(ctx context.Context, bookingID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, op, COALESCE(booking_id, ''), outcome, COALESCE(message, ''), created_at FROM operations`
	args := []any{}
	if bookingID != "" {
		query += ` WHERE booking_id = ?`
		args = append(args, bookingID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Op, &e.BookingID, &e.Outcome, &e.Message, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
