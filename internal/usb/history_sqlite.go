package usb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
//
// It stores mutation records in the mutation_history table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a new SQLite mutation history repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteHistoryRepository: Repository instance ready for use
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// Record inserts a new mutation history entry.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - rec: Mutation record to persist
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteHistoryRepository) Record(ctx context.Context, rec MutationRecord) error {
	if rec.KeyPath == "" {
		return fmt.Errorf("key path is required")
	}
	if rec.Action == "" {
		return fmt.Errorf("action is required")
	}
	if rec.Outcome == "" {
		return fmt.Errorf("outcome is required")
	}

	disable := 0
	if rec.Disable {
		disable = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mutation_history (key_path, action, disable, outcome, detail, token)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.KeyPath,
		rec.Action,
		disable,
		rec.Outcome,
		rec.Detail,
		rec.Token,
	)
	if err != nil {
		return fmt.Errorf("inserting mutation history: %w", err)
	}

	return nil
}

// Recent returns mutation history entries ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []MutationRecord: History entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteHistoryRepository) Recent(ctx context.Context, limit int) ([]MutationRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, key_path, action, disable, outcome, detail, token, created_at
		 FROM mutation_history
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying mutation history: %w", err)
	}
	defer rows.Close()

	records := make([]MutationRecord, 0, limit)
	for rows.Next() {
		var rec MutationRecord
		var disable int
		var createdAt string

		if err := rows.Scan(&rec.ID, &rec.KeyPath, &rec.Action, &disable, &rec.Outcome, &rec.Detail, &rec.Token, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning mutation history: %w", err)
		}
		rec.Disable = disable != 0

		timestamp, err := parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = timestamp

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mutation history: %w", err)
	}

	return records, nil
}

// Prune deletes history entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
func (r *SQLiteHistoryRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM mutation_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting mutation history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
