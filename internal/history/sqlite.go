package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 200
)

// SQLiteRepository implements Repository using SQLite.
//
// It stores event details as JSON in the camera_events table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite event repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a new event row for a camera.
func (r *SQLiteRepository) Record(ctx context.Context, cameraID int, cameraName, event string, detail Detail) error {
	if cameraID < 0 {
		return fmt.Errorf("camera id must be non-negative")
	}
	if event == "" {
		return fmt.Errorf("event is required")
	}
	if detail == nil {
		detail = Detail{}
	}

	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshalling detail: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO camera_events (camera_id, camera_name, event, detail) VALUES (?, ?, ?, ?)",
		cameraID,
		cameraName,
		event,
		string(detailJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting camera event: %w", err)
	}

	return nil
}

// Recent returns recent events for a camera, ordered newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, cameraID int, limit int) ([]Entry, error) {
	if cameraID < 0 {
		return nil, fmt.Errorf("camera id must be non-negative")
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, camera_id, camera_name, event, detail, created_at
		 FROM camera_events
		 WHERE camera_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		cameraID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying camera events: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows, limit)
}

// RecentByEvent returns recent events of one type across all cameras,
// ordered newest first.
func (r *SQLiteRepository) RecentByEvent(ctx context.Context, event string, limit int) ([]Entry, error) {
	if event == "" {
		return nil, fmt.Errorf("event is required")
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, camera_id, camera_name, event, detail, created_at
		 FROM camera_events
		 WHERE event = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		event,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying camera events: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows, limit)
}

// Prune deletes event rows older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM camera_events WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting camera events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// scanEntries reads event rows into entries.
func scanEntries(rows *sql.Rows, capacity int) ([]Entry, error) {
	entries := make([]Entry, 0, capacity)
	for rows.Next() {
		var entry Entry
		var detailJSON string
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.CameraID, &entry.CameraName, &entry.Event, &detailJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning camera event: %w", err)
		}

		if err := json.Unmarshal([]byte(detailJSON), &entry.Detail); err != nil {
			return nil, fmt.Errorf("unmarshalling detail: %w", err)
		}

		timestamp, err := parseEventTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating camera events: %w", err)
	}

	return entries, nil
}

// parseEventTimestamp parses a timestamp stored in SQLite.
func parseEventTimestamp(value string) (time.Time, error) {
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
