package readings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Entry is a single persisted reading.
type Entry struct {
	ID       int64     `json:"id"`
	SensorID string    `json:"sensor_id"`
	State    *float64  `json:"state"`
	RawValue *float64  `json:"raw_value"`
	Created  time.Time `json:"created_at"`
}

// Repository is the persistence interface the bridge writes through.
// SQLiteRepository is the only implementation; the interface exists so the
// bridge and API can run without a database.
type Repository interface {
	Record(ctx context.Context, sensorID string, state, raw *float64) error
	Latest(ctx context.Context, sensorID string) (*Entry, error)
	History(ctx context.Context, sensorID string, limit int) ([]Entry, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite reading repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a reading row for a sensor.
//
// A nil state records an unavailable cycle. raw may still be set in that
// case when the device produced a value that failed normalization.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - sensorID: Sensor entity identifier
//   - state: Normalized value, nil when the sensor was unavailable
//   - raw: Unrounded device value, nil when no value was read
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, sensorID string, state, raw *float64) error {
	if sensorID == "" {
		return fmt.Errorf("sensor id is required")
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO readings (sensor_id, state, raw_value) VALUES (?, ?, ?)",
		sensorID,
		state,
		raw,
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	return nil
}

// Latest returns the most recent reading for a sensor, or nil if none exists.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - sensorID: Sensor entity identifier
//
// Returns:
//   - *Entry: Most recent reading, nil when the sensor has no rows
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) Latest(ctx context.Context, sensorID string) (*Entry, error) {
	if sensorID == "" {
		return nil, fmt.Errorf("sensor id is required")
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, sensor_id, state, raw_value, created_at
		 FROM readings
		 WHERE sensor_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		sensorID,
	)

	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}

	return entry, nil
}

// History returns recent readings for a sensor, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - sensorID: Sensor entity identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: Readings ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) History(ctx context.Context, sensorID string, limit int) ([]Entry, error) {
	if sensorID == "" {
		return nil, fmt.Errorf("sensor id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sensor_id, state, raw_value, created_at
		 FROM readings
		 WHERE sensor_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		sensorID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}

	return entries, nil
}

// Prune deletes readings older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Retention window (rows older than now-olderThan are deleted)
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
		"DELETE FROM readings WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting readings: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// scanEntry scans a reading row using the given scan function.
func scanEntry(scan func(dest ...any) error) (*Entry, error) {
	var entry Entry
	var state, raw sql.NullFloat64
	var createdAt string

	if err := scan(&entry.ID, &entry.SensorID, &state, &raw, &createdAt); err != nil {
		return nil, err
	}

	if state.Valid {
		entry.State = &state.Float64
	}
	if raw.Valid {
		entry.RawValue = &raw.Float64
	}

	timestamp, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, err
	}
	entry.Created = timestamp

	return &entry, nil
}

// parseTimestamp parses a created_at value stored by SQLite.
func parseTimestamp(value string) (time.Time, error) {
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
