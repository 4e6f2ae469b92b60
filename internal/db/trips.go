package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Start times are stored as Unix seconds plus nanoseconds, which covers
// any year a date column can hold.
const (
	tripColumns = "row_num, trip_id, trip_type, started_at_s, started_at_nsec, path"
	startOrder  = "ORDER BY started_at_s, started_at_nsec, row_num"
)

// TripRow is a trip as stored in the working table
type TripRow struct {
	Row       int
	TripID    string
	TripType  string
	StartedAt time.Time
	Path      string
}

// InsertTrips replaces the content of the working table with trips in a
// single transaction
func (db *DB) InsertTrips(ctx context.Context, trips []TripRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM trips"); err != nil {
		return fmt.Errorf("failed to clear trips: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trips (row_num, trip_id, trip_type, started_at_s, started_at_nsec, path)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare trip insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trips {
		if _, err := stmt.ExecContext(ctx, t.Row, t.TripID, t.TripType, t.StartedAt.Unix(), t.StartedAt.Nanosecond(), t.Path); err != nil {
			return fmt.Errorf("failed to insert trip %s: %w", t.TripID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trips: %w", err)
	}
	return nil
}

// Split returns the trips of the given types started before cutoff (prior)
// and on or after it (candidates). Both are ordered by start time, ties
// broken by input row.
func (db *DB) Split(ctx context.Context, types []string, cutoff time.Time) (prior, candidates []TripRow, err error) {
	in, args := typeFilter(types)
	args = append(args, cutoff.Unix(), cutoff.Nanosecond())

	prior, err = db.queryTrips(ctx,
		"SELECT "+tripColumns+" FROM trips WHERE trip_type IN ("+in+") AND (started_at_s, started_at_nsec) < (?, ?) "+startOrder,
		args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query prior trips: %w", err)
	}

	candidates, err = db.queryTrips(ctx,
		"SELECT "+tripColumns+" FROM trips WHERE trip_type IN ("+in+") AND (started_at_s, started_at_nsec) >= (?, ?) "+startOrder,
		args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query candidate trips: %w", err)
	}

	return prior, candidates, nil
}

// HistoryRange returns the first and last start time among prior trips.
// ok is false when there are none.
func (db *DB) HistoryRange(ctx context.Context, types []string, cutoff time.Time) (first, last time.Time, ok bool, err error) {
	in, args := typeFilter(types)
	args = append(args, cutoff.Unix(), cutoff.Nanosecond())
	where := " FROM trips WHERE trip_type IN (" + in + ") AND (started_at_s, started_at_nsec) < (?, ?)"

	first, ok, err = db.queryStart(ctx, "SELECT started_at_s, started_at_nsec"+where+" ORDER BY started_at_s, started_at_nsec LIMIT 1", args...)
	if err != nil || !ok {
		return time.Time{}, time.Time{}, false, err
	}
	last, _, err = db.queryStart(ctx, "SELECT started_at_s, started_at_nsec"+where+" ORDER BY started_at_s DESC, started_at_nsec DESC LIMIT 1", args...)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return first, last, true, nil
}

// CountByType returns the number of loaded trips per trip type
func (db *DB) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT trip_type, COUNT(*) FROM trips GROUP BY trip_type")
	if err != nil {
		return nil, fmt.Errorf("count trips: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tripType string
		var n int
		if err := rows.Scan(&tripType, &n); err != nil {
			return nil, err
		}
		counts[tripType] = n
	}
	return counts, rows.Err()
}

func (db *DB) queryTrips(ctx context.Context, query string, args ...any) ([]TripRow, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []TripRow
	for rows.Next() {
		var t TripRow
		var sec, nsec int64
		if err := rows.Scan(&t.Row, &t.TripID, &t.TripType, &sec, &nsec, &t.Path); err != nil {
			return nil, err
		}
		t.StartedAt = time.Unix(sec, nsec).UTC()
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// queryStart reads the start time of the first row returned by query.
// ok is false when there is no row.
func (db *DB) queryStart(ctx context.Context, query string, args ...any) (time.Time, bool, error) {
	var sec, nsec int64
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(&sec, &nsec)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query history range: %w", err)
	}
	return time.Unix(sec, nsec).UTC(), true, nil
}

// typeFilter builds the placeholder list and arguments for an IN clause
func typeFilter(types []string) (string, []any) {
	placeholders := make([]string, len(types))
	args := make([]any, len(types))
	for i, t := range types {
		placeholders[i] = "?"
		args[i] = t
	}
	return strings.Join(placeholders, ", "), args
}
