package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sessionColumns = `id, start_time, duration_secs, ftp, avg_power, max_power,
			normalized_power, tss, intensity_factor, avg_hr, max_hr,
			avg_cadence, avg_speed, title`

// UpsertSession inserts or updates a session summary
func (db *DB) UpsertSession(ctx context.Context, s *Session) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, start_time, duration_secs, ftp, avg_power, max_power,
			normalized_power, tss, intensity_factor, avg_hr, max_hr,
			avg_cadence, avg_speed, title, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			start_time = excluded.start_time,
			duration_secs = excluded.duration_secs,
			ftp = excluded.ftp,
			avg_power = excluded.avg_power,
			max_power = excluded.max_power,
			normalized_power = excluded.normalized_power,
			tss = excluded.tss,
			intensity_factor = excluded.intensity_factor,
			avg_hr = excluded.avg_hr,
			max_hr = excluded.max_hr,
			avg_cadence = excluded.avg_cadence,
			avg_speed = excluded.avg_speed,
			title = excluded.title,
			updated_at = CURRENT_TIMESTAMP
	`,
		s.ID, s.StartTime.Format(time.RFC3339), s.DurationSecs, s.FTP, s.AvgPower, s.MaxPower,
		s.NormalizedPower, s.TSS, s.IntensityFactor, s.AvgHR, s.MaxHR,
		s.AvgCadence, s.AvgSpeed, s.Title,
	)
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", s.ID, err)
	}
	return nil
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(ctx context.Context, id string) (*Session, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = ?
	`, id)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSessions returns every session ordered by start time ascending.
// The result is a fresh snapshot; callers may hand it to analytics without copying.
func (db *DB) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY start_time ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and its zone rides
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM zone_rides WHERE session_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return tx.Commit()
}

// CountSessions returns the total number of sessions
func (db *DB) CountSessions(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSession scans a single session from a row
func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var startTime string
	var title sql.NullString

	err := row.Scan(
		&s.ID, &startTime, &s.DurationSecs, &s.FTP, &s.AvgPower, &s.MaxPower,
		&s.NormalizedPower, &s.TSS, &s.IntensityFactor, &s.AvgHR, &s.MaxHR,
		&s.AvgCadence, &s.AvgSpeed, &title,
	)
	if err != nil {
		return nil, err
	}

	s.StartTime, err = time.Parse(time.RFC3339, startTime)
	if err != nil {
		return nil, fmt.Errorf("parsing start_time %q: %w", startTime, err)
	}
	s.Title = title.String

	return &s, nil
}
