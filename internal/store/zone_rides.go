package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SaveZoneRide stores the summary of a completed zone ride
func (db *DB) SaveZoneRide(ctx context.Context, z *ZoneRide) error {
	samples := z.CommandedPower
	if samples == nil {
		samples = []int{}
	}
	encoded, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("encoding commanded power: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO zone_rides (
			id, session_id, mode, zone, lower_bound, upper_bound,
			duration_secs, time_in_zone_secs, time_to_zone_secs,
			stop_reason, commanded_power, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		z.ID, z.SessionID, z.Mode, z.Zone, z.LowerBound, z.UpperBound,
		z.DurationSecs, z.TimeInZoneSecs, z.TimeToZoneSecs,
		z.StopReason, string(encoded), z.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving zone ride %s: %w", z.ID, err)
	}
	return nil
}

// ListZoneRides returns the zone rides recorded for a session, oldest first
func (db *DB) ListZoneRides(ctx context.Context, sessionID string) ([]ZoneRide, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, mode, zone, lower_bound, upper_bound,
			duration_secs, time_in_zone_secs, time_to_zone_secs,
			stop_reason, commanded_power, created_at
		FROM zone_rides
		WHERE session_id = ?
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing zone rides: %w", err)
	}
	defer rows.Close()

	var rides []ZoneRide
	for rows.Next() {
		var z ZoneRide
		var stopReason sql.NullString
		var samples, createdAt string

		if err := rows.Scan(
			&z.ID, &z.SessionID, &z.Mode, &z.Zone, &z.LowerBound, &z.UpperBound,
			&z.DurationSecs, &z.TimeInZoneSecs, &z.TimeToZoneSecs,
			&stopReason, &samples, &createdAt,
		); err != nil {
			return nil, err
		}

		z.StopReason = stopReason.String
		if err := json.Unmarshal([]byte(samples), &z.CommandedPower); err != nil {
			return nil, fmt.Errorf("decoding commanded power for %s: %w", z.ID, err)
		}
		z.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}

		rides = append(rides, z)
	}
	return rides, rows.Err()
}
