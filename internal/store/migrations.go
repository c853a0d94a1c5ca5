package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Ride session summaries
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			start_time TEXT NOT NULL,
			duration_secs INTEGER NOT NULL,
			ftp INTEGER,
			avg_power INTEGER,
			max_power INTEGER,
			normalized_power INTEGER,
			tss REAL,
			intensity_factor REAL,
			avg_hr INTEGER,
			max_hr INTEGER,
			avg_cadence REAL,
			avg_speed REAL,
			title TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time)`,

		// Completed zone rides, one row per ride
		`CREATE TABLE IF NOT EXISTS zone_rides (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			zone INTEGER NOT NULL,
			lower_bound INTEGER NOT NULL,
			upper_bound INTEGER NOT NULL,
			duration_secs INTEGER NOT NULL,
			time_in_zone_secs INTEGER NOT NULL,
			time_to_zone_secs REAL,
			stop_reason TEXT,
			commanded_power TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_zone_rides_session ON zone_rides(session_id)`,

		// Import bookkeeping (key-value)
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
