package store

import "time"

// Session represents a recorded ride summary
type Session struct {
	ID              string    `db:"id" json:"id" yaml:"id"`
	StartTime       time.Time `db:"start_time" json:"start_time" yaml:"start_time"`
	DurationSecs    int       `db:"duration_secs" json:"duration_secs" yaml:"duration_secs"`
	FTP             *int      `db:"ftp" json:"ftp" yaml:"ftp"`                                              // nullable
	AvgPower        *int      `db:"avg_power" json:"avg_power" yaml:"avg_power"`                            // watts, nullable
	MaxPower        *int      `db:"max_power" json:"max_power" yaml:"max_power"`                            // watts, nullable
	NormalizedPower *int      `db:"normalized_power" json:"normalized_power" yaml:"normalized_power"`       // watts, nullable
	TSS             *float64  `db:"tss" json:"tss" yaml:"tss"`                                              // nullable
	IntensityFactor *float64  `db:"intensity_factor" json:"intensity_factor" yaml:"intensity_factor"`       // nullable
	AvgHR           *int      `db:"avg_hr" json:"avg_hr" yaml:"avg_hr"`                                     // bpm, nullable
	MaxHR           *int      `db:"max_hr" json:"max_hr" yaml:"max_hr"`                                     // bpm, nullable
	AvgCadence      *float64  `db:"avg_cadence" json:"avg_cadence" yaml:"avg_cadence"`                      // rpm, nullable
	AvgSpeed        *float64  `db:"avg_speed" json:"avg_speed" yaml:"avg_speed"`                            // km/h, nullable
	Title           string    `db:"title" json:"title" yaml:"title"`
}

// ZoneRide is the summary of a completed zone-control ride
type ZoneRide struct {
	ID             string    `db:"id" json:"id" yaml:"id"`
	SessionID      string    `db:"session_id" json:"session_id" yaml:"session_id"`
	Mode           string    `db:"mode" json:"mode" yaml:"mode"` // "power" or "heart_rate"
	Zone           int       `db:"zone" json:"zone" yaml:"zone"` // 0 for custom bounds
	LowerBound     int       `db:"lower_bound" json:"lower_bound" yaml:"lower_bound"`
	UpperBound     int       `db:"upper_bound" json:"upper_bound" yaml:"upper_bound"`
	DurationSecs   int       `db:"duration_secs" json:"duration_secs" yaml:"duration_secs"`
	TimeInZoneSecs int       `db:"time_in_zone_secs" json:"time_in_zone_secs" yaml:"time_in_zone_secs"`
	TimeToZoneSecs *float64  `db:"time_to_zone_secs" json:"time_to_zone_secs" yaml:"time_to_zone_secs"` // nullable, never reached zone
	StopReason     string    `db:"stop_reason" json:"stop_reason" yaml:"stop_reason"`
	CommandedPower []int     `db:"commanded_power" json:"commanded_power" yaml:"commanded_power"` // one sample per status poll
	CreatedAt      time.Time `db:"created_at" json:"created_at" yaml:"created_at"`
}
