// Package zonecontrol resolves training zones to numeric bounds and drives an
// external zone-control actuator through a target-zone ride.
package zonecontrol

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidZone   = errors.New("invalid zone")
	ErrInvalidBounds = errors.New("lower bound must be below upper bound")
	ErrInvalidFTP    = errors.New("ftp must be positive")
	ErrNotActive     = errors.New("no zone ride active")
	ErrAlreadyActive = errors.New("zone ride already active")
)

// Mode is the channel a zone ride targets
type Mode string

const (
	ModePower     Mode = "power"
	ModeHeartRate Mode = "heart_rate"
)

// ParseMode accepts the CLI spellings of a mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "power", "watts":
		return ModePower, nil
	case "hr", "heart_rate", "heartrate":
		return ModeHeartRate, nil
	}
	return "", fmt.Errorf("unknown zone mode %q", s)
}

// CustomZone marks a target whose bounds were given directly
const CustomZone = 0

// Target is what the actuator is asked to hold
type Target struct {
	Mode         Mode `json:"mode" yaml:"mode"`
	Zone         int  `json:"zone" yaml:"zone"`
	LowerBound   int  `json:"lower_bound" yaml:"lower_bound"`
	UpperBound   int  `json:"upper_bound" yaml:"upper_bound"`
	DurationSecs *int `json:"duration_secs,omitempty" yaml:"duration_secs,omitempty"`
}

// Validate checks the target is something an actuator could hold
func (t Target) Validate() error {
	if t.Mode != ModePower && t.Mode != ModeHeartRate {
		return fmt.Errorf("%w: mode %q", ErrInvalidZone, t.Mode)
	}
	if t.Zone < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidZone, t.Zone)
	}
	if t.LowerBound >= t.UpperBound {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidBounds, t.LowerBound, t.UpperBound)
	}
	if t.DurationSecs != nil && *t.DurationSecs <= 0 {
		return fmt.Errorf("duration must be positive, got %d", *t.DurationSecs)
	}
	return nil
}

// Phase is the actuator's operational phase
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRamping   Phase = "ramping"
	PhaseInZone    Phase = "in_zone"
	PhaseAdjusting Phase = "adjusting"
)

// StopReason explains why a zone ride ended
type StopReason string

const (
	StopUserStopped         StopReason = "UserStopped"
	StopDurationComplete    StopReason = "DurationComplete"
	StopSafetyStop          StopReason = "SafetyStop"
	StopTrainerDisconnected StopReason = "TrainerDisconnected"
	StopSensorLost          StopReason = "SensorLost"
)

// Status is what the actuator reports on each poll
type Status struct {
	Active         bool   `json:"active"`
	Mode           Mode   `json:"mode,omitempty"`
	TargetZone     int    `json:"target_zone"`
	LowerBound     int    `json:"lower_bound"`
	UpperBound     int    `json:"upper_bound"`
	CommandedPower *int   `json:"commanded_power,omitempty"`
	TimeInZoneSecs int    `json:"time_in_zone_secs"`
	ElapsedSecs    int    `json:"elapsed_secs"`
	DurationSecs   *int   `json:"duration_secs,omitempty"`
	Paused         bool   `json:"paused"`
	Phase          Phase  `json:"phase"`
	SafetyNote     string `json:"safety_note,omitempty"`
}
