package zonecontrol

import (
	"fmt"
	"math"

	"ride-analytics/internal/config"
)

const (
	// TopPowerZoneMultiple caps the open-ended top power zone at this multiple of FTP
	TopPowerZoneMultiple = 1.5
	// DefaultMaxHR caps the top HR zone when no max HR is configured
	DefaultMaxHR = 220
)

// ResolveBounds converts a zone number into [lower, upper] for the athlete.
// Zones past the last configured boundary resolve to the open-ended top zone.
func ResolveBounds(mode Mode, zone int, athlete config.AthleteConfig) (int, int, error) {
	if zone < 1 {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidZone, zone)
	}

	switch mode {
	case ModePower:
		return powerBounds(zone, athlete)
	case ModeHeartRate:
		return hrBounds(zone, athlete)
	}
	return 0, 0, fmt.Errorf("%w: mode %q", ErrInvalidZone, mode)
}

func powerBounds(zone int, athlete config.AthleteConfig) (int, int, error) {
	if athlete.FTP <= 0 {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidFTP, athlete.FTP)
	}
	if len(athlete.PowerZones) != config.PowerZoneCount {
		return 0, 0, fmt.Errorf("%w: need %d power zone bounds, have %d", ErrInvalidZone, config.PowerZoneCount, len(athlete.PowerZones))
	}

	ftp := float64(athlete.FTP)
	watts := make([]int, 0, config.PowerZoneCount+1)
	watts = append(watts, 0)
	for _, pct := range athlete.PowerZones {
		watts = append(watts, int(math.Round(float64(pct)/100*ftp)))
	}

	if zone <= config.PowerZoneCount {
		return watts[zone-1], watts[zone], nil
	}
	return watts[config.PowerZoneCount], int(math.Round(ftp * TopPowerZoneMultiple)), nil
}

func hrBounds(zone int, athlete config.AthleteConfig) (int, int, error) {
	if len(athlete.HRZones) != config.HRZoneCount {
		return 0, 0, fmt.Errorf("%w: need %d hr zone bounds, have %d", ErrInvalidZone, config.HRZoneCount, len(athlete.HRZones))
	}

	bpm := make([]int, 0, config.HRZoneCount+1)
	bpm = append(bpm, 0)
	bpm = append(bpm, athlete.HRZones...)

	// The top zone runs from the fourth boundary to max HR
	top := config.HRZoneCount
	if zone < top {
		return bpm[zone-1], bpm[zone], nil
	}
	maxHR := athlete.MaxHR
	if maxHR <= 0 {
		maxHR = DefaultMaxHR
	}
	return bpm[top-1], maxHR, nil
}
