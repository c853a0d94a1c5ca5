package analysis

// RampClass is the qualitative label for a weekly CTL change
type RampClass string

const (
	RampRecovery    RampClass = "recovery"
	RampMaintenance RampClass = "maintenance"
	RampModerate    RampClass = "moderate"
	RampAggressive  RampClass = "aggressive"
	RampExcessive   RampClass = "excessive"
)

// Ramp band lower edges in CTL per week. Each band runs up to the next edge.
const (
	RampMaintenanceFloor = 0.0
	RampModerateFloor    = 3.0
	RampAggressiveFloor  = 6.0
	RampExcessiveFloor   = 8.0
)

// RampWindowDays is the trailing window the ramp rate is measured over
const RampWindowDays = 7

// RampRate is the trailing 7-day CTL change
type RampRate struct {
	Current        float64   `json:"current" yaml:"current"` // CTL units per week
	Classification RampClass `json:"classification" yaml:"classification"`
}

// CalculateRampRate returns ctl[last] - ctl[last-7], or nil with fewer than 8 days
func CalculateRampRate(days []PMCDay) *RampRate {
	if len(days) < RampWindowDays+1 {
		return nil
	}

	last := len(days) - 1
	current := days[last].CTL - days[last-RampWindowDays].CTL

	return &RampRate{
		Current:        current,
		Classification: ClassifyRamp(current),
	}
}

// ClassifyRamp maps a weekly CTL delta onto contiguous, monotonic bands
func ClassifyRamp(current float64) RampClass {
	switch {
	case current < RampMaintenanceFloor:
		return RampRecovery
	case current < RampModerateFloor:
		return RampMaintenance
	case current < RampAggressiveFloor:
		return RampModerate
	case current < RampExcessiveFloor:
		return RampAggressive
	default:
		return RampExcessive
	}
}
