package analysis

// MinDecouplingPoints is the fewest paired power/HR samples decoupling is computed from
const MinDecouplingPoints = 20

// PowerHRPoint is one interval's power and heart rate; either may be missing
type PowerHRPoint struct {
	Power *float64
	HR    *float64
}

// Decoupling calculates the HR:power drift between the first and second half
// of an effort, by sample count. Only points with both channels and power > 0
// count. Positive means HR rose for the same power (cardiac drift).
// Returns nil with fewer than MinDecouplingPoints usable points.
func Decoupling(points []PowerHRPoint) *float64 {
	var paired []PowerHRPoint
	for _, p := range points {
		if p.Power != nil && p.HR != nil && *p.Power > 0 {
			paired = append(paired, p)
		}
	}
	if len(paired) < MinDecouplingPoints {
		return nil
	}

	// Split into halves
	mid := len(paired) / 2
	firstRatio, ok := halfRatio(paired[:mid])
	if !ok {
		return nil
	}
	secondRatio, ok := halfRatio(paired[mid:])
	if !ok {
		return nil
	}
	if firstRatio == 0 {
		return nil
	}

	decoupling := (secondRatio - firstRatio) / firstRatio * 100
	return &decoupling
}

// halfRatio returns mean HR / mean power for one half
func halfRatio(points []PowerHRPoint) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}

	var totalPower, totalHR float64
	for _, p := range points {
		totalPower += *p.Power
		totalHR += *p.HR
	}

	n := float64(len(points))
	meanPower := totalPower / n
	if meanPower == 0 {
		return 0, false
	}
	return (totalHR / n) / meanPower, true
}

// DecouplingAssessment returns a human-readable decoupling assessment
func DecouplingAssessment(decoupling float64) string {
	switch {
	case decoupling < 3:
		return "Excellent aerobic base"
	case decoupling < 5:
		return "Good aerobic fitness"
	case decoupling < 8:
		return "Developing aerobic base"
	case decoupling < 12:
		return "Needs more endurance work"
	default:
		return "Aerobic system needs work"
	}
}
