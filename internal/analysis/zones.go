package analysis

// TimeInZoneResult partitions tracked time relative to a target band.
// Below + InZone + Above equals the interval width times the non-null samples.
type TimeInZoneResult struct {
	BelowSecs  float64 `json:"below_secs" yaml:"below_secs"`
	InZoneSecs float64 `json:"in_zone_secs" yaml:"in_zone_secs"`
	AboveSecs  float64 `json:"above_secs" yaml:"above_secs"`
}

// TimeInZone classifies every non-null sample against [lower, upper] (inclusive)
// and accumulates intervalSecs per sample into the matching bucket.
func TimeInZone(values []*float64, lower, upper, intervalSecs float64) TimeInZoneResult {
	var result TimeInZoneResult
	for _, v := range values {
		if v == nil {
			continue
		}
		switch {
		case *v < lower:
			result.BelowSecs += intervalSecs
		case *v > upper:
			result.AboveSecs += intervalSecs
		default:
			result.InZoneSecs += intervalSecs
		}
	}
	return result
}

// TimeToZone returns index*intervalSecs of the first sample inside [lower, upper],
// or nil if the series never enters the band. Null samples never count.
func TimeToZone(values []*float64, lower, upper, intervalSecs float64) *float64 {
	for i, v := range values {
		if v != nil && *v >= lower && *v <= upper {
			secs := float64(i) * intervalSecs
			return &secs
		}
	}
	return nil
}

// InZonePct returns the share of tracked time spent inside the band, 0-100
func (r TimeInZoneResult) InZonePct() float64 {
	total := r.BelowSecs + r.InZoneSecs + r.AboveSecs
	if total == 0 {
		return 0
	}
	return r.InZoneSecs / total * 100
}

// PowerZone returns the 1-based power zone for watts given FTP and six
// upper-bound percentages. A value on a boundary belongs to the lower zone;
// above every boundary is zone 7. FTP below 1 is treated as 1.
func PowerZone(watts float64, ftp int, upperPcts []int) int {
	if ftp < 1 {
		ftp = 1
	}
	// Compare scaled watts against pct*ftp so exact boundaries don't drift
	scaled := watts * 100
	for i, upper := range upperPcts {
		if scaled <= float64(upper*ftp) {
			return i + 1
		}
	}
	return len(upperPcts) + 1
}

// HRZone returns the 1-based heart-rate zone for bpm given five upper bounds.
// Above every bound is still the top zone.
func HRZone(bpm float64, upperBounds []int) int {
	for i, upper := range upperBounds {
		if bpm <= float64(upper) {
			return i + 1
		}
	}
	if len(upperBounds) == 0 {
		return 1
	}
	return len(upperBounds)
}
