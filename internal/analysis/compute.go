package analysis

import (
	"math"
)

// NPWindowSecs is the rolling window normalized power is smoothed over
const NPWindowSecs = 30

// RideSample is one recorded second of a ride; any channel may be missing
type RideSample struct {
	Power   *float64
	HR      *float64
	Cadence *float64
	Speed   *float64
}

// RideMetrics is the per-session summary derived from a sample stream
type RideMetrics struct {
	AvgPower         *float64
	MaxPower         *float64
	NormalizedPower  *float64
	IntensityFactor  *float64
	TSS              *float64
	AvgHR            *float64
	MaxHR            *float64
	AvgCadence       *float64
	AvgSpeed         *float64
	EfficiencyFactor *float64
	Decoupling       *float64
	DataQualityScore float64
}

// ComputeRideMetrics calculates all metrics for one ride sampled every intervalSecs.
// IntensityFactor and TSS need a positive ftp.
func ComputeRideMetrics(samples []RideSample, ftp int, intervalSecs float64) RideMetrics {
	var metrics RideMetrics
	if len(samples) == 0 {
		return metrics
	}

	power := make([]*float64, len(samples))
	hr := make([]*float64, len(samples))
	cadence := make([]*float64, len(samples))
	speed := make([]*float64, len(samples))
	points := make([]PowerHRPoint, len(samples))
	for i, s := range samples {
		power[i], hr[i], cadence[i], speed[i] = s.Power, s.HR, s.Cadence, s.Speed
		points[i] = PowerHRPoint{Power: s.Power, HR: s.HR}
	}

	metrics.AvgPower, metrics.MaxPower = avgMax(power)
	metrics.AvgHR, metrics.MaxHR = avgMax(hr)
	metrics.AvgCadence, _ = avgMax(cadence)
	metrics.AvgSpeed, _ = avgMax(speed)

	if np := NormalizedPower(power, intervalSecs); np > 0 {
		metrics.NormalizedPower = &np
		if ftp > 0 {
			intensity := np / float64(ftp)
			metrics.IntensityFactor = &intensity
			tss := EstimateTSS(int(float64(len(samples))*intervalSecs), np, float64(ftp))
			metrics.TSS = &tss
		}
		if metrics.AvgHR != nil && *metrics.AvgHR > 0 {
			ef := EfficiencyFactor(np, *metrics.AvgHR)
			metrics.EfficiencyFactor = &ef
		}
	}

	metrics.Decoupling = Decoupling(points)

	// Data Quality Score: share of samples with power data
	valid := 0
	for _, p := range power {
		if p != nil {
			valid++
		}
	}
	metrics.DataQualityScore = float64(valid) / float64(len(samples))

	return metrics
}

// NormalizedPower returns the fourth-root mean of the fourth power of the
// 30 second rolling average. Missing samples count as zero watts.
// Rides shorter than the window fall back to plain average power.
func NormalizedPower(power []*float64, intervalSecs float64) float64 {
	if len(power) == 0 || intervalSecs <= 0 {
		return 0
	}

	window := int(math.Round(NPWindowSecs / intervalSecs))
	if window < 1 {
		window = 1
	}

	watts := make([]float64, len(power))
	for i, p := range power {
		if p != nil && *p > 0 {
			watts[i] = *p
		}
	}

	if len(watts) < window {
		var total float64
		for _, w := range watts {
			total += w
		}
		return total / float64(len(watts))
	}

	var rolling, sum4 float64
	var count int
	for i, w := range watts {
		rolling += w
		if i >= window {
			rolling -= watts[i-window]
		}
		if i >= window-1 {
			avg := rolling / float64(window)
			sum4 += math.Pow(avg, 4)
			count++
		}
	}
	return math.Pow(sum4/float64(count), 0.25)
}

// EfficiencyFactor is normalized power per heartbeat.
// Higher is better; typical aerobic rides sit between 1.0 and 2.0.
func EfficiencyFactor(normalizedPower, avgHR float64) float64 {
	if avgHR <= 0 {
		return 0
	}
	return normalizedPower / avgHR
}

// avgMax returns mean and max of the non-null values, nil when there are none
func avgMax(values []*float64) (*float64, *float64) {
	var total, peak float64
	var count int
	for _, v := range values {
		if v == nil {
			continue
		}
		if count == 0 || *v > peak {
			peak = *v
		}
		total += *v
		count++
	}
	if count == 0 {
		return nil, nil
	}
	avg := total / float64(count)
	return &avg, &peak
}

// DataQualityDescription returns a human-readable data quality assessment
func DataQualityDescription(score float64) string {
	switch {
	case score >= 0.95:
		return "Excellent"
	case score >= 0.85:
		return "Good"
	case score >= 0.70:
		return "Fair"
	case score >= 0.50:
		return "Poor"
	default:
		return "Very Poor"
	}
}
