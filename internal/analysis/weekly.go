package analysis

import (
	"sort"
	"time"

	"ride-analytics/internal/store"
)

// WeekBucket aggregates the sessions of one ISO week (Monday start, UTC)
type WeekBucket struct {
	WeekStart    string   `json:"week_start" yaml:"week_start"` // Monday, YYYY-MM-DD
	TotalTSS     float64  `json:"total_tss" yaml:"total_tss"`
	AvgPower     *float64 `json:"avg_power" yaml:"avg_power"`
	AvgHR        *float64 `json:"avg_hr" yaml:"avg_hr"`
	SessionCount int      `json:"session_count" yaml:"session_count"`
	DurationSecs int      `json:"duration_secs" yaml:"duration_secs"`
}

// weekAccumulator collects raw per-week values before averaging
type weekAccumulator struct {
	tss      float64
	powers   []float64
	hrs      []float64
	count    int
	duration int
}

// WeeklyTrend buckets sessions by the Monday of their ISO week and returns one
// bucket per week that has at least one session, oldest first.
// Averages only count sessions that carry the metric; a week with none is nil.
func WeeklyTrend(sessions []store.Session) []WeekBucket {
	if len(sessions) == 0 {
		return nil
	}

	weeks := make(map[string]*weekAccumulator)
	for _, s := range sessions {
		key := WeekStart(s.StartTime).Format(DateLayout)
		acc, ok := weeks[key]
		if !ok {
			acc = &weekAccumulator{}
			weeks[key] = acc
		}

		if s.TSS != nil {
			acc.tss += *s.TSS
		}
		if s.AvgPower != nil {
			acc.powers = append(acc.powers, float64(*s.AvgPower))
		}
		if s.AvgHR != nil {
			acc.hrs = append(acc.hrs, float64(*s.AvgHR))
		}
		acc.count++
		acc.duration += s.DurationSecs
	}

	keys := make([]string, 0, len(weeks))
	for k := range weeks {
		keys = append(keys, k)
	}
	// YYYY-MM-DD sorts chronologically as a string
	sort.Strings(keys)

	buckets := make([]WeekBucket, 0, len(keys))
	for _, k := range keys {
		acc := weeks[k]
		buckets = append(buckets, WeekBucket{
			WeekStart:    k,
			TotalTSS:     acc.tss,
			AvgPower:     mean(acc.powers),
			AvgHR:        mean(acc.hrs),
			SessionCount: acc.count,
			DurationSecs: acc.duration,
		})
	}
	return buckets
}

// WeekStart returns midnight UTC of the Monday starting t's ISO week.
// Sunday belongs to the week that began six days earlier.
func WeekStart(t time.Time) time.Time {
	day := utcDay(t)
	offset := int(day.Weekday()) - 1
	if day.Weekday() == time.Sunday {
		offset = 6
	}
	return day.AddDate(0, 0, -offset)
}

// mean returns the arithmetic mean, or nil for no values
func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	return &avg
}
