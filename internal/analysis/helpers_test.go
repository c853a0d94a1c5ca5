package analysis

import (
	"time"

	"ride-analytics/internal/store"
)

func floatPtr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}

// values converts a literal series to the nullable form analytics take
func values(vs ...float64) []*float64 {
	out := make([]*float64, len(vs))
	for i := range vs {
		out[i] = floatPtr(vs[i])
	}
	return out
}

func makeSession(id string, start time.Time, tss *float64) store.Session {
	return store.Session{
		ID:           id,
		StartTime:    start,
		DurationSecs: 3600,
		TSS:          tss,
	}
}
