package analysis

import (
	"time"

	"ride-analytics/internal/store"
)

// DateLayout is the calendar-day key used by every day- and week-keyed series
const DateLayout = "2006-01-02"

// EMA time constants in days
const (
	CTLDays = 42.0 // Chronic Training Load - "Fitness"
	ATLDays = 7.0  // Acute Training Load - "Fatigue"
)

// PMCDay is one calendar day of the Performance Management Chart
type PMCDay struct {
	Date string  `json:"date" yaml:"date"` // YYYY-MM-DD
	TSS  float64 `json:"tss" yaml:"tss"`   // summed TSS for the day
	CTL  float64 `json:"ctl" yaml:"ctl"`
	ATL  float64 `json:"atl" yaml:"atl"`
	TSB  float64 `json:"tsb" yaml:"tsb"` // CTL - ATL - "Form"
}

// CalculatePMC walks every calendar day from the earliest session to today
// (inclusive) and applies the CTL/ATL exponential moving averages.
// Sessions on the same day have their TSS summed; missing TSS counts as 0.
// Rest days are emitted with TSS 0 so the series never has gaps.
func CalculatePMC(sessions []store.Session, today time.Time) []PMCDay {
	if len(sessions) == 0 {
		return nil
	}

	// Create map of loads by date
	loadMap := make(map[string]float64)
	start := utcDay(sessions[0].StartTime)
	for _, s := range sessions {
		day := utcDay(s.StartTime)
		if day.Before(start) {
			start = day
		}
		if s.TSS != nil && *s.TSS > 0 {
			loadMap[day.Format(DateLayout)] += *s.TSS
		}
	}

	end := utcDay(today)
	var days []PMCDay
	var ctl, atl float64

	// Order matters: each day feeds the next
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(DateLayout)
		tss := loadMap[key] // 0 if no ride

		ctl = ctl + (tss-ctl)/CTLDays
		atl = atl + (tss-atl)/ATLDays

		days = append(days, PMCDay{
			Date: key,
			TSS:  tss,
			CTL:  ctl,
			ATL:  atl,
			TSB:  ctl - atl,
		})
	}

	return days
}

// CurrentFitness returns the most recent PMC day, or the zero value for an empty series
func CurrentFitness(days []PMCDay) PMCDay {
	if len(days) == 0 {
		return PMCDay{}
	}
	return days[len(days)-1]
}

// EstimateTSS computes power-based TSS from duration, normalized power and FTP.
// TSS = duration(h) * IF^2 * 100 where IF = NP / FTP. Returns 0 when FTP is not positive.
func EstimateTSS(durationSecs int, normalizedPower, ftp float64) float64 {
	if ftp <= 0 || normalizedPower <= 0 || durationSecs <= 0 {
		return 0
	}
	intensity := normalizedPower / ftp
	return float64(durationSecs) * normalizedPower * intensity / (ftp * 3600) * 100
}

// FormDescription returns a human-readable description of TSB
func FormDescription(tsb float64) string {
	switch {
	case tsb > 25:
		return "Very fresh (possibly detrained)"
	case tsb > 10:
		return "Fresh and ready to race"
	case tsb > 0:
		return "Neutral - good for training"
	case tsb > -10:
		return "Slightly fatigued"
	case tsb > -25:
		return "Tired but building fitness"
	default:
		return "Very fatigued - rest needed"
	}
}

// utcDay floors t to midnight UTC
func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
