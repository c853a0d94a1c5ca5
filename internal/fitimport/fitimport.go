// Package fitimport turns FIT activity files into session summaries and
// per-second sample series.
package fitimport

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tormoder/fit"

	"ride-analytics/internal/analysis"
	"ride-analytics/internal/store"
)

// IntervalSecs is the width of one sample in the resampled series
const IntervalSecs = 1.0

// maxSamples bounds the series length so a corrupt timestamp can't allocate unbounded memory
const maxSamples = 48 * 60 * 60

// ErrNoSession is returned for activity files without a session message
var ErrNoSession = errors.New("activity file has no session message")

// sessionNamespace scopes session IDs derived from a ride's start time
var sessionNamespace = uuid.MustParse("6f1d3c6e-2b0a-4f59-9d1e-6b9a3c1f7e42")

// Options tune the import
type Options struct {
	// FTP is used when the file carries no threshold power
	FTP int
}

// Ride is one imported activity
type Ride struct {
	Session store.Session
	Samples []analysis.RideSample
	Metrics analysis.RideMetrics
	Sport   string
}

// PowerSeries returns the per-second power values, nil where missing
func (r *Ride) PowerSeries() []*float64 {
	out := make([]*float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Power
	}
	return out
}

// HRSeries returns the per-second heart-rate values, nil where missing
func (r *Ride) HRSeries() []*float64 {
	out := make([]*float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.HR
	}
	return out
}

// PowerHR pairs the power and heart-rate series for decoupling
func (r *Ride) PowerHR() []analysis.PowerHRPoint {
	out := make([]analysis.PowerHRPoint, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = analysis.PowerHRPoint{Power: s.Power, HR: s.HR}
	}
	return out
}

// ParseFile decodes the FIT file at path
func ParseFile(path string, opts Options) (*Ride, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()

	ride, err := Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ride, nil
}

// Parse decodes a FIT activity stream
func Parse(r io.Reader, opts Options) (*Ride, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}

	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity FIT expected: %w", err)
	}
	return FromActivity(activity, opts)
}

// FromActivity builds a Ride from an already decoded activity file
func FromActivity(activity *fit.ActivityFile, opts Options) (*Ride, error) {
	if len(activity.Sessions) == 0 {
		return nil, ErrNoSession
	}
	msg := activity.Sessions[0]

	start := validTimeOrZero(msg.StartTime)
	if start.IsZero() && len(activity.Records) > 0 {
		start = validTimeOrZero(activity.Records[0].Timestamp)
	}
	if start.IsZero() {
		return nil, errors.New("activity has no valid start time")
	}

	samples := resample(activity.Records, start)

	ftp := int(validUint16(msg.ThresholdPower))
	if ftp == 0 {
		ftp = opts.FTP
	}
	computed := analysis.ComputeRideMetrics(samples, ftp, IntervalSecs)

	duration := int(safePositive(msg.GetTotalTimerTimeScaled()))
	if duration == 0 {
		duration = int(float64(len(samples)) * IntervalSecs)
	}

	session := store.Session{
		ID:           uuid.NewSHA1(sessionNamespace, []byte(start.UTC().Format(time.RFC3339))).String(),
		StartTime:    start.UTC(),
		DurationSecs: duration,
		Title:        fmt.Sprintf("%s ride", start.UTC().Format("Jan 2, 2006")),
	}
	if ftp > 0 {
		session.FTP = &ftp
	}

	// Session message values win; the record stream fills the gaps
	session.AvgPower = firstInt(validUint16(msg.AvgPower), computed.AvgPower)
	session.MaxPower = firstInt(validUint16(msg.MaxPower), computed.MaxPower)
	session.NormalizedPower = firstInt(validUint16(msg.NormalizedPower), computed.NormalizedPower)
	session.AvgHR = firstInt(uint16(validUint8(msg.AvgHeartRate)), computed.AvgHR)
	session.MaxHR = firstInt(uint16(validUint8(msg.MaxHeartRate)), computed.MaxHR)

	if cad := validUint8(msg.AvgCadence); cad > 0 {
		v := float64(cad)
		session.AvgCadence = &v
	} else {
		session.AvgCadence = computed.AvgCadence
	}

	if mps := avgSpeed(msg); mps > 0 {
		kmh := mps * 3.6
		session.AvgSpeed = &kmh
	} else if computed.AvgSpeed != nil {
		kmh := *computed.AvgSpeed * 3.6
		session.AvgSpeed = &kmh
	}

	// training_stress_score is stored x10, intensity_factor x1000
	if tss := validUint16(msg.TrainingStressScore); tss > 0 {
		v := float64(tss) / 10
		session.TSS = &v
	} else if session.NormalizedPower != nil && ftp > 0 {
		v := analysis.EstimateTSS(duration, float64(*session.NormalizedPower), float64(ftp))
		session.TSS = &v
	}
	if intensity := validUint16(msg.IntensityFactor); intensity > 0 {
		v := float64(intensity) / 1000
		session.IntensityFactor = &v
	} else if session.NormalizedPower != nil && ftp > 0 {
		v := float64(*session.NormalizedPower) / float64(ftp)
		session.IntensityFactor = &v
	}

	return &Ride{
		Session: session,
		Samples: samples,
		Metrics: computed,
		Sport:   fmt.Sprint(msg.Sport),
	}, nil
}

// resample places records on a one-second grid from start. Gaps stay nil;
// a later record in the same second replaces an earlier one.
func resample(records []*fit.RecordMsg, start time.Time) []analysis.RideSample {
	var samples []analysis.RideSample
	for _, rec := range records {
		ts := validTimeOrZero(rec.Timestamp)
		if ts.IsZero() {
			continue
		}
		idx := int(ts.Sub(start) / time.Second)
		if idx < 0 || idx >= maxSamples {
			continue
		}
		for len(samples) <= idx {
			samples = append(samples, analysis.RideSample{})
		}
		samples[idx] = analysis.RideSample{
			Power:   extractPower(rec),
			HR:      extractHeartRate(rec),
			Cadence: extractCadence(rec),
			Speed:   extractSpeed(rec),
		}
	}
	return samples
}

func extractPower(rec *fit.RecordMsg) *float64 {
	if rec.Power == math.MaxUint16 {
		return nil
	}
	v := float64(rec.Power)
	return &v
}

func extractHeartRate(rec *fit.RecordMsg) *float64 {
	if rec.HeartRate == math.MaxUint8 || rec.HeartRate == 0 {
		return nil
	}
	v := float64(rec.HeartRate)
	return &v
}

func extractCadence(rec *fit.RecordMsg) *float64 {
	if rec.Cadence == math.MaxUint8 {
		return nil
	}
	v := float64(rec.Cadence)
	return &v
}

// extractSpeed returns m/s, preferring the enhanced field
func extractSpeed(rec *fit.RecordMsg) *float64 {
	for _, speed := range []float64{rec.GetEnhancedSpeedScaled(), rec.GetSpeedScaled()} {
		if !math.IsNaN(speed) && !math.IsInf(speed, 0) && speed >= 0 {
			return &speed
		}
	}
	return nil
}

func avgSpeed(msg *fit.SessionMsg) float64 {
	if v := safePositive(msg.GetEnhancedAvgSpeedScaled()); v > 0 {
		return v
	}
	return safePositive(msg.GetAvgSpeedScaled())
}

// firstInt returns the session message value when set, else the computed one rounded
func firstInt(fromMsg uint16, computed *float64) *int {
	if fromMsg > 0 {
		v := int(fromMsg)
		return &v
	}
	if computed != nil {
		v := int(math.Round(*computed))
		return &v
	}
	return nil
}

func validTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func validUint8(v uint8) uint8 {
	if v == math.MaxUint8 {
		return 0
	}
	return v
}

func validUint16(v uint16) uint16 {
	if v == math.MaxUint16 {
		return 0
	}
	return v
}

func safePositive(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
