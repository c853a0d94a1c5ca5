// Package live keeps the latest value of each sensor channel during a ride.
package live

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ride-analytics/internal/analysis"
)

// StaleAfter is how long a channel may go without a reading before it is flagged stale
const StaleAfter = 5 * time.Second

// powerWindow bounds the retained power history
const powerWindow = 30 * time.Second

// Kind identifies a sensor channel
type Kind string

const (
	KindPower     Kind = "power"
	KindHeartRate Kind = "heart_rate"
	KindCadence   Kind = "cadence"
	KindSpeed     Kind = "speed"
)

// ErrUnknownKind is returned for readings on a channel the tracker doesn't follow
var ErrUnknownKind = errors.New("unknown sensor reading kind")

// SensorReading is one sample from one device
type SensorReading struct {
	Kind     Kind    `json:"kind"`
	Value    float64 `json:"value"`
	DeviceID string  `json:"device_id"`
	EpochMs  int64   `json:"epoch_ms"`
}

// Time returns the reading timestamp
func (r SensorReading) Time() time.Time {
	return time.UnixMilli(r.EpochMs)
}

// LiveMetrics is a point-in-time view of every channel.
// A channel never seen is nil and not stale.
type LiveMetrics struct {
	CurrentPower   *float64 `json:"current_power"`
	AvgPower3s     *float64 `json:"avg_power_3s"`
	CurrentHR      *float64 `json:"current_hr"`
	CurrentCadence *float64 `json:"current_cadence"`
	CurrentSpeed   *float64 `json:"current_speed"`
	PowerZone      *int     `json:"power_zone"`
	HRZone         *int     `json:"hr_zone"`
	StalePower     bool     `json:"stale_power"`
	StaleHR        bool     `json:"stale_hr"`
	StaleCadence   bool     `json:"stale_cadence"`
	StaleSpeed     bool     `json:"stale_speed"`
}

// Zones is the athlete configuration needed to label live values
type Zones struct {
	FTP        int
	PowerZones []int
	HRZones    []int
}

type channel struct {
	value float64
	at    time.Time
	seen  bool
}

func (c *channel) update(value float64, at time.Time) {
	// Channels are ordered within a source; drop anything older than what we have
	if c.seen && at.Before(c.at) {
		return
	}
	c.value, c.at, c.seen = value, at, true
}

func (c *channel) current() *float64 {
	if !c.seen {
		return nil
	}
	v := c.value
	return &v
}

func (c *channel) stale(now time.Time) bool {
	return c.seen && now.Sub(c.at) > StaleAfter
}

type powerSample struct {
	at    time.Time
	watts float64
}

// Tracker records the latest reading per channel. Safe for concurrent use.
type Tracker struct {
	zones Zones

	mu      sync.Mutex
	power   channel
	hr      channel
	cadence channel
	speed   channel
	history []powerSample
}

// NewTracker creates an empty tracker
func NewTracker(zones Zones) *Tracker {
	return &Tracker{zones: zones}
}

// Ingest records a reading against its channel
func (t *Tracker) Ingest(r SensorReading) error {
	at := r.Time()

	t.mu.Lock()
	defer t.mu.Unlock()

	switch r.Kind {
	case KindPower:
		t.power.update(r.Value, at)
		t.history = append(t.history, powerSample{at: at, watts: r.Value})
		t.pruneHistory(at)
	case KindHeartRate:
		t.hr.update(r.Value, at)
	case KindCadence:
		t.cadence.update(r.Value, at)
	case KindSpeed:
		t.speed.update(r.Value, at)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
	return nil
}

func (t *Tracker) pruneHistory(now time.Time) {
	cutoff := now.Add(-powerWindow)
	i := 0
	for i < len(t.history) && t.history[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.history = append(t.history[:0], t.history[i:]...)
	}
}

// Snapshot returns the metrics as of now, or nil before the first reading
func (t *Tracker) Snapshot(now time.Time) *LiveMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.power.seen && !t.hr.seen && !t.cadence.seen && !t.speed.seen {
		return nil
	}

	m := &LiveMetrics{
		CurrentPower:   t.power.current(),
		AvgPower3s:     t.avgPower(now, 3*time.Second),
		CurrentHR:      t.hr.current(),
		CurrentCadence: t.cadence.current(),
		CurrentSpeed:   t.speed.current(),
		StalePower:     t.power.stale(now),
		StaleHR:        t.hr.stale(now),
		StaleCadence:   t.cadence.stale(now),
		StaleSpeed:     t.speed.stale(now),
	}

	if m.CurrentPower != nil && len(t.zones.PowerZones) > 0 {
		zone := analysis.PowerZone(*m.CurrentPower, t.zones.FTP, t.zones.PowerZones)
		m.PowerZone = &zone
	}
	if m.CurrentHR != nil && len(t.zones.HRZones) > 0 {
		zone := analysis.HRZone(*m.CurrentHR, t.zones.HRZones)
		m.HRZone = &zone
	}

	return m
}

// avgPower averages power readings no older than window, nil when there are none
func (t *Tracker) avgPower(now time.Time, window time.Duration) *float64 {
	cutoff := now.Add(-window)
	var total float64
	var count int
	for _, s := range t.history {
		if s.at.Before(cutoff) || s.at.After(now) {
			continue
		}
		total += s.watts
		count++
	}
	if count == 0 {
		return nil
	}
	avg := total / float64(count)
	return &avg
}
