// Package autosession decides when to start and stop recording from live
// cadence and speed.
package autosession

import (
	"ride-analytics/internal/live"
)

// Default hysteresis thresholds in ticks
const (
	DefaultStartThreshold = 5
	DefaultStopThreshold  = 3
)

// Action is what a tick asks the session owner to do
type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	default:
		return "none"
	}
}

// State is a copy of the detector counters for display
type State struct {
	Enabled    bool `json:"enabled"`
	StartCount int  `json:"start_count"`
	StopCount  int  `json:"stop_count"`
	Countdown  *int `json:"countdown,omitempty"`
}

// Detector is the hysteresis state machine. It is not safe for concurrent
// use; Monitor serializes access.
type Detector struct {
	startThreshold int
	stopThreshold  int

	enabled    bool
	startCount int
	stopCount  int
	countdown  *int
	lastActive *bool
}

// NewDetector creates an enabled detector. Non-positive thresholds use the defaults.
func NewDetector(startThreshold, stopThreshold int) *Detector {
	if startThreshold <= 0 {
		startThreshold = DefaultStartThreshold
	}
	if stopThreshold <= 0 {
		stopThreshold = DefaultStopThreshold
	}
	return &Detector{
		startThreshold: startThreshold,
		stopThreshold:  stopThreshold,
		enabled:        true,
	}
}

// Tick evaluates one second of live data. active is whether a session is
// currently recording; m may be nil when no metrics are available.
func (d *Detector) Tick(active bool, m *live.LiveMetrics) Action {
	if !d.enabled {
		return ActionNone
	}

	if d.lastActive != nil && *d.lastActive != active {
		d.Reset()
	}
	d.lastActive = &active

	if active {
		return d.tickActive(m)
	}
	return d.tickInactive(m)
}

func (d *Detector) tickInactive(m *live.LiveMetrics) Action {
	d.stopCount = 0

	if m == nil || m.CurrentCadence == nil || *m.CurrentCadence <= 0 {
		d.startCount = 0
		d.countdown = nil
		return ActionNone
	}

	d.startCount++
	if d.startCount >= d.startThreshold {
		d.startCount = 0
		d.countdown = nil
		return ActionStart
	}

	remaining := d.startThreshold - d.startCount
	d.countdown = &remaining
	return ActionNone
}

func (d *Detector) tickActive(m *live.LiveMetrics) Action {
	d.startCount = 0
	d.countdown = nil

	stopped := m == nil || m.CurrentSpeed == nil || *m.CurrentSpeed <= 0 || m.StaleSpeed
	if !stopped {
		d.stopCount = 0
		return ActionNone
	}

	d.stopCount++
	if d.stopCount >= d.stopThreshold {
		d.stopCount = 0
		return ActionStop
	}
	return ActionNone
}

// SetEnabled toggles the detector. Either direction clears all counters.
func (d *Detector) SetEnabled(enabled bool) {
	d.enabled = enabled
	d.Reset()
}

// Reset clears both counters and the countdown
func (d *Detector) Reset() {
	d.startCount = 0
	d.stopCount = 0
	d.countdown = nil
}

// Countdown returns the ticks left before an auto-start, nil when not counting
func (d *Detector) Countdown() *int {
	if d.countdown == nil {
		return nil
	}
	c := *d.countdown
	return &c
}

// State returns a copy of the counters
func (d *Detector) State() State {
	return State{
		Enabled:    d.enabled,
		StartCount: d.startCount,
		StopCount:  d.stopCount,
		Countdown:  d.Countdown(),
	}
}
