package zonecontrol

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ride-analytics/internal/live"
)

// Engine limits
const (
	MinPower          = 50
	SafetyPower       = 50
	DefaultMaxPower   = 400
	hrMaxWattsPerStep = 10.0
	hrAdjustInterval  = 5 * time.Second
	hrSmootherSize    = 5
	cadenceZeroAfter  = 3 * time.Second
	sensorWarnAfter   = 15 * time.Second
	hrSensorStopAfter = 30 * time.Second
	initialHRPowerPct = 0.6
)

// EngineConfig holds the athlete values the engine clamps against
type EngineConfig struct {
	FTP   int
	MaxHR int
}

// Engine is an in-process Actuator. Power rides hold the midpoint of the
// band; heart-rate rides steer commanded power with a PID loop. Every
// status call advances the ride by the time since the last one.
type Engine struct {
	cfg       EngineConfig
	source    MetricsSource
	onCommand func(watts int)
	now       func() time.Time
	logger    zerolog.Logger

	mu         sync.Mutex
	target     *Target
	lastStep   time.Time
	elapsed    time.Duration
	timeInZone time.Duration
	paused     bool
	commanded  int
	phase      Phase
	note       string
	stopReason *StopReason
	// final is the last status of a ride the engine ended itself
	final *Status

	pid         *pid
	hr          medianSmoother
	lastAdjust  time.Time
	hrSeen      time.Time
	powerSeen   time.Time
	cadenceZero time.Time
}

// NewEngine creates an idle engine. onCommand receives every new commanded
// wattage and may be nil.
func NewEngine(cfg EngineConfig, source MetricsSource, onCommand func(watts int), logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		source:    source,
		onCommand: onCommand,
		now:       time.Now,
		logger:    logger.With().Str("component", "zone_engine").Logger(),
		phase:     PhaseIdle,
		pid:       newPID(1.0, 0.05, 0.3),
		hr:        medianSmoother{size: hrSmootherSize},
	}
}

func (e *Engine) maxPower() int {
	if e.cfg.FTP > 0 {
		return int(math.Round(float64(e.cfg.FTP) * TopPowerZoneMultiple))
	}
	return DefaultMaxPower
}

// StartZoneControl begins a ride
func (e *Engine) StartZoneControl(ctx context.Context, target Target) error {
	if err := target.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.target != nil {
		return ErrAlreadyActive
	}

	now := e.now()
	e.target = &target
	e.lastStep = now
	e.elapsed = 0
	e.timeInZone = 0
	e.paused = false
	e.note = ""
	e.stopReason = nil
	e.final = nil
	e.pid.reset()
	e.hr.reset()
	e.lastAdjust = now
	e.hrSeen = now
	e.powerSeen = now
	e.cadenceZero = time.Time{}
	e.phase = PhaseRamping
	e.commanded = 0

	if target.Mode == ModePower {
		e.commandLocked((target.LowerBound + target.UpperBound) / 2)
	} else {
		e.commandLocked(int(clamp(float64(e.cfg.FTP)*initialHRPowerPct, MinPower, float64(e.maxPower()))))
	}
	return nil
}

// StopZoneControl ends the ride and reports why it ended; nil when idle
func (e *Engine) StopZoneControl(ctx context.Context) (*StopReason, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.target == nil && e.stopReason == nil {
		return nil, nil
	}

	reason := StopUserStopped
	if e.stopReason != nil {
		reason = *e.stopReason
	}
	e.target = nil
	e.stopReason = nil
	e.final = nil
	e.phase = PhaseIdle
	e.note = ""
	e.paused = false
	return &reason, nil
}

// PauseZoneControl freezes elapsed time and the control loop
func (e *Engine) PauseZoneControl(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.target == nil {
		return ErrNotActive
	}
	e.stepLocked(e.now())
	e.paused = true
	return nil
}

// ResumeZoneControl restarts the clock from now
func (e *Engine) ResumeZoneControl(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.target == nil {
		return ErrNotActive
	}
	e.paused = false
	e.lastStep = e.now()
	return nil
}

// ZoneControlStatus advances the ride and reports it
func (e *Engine) ZoneControlStatus(ctx context.Context) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stepLocked(e.now())
	return e.statusLocked(), nil
}

func (e *Engine) statusLocked() Status {
	if e.target == nil {
		if e.final != nil {
			return *e.final
		}
		return Status{Phase: e.phase, SafetyNote: e.note}
	}
	commanded := e.commanded
	return Status{
		Active:         true,
		Mode:           e.target.Mode,
		TargetZone:     e.target.Zone,
		LowerBound:     e.target.LowerBound,
		UpperBound:     e.target.UpperBound,
		CommandedPower: &commanded,
		TimeInZoneSecs: int(e.timeInZone / time.Second),
		ElapsedSecs:    int(e.elapsed / time.Second),
		DurationSecs:   e.target.DurationSecs,
		Paused:         e.paused,
		Phase:          e.phase,
		SafetyNote:     e.note,
	}
}

func (e *Engine) commandLocked(watts int) {
	if watts < 0 {
		watts = 0
	}
	if watts == e.commanded {
		return
	}
	e.commanded = watts
	if e.onCommand != nil {
		e.onCommand(watts)
	}
}

// endLocked finishes the ride on the engine's own initiative. Later status
// calls report the ride's final figures as inactive until it is stopped.
func (e *Engine) endLocked(reason StopReason) {
	e.logger.Info().Str("reason", string(reason)).Msg("Zone ride ended")
	final := e.statusLocked()
	final.Active = false
	final.Phase = PhaseIdle
	e.final = &final
	e.stopReason = &reason
	e.target = nil
	e.phase = PhaseIdle
}

func (e *Engine) stepLocked(now time.Time) {
	if e.target == nil || e.paused {
		return
	}
	dt := now.Sub(e.lastStep)
	if dt <= 0 {
		return
	}
	e.lastStep = now

	// Elapsed never runs past a set duration; the last interval is still
	// scored before the ride ends
	var limit time.Duration
	if d := e.target.DurationSecs; d != nil {
		limit = time.Duration(*d) * time.Second
		if rest := limit - e.elapsed; dt > rest {
			dt = rest
		}
	}
	e.elapsed += dt
	defer func() {
		if e.target != nil && limit > 0 && e.elapsed >= limit {
			e.endLocked(StopDurationComplete)
		}
	}()

	var m *live.LiveMetrics
	if e.source != nil {
		m = e.source.Latest()
	}
	power, hr, cadence := freshChannels(m)
	if power != nil {
		e.powerSeen = now
	}
	if hr != nil {
		e.hrSeen = now
		e.hr.push(*hr)
	}

	// Cadence at zero for too long drops the load
	if cadence != nil && *cadence == 0 {
		if e.cadenceZero.IsZero() {
			e.cadenceZero = now
		}
	} else {
		e.cadenceZero = time.Time{}
	}
	if !e.cadenceZero.IsZero() && now.Sub(e.cadenceZero) >= cadenceZeroAfter {
		if e.commanded != 0 {
			e.commandLocked(0)
			e.note = "Cadence zero, power reduced"
		}
		return
	}

	if e.target.Mode == ModeHeartRate {
		if e.cfg.MaxHR > 0 && hr != nil && *hr > float64(e.cfg.MaxHR) {
			e.commandLocked(SafetyPower)
			e.note = "HR ceiling exceeded"
			e.phase = PhaseAdjusting
			return
		}
		lost := now.Sub(e.hrSeen)
		if lost >= hrSensorStopAfter {
			e.note = "HR sensor lost"
			e.endLocked(StopSensorLost)
			return
		}
		if lost >= sensorWarnAfter {
			e.note = "HR sensor not responding, holding power"
			return
		}
	} else if now.Sub(e.powerSeen) >= sensorWarnAfter {
		e.note = "Power sensor not responding"
	}

	if e.target.Mode == ModePower {
		e.powerStepLocked(power, dt)
	} else {
		e.hrStepLocked(now, dt)
	}
}

func (e *Engine) powerStepLocked(power *float64, dt time.Duration) {
	if power == nil {
		e.phase = PhaseRamping
		return
	}
	if inBand(*power, e.target) {
		e.timeInZone += dt
		e.phase = PhaseInZone
		e.note = ""
	} else {
		e.phase = PhaseAdjusting
	}
}

func (e *Engine) hrStepLocked(now time.Time, dt time.Duration) {
	smoothed, ok := e.hr.median()
	if !ok {
		e.phase = PhaseRamping
		return
	}
	if inBand(smoothed, e.target) {
		e.timeInZone += dt
		e.phase = PhaseInZone
		e.note = ""
	} else {
		e.phase = PhaseAdjusting
	}

	since := now.Sub(e.lastAdjust)
	if since < hrAdjustInterval {
		return
	}
	e.lastAdjust = now

	targetHR := float64(e.target.LowerBound+e.target.UpperBound) / 2
	errHR := targetHR - smoothed
	e.pid.setGains(adaptiveGains(math.Abs(errHR)))
	adjust := clamp(e.pid.update(errHR, since.Seconds()), -hrMaxWattsPerStep, hrMaxWattsPerStep)

	next := clamp(float64(e.commanded)+adjust, MinPower, float64(e.maxPower()))
	e.commandLocked(int(next))
}

func freshChannels(m *live.LiveMetrics) (power, hr, cadence *float64) {
	if m == nil {
		return nil, nil, nil
	}
	if !m.StalePower {
		power = m.CurrentPower
	}
	if !m.StaleHR {
		hr = m.CurrentHR
	}
	if !m.StaleCadence {
		cadence = m.CurrentCadence
	}
	return power, hr, cadence
}

func inBand(v float64, t *Target) bool {
	return v >= float64(t.LowerBound) && v <= float64(t.UpperBound)
}
