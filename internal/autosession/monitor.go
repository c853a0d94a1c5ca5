package autosession

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"ride-analytics/internal/live"
	"ride-analytics/internal/metrics"
	"ride-analytics/internal/schedule"
)

// DefaultTickInterval is the detector cadence
const DefaultTickInterval = time.Second

// SessionControl is the recording owner the monitor drives
type SessionControl interface {
	IsActive() bool
	StartSession(ctx context.Context) error
	StopSession(ctx context.Context) error
}

// MetricsSource returns the latest live metrics, nil when there are none
type MetricsSource interface {
	Latest() *live.LiveMetrics
}

// Config holds the monitor settings
type Config struct {
	Enabled        bool
	StartThreshold int
	StopThreshold  int
	Interval       time.Duration
}

// Monitor runs the detector on a timer and dispatches its decisions.
// A start or stop call still in flight is joined rather than issued again.
type Monitor struct {
	control SessionControl
	source  MetricsSource
	logger  zerolog.Logger
	task    *schedule.Task
	flight  singleflight.Group
	calls   sync.WaitGroup

	mu       sync.Mutex
	detector *Detector
}

// NewMonitor creates a monitor; call Start to begin ticking
func NewMonitor(cfg Config, control SessionControl, source MetricsSource, logger zerolog.Logger) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	detector := NewDetector(cfg.StartThreshold, cfg.StopThreshold)
	detector.SetEnabled(cfg.Enabled)

	m := &Monitor{
		control:  control,
		source:   source,
		logger:   logger.With().Str("component", "auto_session").Logger(),
		detector: detector,
	}
	m.task = schedule.NewTask(interval, m.Tick)
	return m
}

// Start begins the 1 Hz tick. Idempotent.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Debug().Msg("Starting auto-session monitor")
	m.task.Start(ctx)
}

// Stop ends the tick and clears the counters. In-flight calls are not awaited. Idempotent.
func (m *Monitor) Stop() {
	m.task.Stop()

	m.mu.Lock()
	m.detector.Reset()
	m.mu.Unlock()
}

// SetEnabled toggles auto start/stop; counters reset either way
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detector.SetEnabled(enabled)
	m.logger.Info().Bool("enabled", enabled).Msg("Auto-session toggled")
}

// Countdown returns the ticks left before an auto-start, nil when not counting
func (m *Monitor) Countdown() *int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.detector.Countdown()
}

// State returns a copy of the detector counters
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.detector.State()
}

// Tick runs one detector step and dispatches the result without blocking on it
func (m *Monitor) Tick(ctx context.Context) {
	active := m.control.IsActive()
	snapshot := m.source.Latest()

	m.mu.Lock()
	action := m.detector.Tick(active, snapshot)
	m.mu.Unlock()

	switch action {
	case ActionStart:
		m.dispatch(ctx, action, m.control.StartSession)
	case ActionStop:
		m.dispatch(ctx, action, m.control.StopSession)
	}
}

func (m *Monitor) dispatch(ctx context.Context, action Action, call func(ctx context.Context) error) {
	key := action.String()
	metrics.AutoSessionTriggers.WithLabelValues(key).Inc()
	m.logger.Info().Str("action", key).Msg("Auto-session triggered")

	ch := m.flight.DoChan(key, func() (interface{}, error) {
		return nil, call(ctx)
	})

	m.calls.Add(1)
	go func() {
		defer m.calls.Done()

		res := <-ch
		if res.Shared {
			m.logger.Debug().Str("action", key).Msg("Joined in-flight auto-session call")
		}
		if res.Err != nil {
			// The user keeps manual control; nothing to roll back
			metrics.AutoSessionFailures.WithLabelValues(key).Inc()
			m.logger.Warn().Err(res.Err).Str("action", key).Msg("Auto-session call failed")
		}
	}()
}
