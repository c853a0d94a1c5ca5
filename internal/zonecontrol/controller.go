package zonecontrol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ride-analytics/internal/analysis"
	"ride-analytics/internal/live"
	"ride-analytics/internal/metrics"
	"ride-analytics/internal/schedule"
	"ride-analytics/internal/store"
)

// DefaultPollInterval is the status poll cadence
const DefaultPollInterval = time.Second

// Actuator is the external zone controller. Implementations own the ride
// state; stopping clears it.
type Actuator interface {
	StartZoneControl(ctx context.Context, target Target) error
	StopZoneControl(ctx context.Context) (*StopReason, error)
	PauseZoneControl(ctx context.Context) error
	ResumeZoneControl(ctx context.Context) error
	ZoneControlStatus(ctx context.Context) (Status, error)
}

// SummarySink persists completed zone-ride summaries
type SummarySink interface {
	SaveZoneRide(ctx context.Context, z *store.ZoneRide) error
}

// MetricsSource supplies the live value sampled alongside each status poll
type MetricsSource interface {
	Latest() *live.LiveMetrics
}

// Controller orchestrates one zone ride at a time against an Actuator
type Controller struct {
	actuator Actuator
	sink     SummarySink
	source   MetricsSource
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	// sampleSecs is the width of one live value sample, one per poll
	sampleSecs float64

	mu         sync.Mutex
	task       *schedule.Task
	target     *Target
	status     *Status
	ended      bool
	generation uint64
	commanded  []int
	values     []*float64
}

// NewController creates an idle controller. sink and source may be nil.
func NewController(actuator Actuator, sink SummarySink, source MetricsSource, interval time.Duration, logger zerolog.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Controller{
		actuator: actuator,
		sink:     sink,
		source:   source,
		interval: interval,
		logger:   logger.With().Str("component", "zone_control").Logger(),
		now:      time.Now,

		sampleSecs: interval.Seconds(),
	}
}

// Start commands the actuator and begins polling its status
func (c *Controller) Start(ctx context.Context, target Target) error {
	if err := target.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.target != nil {
		return ErrAlreadyActive
	}

	if err := c.actuator.StartZoneControl(ctx, target); err != nil {
		return fmt.Errorf("starting zone control: %w", err)
	}

	c.target = &target
	c.status = nil
	c.ended = false
	c.commanded = nil
	// values[i] is the live value i poll intervals into the ride
	c.values = []*float64{c.sample(target.Mode)}
	c.generation++

	gen := c.generation
	c.task = schedule.NewTask(c.interval, func(ctx context.Context) { c.poll(ctx, gen) })
	c.task.Start(ctx)

	c.logger.Info().
		Str("mode", string(target.Mode)).
		Int("zone", target.Zone).
		Int("lower", target.LowerBound).
		Int("upper", target.UpperBound).
		Msg("Zone ride started")
	return nil
}

// Stop ends the poll, clears status, then commands the actuator to stop.
// Status is cleared even when the actuator call fails.
func (c *Controller) Stop(ctx context.Context) (*StopReason, error) {
	c.mu.Lock()
	if c.target == nil {
		c.mu.Unlock()
		return nil, ErrNotActive
	}
	c.haltLocked()
	c.mu.Unlock()

	reason, err := c.actuator.StopZoneControl(ctx)
	if err != nil {
		return nil, fmt.Errorf("stopping zone control: %w", err)
	}

	c.logger.Info().Interface("reason", reason).Msg("Zone ride stopped")
	return reason, nil
}

// haltLocked stops the poll and forgets the ride. Caller holds mu.
func (c *Controller) haltLocked() {
	if c.task != nil {
		c.task.Stop()
		c.task = nil
	}
	// Bump the generation so a poll already in flight can't write stale status
	c.generation++
	c.target = nil
	c.status = nil
	c.ended = false
	c.commanded = nil
	c.values = nil
}

// Pause forwards to the actuator; polling continues
func (c *Controller) Pause(ctx context.Context) error {
	if !c.Active() {
		return ErrNotActive
	}
	if err := c.actuator.PauseZoneControl(ctx); err != nil {
		return fmt.Errorf("pausing zone control: %w", err)
	}
	return nil
}

// Resume forwards to the actuator; polling continues
func (c *Controller) Resume(ctx context.Context) error {
	if !c.Active() {
		return ErrNotActive
	}
	if err := c.actuator.ResumeZoneControl(ctx); err != nil {
		return fmt.Errorf("resuming zone control: %w", err)
	}
	return nil
}

// Active reports whether a zone ride is running
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target != nil
}

// Status returns a copy of the last polled status, nil when idle or not yet polled
func (c *Controller) Status() *Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == nil {
		return nil
	}
	s := *c.status
	return &s
}

// Close stops polling without commanding the actuator. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.task != nil {
		c.task.Stop()
		c.task = nil
	}
	c.generation++
}

func (c *Controller) poll(ctx context.Context, gen uint64) {
	start := time.Now()
	metrics.ZoneStatusPolls.Inc()

	status, err := c.actuator.ZoneControlStatus(ctx)
	metrics.ZoneStatusPollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ZoneStatusPollErrors.Inc()
		c.logger.Warn().Err(err).Msg("Zone status poll failed")
		return
	}

	c.mu.Lock()
	mode := ModePower
	if c.target != nil {
		mode = c.target.Mode
	}
	c.mu.Unlock()
	value := c.sample(mode)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.target == nil || c.ended {
		return
	}

	// The actuator ended the ride itself. Its last report stands until the
	// ride is stopped; an actuator that cleared its figures keeps the previous one.
	if !status.Active {
		c.ended = true
		if c.task != nil {
			c.task.Stop()
			c.task = nil
		}
		c.logger.Info().Str("note", status.SafetyNote).Msg("Zone ride ended by the actuator")
		if c.status != nil && status.ElapsedSecs < c.status.ElapsedSecs {
			return
		}
	}

	c.status = &status
	if status.CommandedPower != nil {
		c.commanded = append(c.commanded, *status.CommandedPower)
	}
	c.values = append(c.values, value)

	if status.SafetyNote != "" {
		c.logger.Warn().Str("note", status.SafetyNote).Msg("Zone control safety note")
	}
}

// sample reads the live channel matching mode; nil without a source or data
func (c *Controller) sample(mode Mode) *float64 {
	if c.source == nil {
		return nil
	}
	return liveValue(c.source.Latest(), mode)
}

func liveValue(m *live.LiveMetrics, mode Mode) *float64 {
	if m == nil {
		return nil
	}
	if mode == ModeHeartRate {
		return m.CurrentHR
	}
	return m.CurrentPower
}

// Finish ends the active ride as part of a session stop and persists its summary.
// The final status is captured before stopping because stopping clears it.
// Every failure is logged and swallowed; nil means no ride was active.
func (c *Controller) Finish(ctx context.Context, sessionID string) *store.ZoneRide {
	c.mu.Lock()
	if c.target == nil {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	c.mu.Unlock()

	// One last poll so the summary reflects the ride's final second
	c.poll(ctx, gen)

	c.mu.Lock()
	if c.target == nil {
		c.mu.Unlock()
		return nil
	}
	summary := c.summaryLocked(sessionID)
	c.mu.Unlock()

	reason, err := c.Stop(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to stop zone ride during session stop")
	}
	if reason != nil {
		summary.StopReason = string(*reason)
	}

	if c.sink == nil {
		return summary
	}
	if err := c.sink.SaveZoneRide(ctx, summary); err != nil {
		metrics.ZoneRideSummaries.WithLabelValues("error").Inc()
		c.logger.Error().Err(err).Str("zone_ride_id", summary.ID).Msg("Failed to save zone ride summary")
		return summary
	}
	metrics.ZoneRideSummaries.WithLabelValues("saved").Inc()
	c.logger.Info().Str("zone_ride_id", summary.ID).Str("session_id", sessionID).Msg("Zone ride summary saved")
	return summary
}

// summaryLocked builds the summary from the current ride state. Caller holds mu.
func (c *Controller) summaryLocked(sessionID string) *store.ZoneRide {
	t := c.target
	summary := &store.ZoneRide{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		Mode:           string(t.Mode),
		Zone:           t.Zone,
		LowerBound:     t.LowerBound,
		UpperBound:     t.UpperBound,
		StopReason:     string(StopUserStopped),
		CommandedPower: append([]int(nil), c.commanded...),
		CreatedAt:      c.now().UTC(),
	}
	if c.status != nil {
		summary.DurationSecs = c.status.ElapsedSecs
		summary.TimeInZoneSecs = c.status.TimeInZoneSecs
	}
	summary.TimeToZoneSecs = analysis.TimeToZone(c.values, float64(t.LowerBound), float64(t.UpperBound), c.sampleSecs)
	return summary
}
