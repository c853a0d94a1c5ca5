package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"ride-analytics/internal/autosession"
	"ride-analytics/internal/config"
	"ride-analytics/internal/live"
	"ride-analytics/internal/zonecontrol"
)

// LiveStore persists what a live ride produces
type LiveStore interface {
	SessionRecorder
	zonecontrol.SummarySink
}

// Core wires the live pipeline: readings feed the tracker, the poller caches
// snapshots, and the auto-session monitor, session recorder and zone-ride
// controller all read from that cache. Its three timers are owned here.
type Core struct {
	cfg     *config.Config
	tracker *live.Tracker
	poller  *live.Poller
	session *SessionService
	monitor *autosession.Monitor
	zones   *zonecontrol.Controller
	logger  zerolog.Logger

	closeOnce sync.Once
}

// NewCore builds the live pipeline. actuator drives zone rides.
func NewCore(cfg *config.Config, st LiveStore, actuator zonecontrol.Actuator, logger zerolog.Logger) *Core {
	autoInterval, zoneInterval, liveInterval := cfg.Polling.Intervals()

	tracker := live.NewTracker(live.Zones{
		FTP:        cfg.Athlete.FTP,
		PowerZones: cfg.Athlete.PowerZones,
		HRZones:    cfg.Athlete.HRZones,
	})
	poller := live.NewPoller(tracker, liveInterval, logger)
	zones := zonecontrol.NewController(actuator, st, poller, zoneInterval, logger)
	session := NewSessionService(st, zones, poller, cfg.Athlete.FTP, logger)
	monitor := autosession.NewMonitor(autosession.Config{
		Enabled:        cfg.AutoSession.Enabled,
		StartThreshold: cfg.AutoSession.StartThreshold,
		StopThreshold:  cfg.AutoSession.StopThreshold,
		Interval:       autoInterval,
	}, session, poller, logger)

	return &Core{
		cfg:     cfg,
		tracker: tracker,
		poller:  poller,
		session: session,
		monitor: monitor,
		zones:   zones,
		logger:  logger.With().Str("component", "core").Logger(),
	}
}

// Start begins the live-metrics poll and the auto-session tick
func (c *Core) Start(ctx context.Context) {
	c.poller.Start(ctx)
	c.monitor.Start(ctx)
	c.logger.Info().Msg("Live pipeline started")
}

// Close stops every timer and drops in-flight guards. Safe to call more than once.
func (c *Core) Close() {
	c.closeOnce.Do(func() {
		c.monitor.Stop()
		c.zones.Close()
		c.session.Close()
		c.poller.Stop()
		c.logger.Info().Msg("Live pipeline stopped")
	})
}

// Ingest feeds one sensor reading into the tracker
func (c *Core) Ingest(r live.SensorReading) error {
	return c.tracker.Ingest(r)
}

// Latest returns the most recent live snapshot
func (c *Core) Latest() *live.LiveMetrics {
	return c.poller.Latest()
}

// Session returns the session recorder
func (c *Core) Session() *SessionService {
	return c.session
}

// AutoSession returns the auto-session monitor
func (c *Core) AutoSession() *autosession.Monitor {
	return c.monitor
}

// ZoneRides returns the zone-ride controller
func (c *Core) ZoneRides() *zonecontrol.Controller {
	return c.zones
}

// StartZoneRide resolves a zone number to bounds and starts the ride. zone
// zonecontrol.CustomZone uses lower and upper as given.
func (c *Core) StartZoneRide(ctx context.Context, mode zonecontrol.Mode, zone, lower, upper int, durationSecs *int) (zonecontrol.Target, error) {
	target := zonecontrol.Target{Mode: mode, Zone: zone, LowerBound: lower, UpperBound: upper, DurationSecs: durationSecs}
	if zone != zonecontrol.CustomZone {
		lo, hi, err := zonecontrol.ResolveBounds(mode, zone, c.cfg.Athlete)
		if err != nil {
			return target, err
		}
		target.LowerBound, target.UpperBound = lo, hi
	}
	if err := c.zones.Start(ctx, target); err != nil {
		return target, err
	}
	return target, nil
}
