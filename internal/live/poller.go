package live

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ride-analytics/internal/schedule"
)

// DefaultPollInterval refreshes the cached snapshot at 4 Hz
const DefaultPollInterval = 250 * time.Millisecond

// Source produces a metrics snapshot; nil means no data yet
type Source interface {
	Snapshot(now time.Time) *LiveMetrics
}

// Poller caches the latest snapshot from a Source so readers never take its lock
type Poller struct {
	source Source
	now    func() time.Time
	logger zerolog.Logger
	task   *schedule.Task
	latest atomic.Pointer[LiveMetrics]
}

// NewPoller creates a poller; interval <= 0 uses DefaultPollInterval
func NewPoller(source Source, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		source: source,
		now:    time.Now,
		logger: logger.With().Str("component", "live_poller").Logger(),
	}
	p.task = schedule.NewTask(interval, func(ctx context.Context) { p.Refresh() })
	return p
}

// Start begins polling. Idempotent.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Debug().Msg("Starting live metrics poll")
	p.Refresh()
	p.task.Start(ctx)
}

// Stop ends polling and keeps the last snapshot. Idempotent.
func (p *Poller) Stop() {
	p.task.Stop()
}

// Refresh takes a snapshot immediately
func (p *Poller) Refresh() {
	p.latest.Store(p.source.Snapshot(p.now()))
}

// Latest returns the most recent cached snapshot, nil before any data
func (p *Poller) Latest() *LiveMetrics {
	return p.latest.Load()
}
