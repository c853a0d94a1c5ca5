package service

import (
	"context"
	"errors"
	"fmt"
	"math"
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

var (
	ErrSessionActive   = errors.New("a session is already recording")
	ErrNoActiveSession = errors.New("no session is recording")
)

// SessionRecorder persists finished sessions
type SessionRecorder interface {
	UpsertSession(ctx context.Context, s *store.Session) error
}

// ZoneFinisher ends a zone ride that is still running when the session stops
type ZoneFinisher interface {
	Finish(ctx context.Context, sessionID string) *store.ZoneRide
}

// SessionService records live sessions: it samples the live metrics once per
// second while a session is active and stores the summary on stop.
type SessionService struct {
	recorder SessionRecorder
	zones    ZoneFinisher
	source   LatestSource
	ftp      int
	now      func() time.Time
	logger   zerolog.Logger
	task     *schedule.Task

	mu      sync.Mutex
	current *recording
	last    *store.Session
}

type recording struct {
	id      string
	started time.Time
	samples []analysis.RideSample
}

// LatestSource supplies the cached live metrics
type LatestSource interface {
	Latest() *live.LiveMetrics
}

// NewSessionService creates an idle recorder. zones may be nil.
func NewSessionService(recorder SessionRecorder, zones ZoneFinisher, source LatestSource, ftp int, logger zerolog.Logger) *SessionService {
	s := &SessionService{
		recorder: recorder,
		zones:    zones,
		source:   source,
		ftp:      ftp,
		now:      time.Now,
		logger:   logger.With().Str("component", "session").Logger(),
	}
	s.task = schedule.NewTask(RecordIntervalSecs*time.Second, func(ctx context.Context) { s.Sample() })
	return s
}

// IsActive reports whether a session is recording
func (s *SessionService) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current != nil
}

// CurrentID returns the recording session's ID, empty when idle
func (s *SessionService) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ""
	}
	return s.current.id
}

// LastSession returns the most recently stored session, nil if none
func (s *SessionService) LastSession() *store.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

// StartSession begins recording
func (s *SessionService) StartSession(ctx context.Context) error {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.current = &recording{id: uuid.NewString(), started: s.now().UTC()}
	id := s.current.id
	s.mu.Unlock()

	// Sampling outlives the caller's context; StopSession and Close end it
	s.task.Start(context.WithoutCancel(ctx))
	metrics.SessionActive.Set(1)
	s.logger.Info().Str("session_id", id).Msg("Session started")
	return nil
}

// Sample appends the current live values to the recording. No-op when idle.
func (s *SessionService) Sample() {
	m := s.source.Latest()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	s.current.samples = append(s.current.samples, sampleFrom(m))
}

// sampleFrom keeps only fresh channels
func sampleFrom(m *live.LiveMetrics) analysis.RideSample {
	if m == nil {
		return analysis.RideSample{}
	}
	var out analysis.RideSample
	if !m.StalePower {
		out.Power = m.CurrentPower
	}
	if !m.StaleHR {
		out.HR = m.CurrentHR
	}
	if !m.StaleCadence {
		out.Cadence = m.CurrentCadence
	}
	if !m.StaleSpeed {
		out.Speed = m.CurrentSpeed
	}
	return out
}

// StopSession ends recording and stores the summary. A running zone ride is
// finished first; its failures never block the session save.
func (s *SessionService) StopSession(ctx context.Context) error {
	s.mu.Lock()
	rec := s.current
	s.mu.Unlock()
	if rec == nil {
		return ErrNoActiveSession
	}

	if s.zones != nil {
		s.zones.Finish(ctx, rec.id)
	}

	s.task.Stop()

	s.mu.Lock()
	if s.current != rec {
		s.mu.Unlock()
		return ErrNoActiveSession
	}
	s.current = nil
	samples := rec.samples
	s.mu.Unlock()
	metrics.SessionActive.Set(0)

	session := s.summarize(rec, samples)
	if err := s.recorder.UpsertSession(ctx, session); err != nil {
		return fmt.Errorf("saving session %s: %w", session.ID, err)
	}

	s.mu.Lock()
	s.last = session
	s.mu.Unlock()

	s.logger.Info().
		Str("session_id", session.ID).
		Int("duration_secs", session.DurationSecs).
		Int("samples", len(samples)).
		Msg("Session saved")
	return nil
}

// Close stops sampling without saving. Idempotent.
func (s *SessionService) Close() {
	s.task.Stop()
}

func (s *SessionService) summarize(rec *recording, samples []analysis.RideSample) *store.Session {
	computed := analysis.ComputeRideMetrics(samples, s.ftp, RecordIntervalSecs)

	duration := int(s.now().UTC().Sub(rec.started) / time.Second)
	if duration < 0 {
		duration = 0
	}

	session := &store.Session{
		ID:              rec.id,
		StartTime:       rec.started,
		DurationSecs:    duration,
		AvgPower:        roundPtr(computed.AvgPower),
		MaxPower:        roundPtr(computed.MaxPower),
		NormalizedPower: roundPtr(computed.NormalizedPower),
		TSS:             computed.TSS,
		IntensityFactor: computed.IntensityFactor,
		AvgHR:           roundPtr(computed.AvgHR),
		MaxHR:           roundPtr(computed.MaxHR),
		AvgCadence:      computed.AvgCadence,
		AvgSpeed:        computed.AvgSpeed,
		Title:           fmt.Sprintf("%s ride", rec.started.Format("Jan 2, 2006")),
	}
	if s.ftp > 0 {
		ftp := s.ftp
		session.FTP = &ftp
	}
	return session
}

func roundPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	r := int(math.Round(*v))
	return &r
}
