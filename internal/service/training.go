package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ride-analytics/internal/analysis"
	"ride-analytics/internal/metrics"
	"ride-analytics/internal/store"
)

// SessionSource supplies the full session history
type SessionSource interface {
	ListSessions(ctx context.Context) ([]store.Session, error)
}

// TrainingService runs the training-load analytics over a fresh snapshot on every call
type TrainingService struct {
	source SessionSource
	now    func() time.Time
	logger zerolog.Logger
}

// NewTrainingService creates a new training service
func NewTrainingService(source SessionSource, logger zerolog.Logger) *TrainingService {
	return &TrainingService{
		source: source,
		now:    time.Now,
		logger: logger.With().Str("component", "training").Logger(),
	}
}

// Overview contains everything the overview screen shows
type Overview struct {
	SessionCount    int                   `json:"session_count" yaml:"session_count"`
	Fitness         float64               `json:"ctl" yaml:"ctl"`
	Fatigue         float64               `json:"atl" yaml:"atl"`
	Form            float64               `json:"tsb" yaml:"tsb"`
	FormDescription string                `json:"form_description" yaml:"form_description"`
	Ramp            *analysis.RampRate    `json:"ramp_rate" yaml:"ramp_rate"`
	CurrentFTP      *int                  `json:"current_ftp" yaml:"current_ftp"`
	RecentWeeks     []analysis.WeekBucket `json:"recent_weeks" yaml:"recent_weeks"`
	RecentSessions  []store.Session       `json:"recent_sessions" yaml:"recent_sessions"`
}

func (s *TrainingService) snapshot(ctx context.Context) ([]store.Session, error) {
	sessions, err := s.source.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// FitnessTrend returns one PMC day per calendar day from the first session to today
func (s *TrainingService) FitnessTrend(ctx context.Context) ([]analysis.PMCDay, error) {
	sessions, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	metrics.AnalyticsRuns.WithLabelValues("pmc").Inc()
	return analysis.CalculatePMC(sessions, s.now()), nil
}

// WeeklyTrend returns one bucket per ISO week that has sessions
func (s *TrainingService) WeeklyTrend(ctx context.Context) ([]analysis.WeekBucket, error) {
	sessions, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	metrics.AnalyticsRuns.WithLabelValues("weekly").Inc()
	return analysis.WeeklyTrend(sessions), nil
}

// FTPProgression returns the FTP change points
func (s *TrainingService) FTPProgression(ctx context.Context) ([]analysis.FTPPoint, error) {
	sessions, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	metrics.AnalyticsRuns.WithLabelValues("ftp").Inc()
	return analysis.FTPProgression(sessions), nil
}

// RampRate returns the trailing 7-day CTL change, nil with under 8 days of history
func (s *TrainingService) RampRate(ctx context.Context) (*analysis.RampRate, error) {
	days, err := s.FitnessTrend(ctx)
	if err != nil {
		return nil, err
	}
	metrics.AnalyticsRuns.WithLabelValues("ramp").Inc()
	return analysis.CalculateRampRate(days), nil
}

// Overview computes every headline metric from a single snapshot
func (s *TrainingService) Overview(ctx context.Context) (*Overview, error) {
	sessions, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	metrics.AnalyticsRuns.WithLabelValues("overview").Inc()

	data := &Overview{SessionCount: len(sessions)}

	days := analysis.CalculatePMC(sessions, s.now())
	if len(days) > 0 {
		current := analysis.CurrentFitness(days)
		data.Fitness, data.Fatigue, data.Form = current.CTL, current.ATL, current.TSB
		data.FormDescription = analysis.FormDescription(current.TSB)
	}
	data.Ramp = analysis.CalculateRampRate(days)

	if points := analysis.FTPProgression(sessions); len(points) > 0 {
		ftp := points[len(points)-1].FTP
		data.CurrentFTP = &ftp
	}

	weeks := analysis.WeeklyTrend(sessions)
	if len(weeks) > OverviewWeeks {
		weeks = weeks[len(weeks)-OverviewWeeks:]
	}
	data.RecentWeeks = weeks

	// ListSessions is oldest first; show newest first
	for i := len(sessions) - 1; i >= 0 && len(data.RecentSessions) < RecentSessionsLimit; i-- {
		data.RecentSessions = append(data.RecentSessions, sessions[i])
	}

	s.logger.Debug().Int("sessions", len(sessions)).Int("days", len(days)).Msg("Overview computed")
	return data, nil
}
