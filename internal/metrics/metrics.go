package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Auto-session metrics
	AutoSessionTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ride_auto_session_triggers_total",
			Help: "Auto-session start/stop decisions dispatched",
		},
		[]string{"action"},
	)

	AutoSessionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ride_auto_session_failures_total",
			Help: "Auto-session start/stop calls that returned an error",
		},
		[]string{"action"},
	)

	SessionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ride_session_active",
			Help: "1 while a recording session is active",
		},
	)

	// Zone control metrics
	ZoneStatusPolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ride_zone_status_polls_total",
			Help: "Zone-control status polls issued",
		},
	)

	ZoneStatusPollErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ride_zone_status_poll_errors_total",
			Help: "Zone-control status polls that failed",
		},
	)

	ZoneStatusPollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ride_zone_status_poll_duration_seconds",
			Help:    "Zone-control status poll duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	ZoneRideSummaries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ride_zone_ride_summaries_total",
			Help: "Zone-ride summaries persisted on session stop",
		},
		[]string{"result"},
	)

	// Analytics metrics
	AnalyticsRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ride_analytics_runs_total",
			Help: "Analytics computations by kind",
		},
		[]string{"kind"},
	)

	SessionsImported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ride_sessions_imported_total",
			Help: "Sessions imported from FIT files",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		AutoSessionTriggers,
		AutoSessionFailures,
		SessionActive,
		ZoneStatusPolls,
		ZoneStatusPollErrors,
		ZoneStatusPollDuration,
		ZoneRideSummaries,
		AnalyticsRuns,
		SessionsImported,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler serves /metrics and /health
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start starts the metrics server
func (s *Server) Start() {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
}

// Stop gracefully shuts down the metrics server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Shutdown(ctx)
}
