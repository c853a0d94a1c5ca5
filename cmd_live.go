package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ride-analytics/internal/live"
	"ride-analytics/internal/metrics"
	"ride-analytics/internal/service"
	"ride-analytics/internal/zonecontrol"
)

var (
	liveSimulate    string
	liveMetricsAddr string
	liveStatusEvery time.Duration
	liveNoAuto      bool
	liveZoneMode    string
	liveZone        int
	liveLower       int
	liveUpper       int
	liveDuration    int
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run a live session from sensor readings on stdin or a simulator",
	Long: `live reads sensor readings as JSON lines on stdin, for example

  {"kind":"power","value":212,"device_id":"kickr","epoch_ms":1741935600000}

and runs the live pipeline over them: sessions start and stop automatically
from cadence and speed, and an optional target-zone ride holds power or heart
rate in a band. Use --simulate to generate readings instead.`,
	RunE: runLive,
}

func init() {
	liveCmd.Flags().StringVar(&liveSimulate, "simulate", "", "Generate readings from a profile: steady, intervals, ramp or stochastic")
	liveCmd.Flags().StringVar(&liveMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	liveCmd.Flags().DurationVar(&liveStatusEvery, "status-every", 5*time.Second, "How often to print a status line (0 disables)")
	liveCmd.Flags().BoolVar(&liveNoAuto, "no-auto", false, "Disable auto start/stop and record from launch to exit")
	liveCmd.Flags().StringVar(&liveZoneMode, "zone-mode", "power", "Zone ride mode: power or hr")
	liveCmd.Flags().IntVar(&liveZone, "zone", 0, "Start a zone ride in this zone")
	liveCmd.Flags().IntVar(&liveLower, "lower", 0, "Custom zone ride lower bound")
	liveCmd.Flags().IntVar(&liveUpper, "upper", 0, "Custom zone ride upper bound")
	liveCmd.Flags().IntVar(&liveDuration, "duration", 0, "Zone ride duration in seconds (0 for open-ended)")
	rootCmd.AddCommand(liveCmd)
}

// latestFunc adapts a function to the metrics source interfaces
type latestFunc func() *live.LiveMetrics

func (f latestFunc) Latest() *live.LiveMetrics { return f() }

func runLive(cmd *cobra.Command, args []string) error {
	var profile live.Profile
	if liveSimulate != "" {
		p, err := live.ParseProfile(liveSimulate)
		if err != nil {
			return err
		}
		profile = p
	}

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if liveNoAuto {
		cfg.AutoSession.Enabled = false
	}

	var core *service.Core
	engine := zonecontrol.NewEngine(
		zonecontrol.EngineConfig{FTP: cfg.Athlete.FTP, MaxHR: cfg.Athlete.MaxHR},
		latestFunc(func() *live.LiveMetrics { return core.Latest() }),
		func(watts int) { logger.Debug().Int("watts", watts).Msg("Trainer target") },
		logger,
	)
	core = service.NewCore(cfg, db, engine, logger)

	var metricsServer *metrics.Server
	if liveMetricsAddr != "" {
		metricsServer = metrics.NewServer(liveMetricsAddr, logger)
		metricsServer.Start()
	}

	core.Start(ctx)
	defer core.Close()

	if liveNoAuto || liveZone != 0 || liveLower != 0 || liveUpper != 0 {
		if err := core.Session().StartSession(ctx); err != nil {
			return err
		}
	}
	if liveZone != 0 || liveLower != 0 || liveUpper != 0 {
		if err := startLiveZoneRide(ctx, core); err != nil {
			return err
		}
	}

	inputDone := make(chan error, 1)
	if profile != "" {
		sim := live.NewSimulator(func(r live.SensorReading) { ingest(core, r) }, logger)
		sim.Start(ctx, profile)
		defer sim.Stop()
	} else {
		go func() { inputDone <- readReadings(ctx, os.Stdin, core) }()
	}

	var ticker <-chan time.Time
	if liveStatusEvery > 0 {
		t := time.NewTicker(liveStatusEvery)
		defer t.Stop()
		ticker = t.C
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-inputDone:
			if err != nil {
				logger.Error().Err(err).Msg("Reading sensor input failed")
			}
			break loop
		case <-ticker:
			printLiveStatus(core)
		}
	}

	// Shutdown uses a fresh context so the final save still runs after Ctrl-C
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if core.Session().IsActive() {
		if err := core.Session().StopSession(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to save session")
		}
	}
	core.Close()

	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}

	if s := core.Session().LastSession(); s != nil {
		return emit(stdout(), s, func(w io.Writer) {
			fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Saved session %s", s.ID)))
			fmt.Fprintln(w, renderMetric("Duration", formatDuration(s.DurationSecs), ""))
			fmt.Fprintln(w, renderMetric("Normalized power", optInt(s.NormalizedPower, " W"), ""))
			fmt.Fprintln(w, renderMetric("TSS", optFloat(s.TSS, "%.0f"), ""))
		})
	}
	return nil
}

func startLiveZoneRide(ctx context.Context, core *service.Core) error {
	mode, err := zonecontrol.ParseMode(liveZoneMode)
	if err != nil {
		return err
	}
	var duration *int
	if liveDuration > 0 {
		duration = &liveDuration
	}

	target, err := core.StartZoneRide(ctx, mode, liveZone, liveLower, liveUpper, duration)
	if err != nil {
		return fmt.Errorf("starting zone ride: %w", err)
	}
	logger.Info().
		Str("mode", string(target.Mode)).
		Int("lower", target.LowerBound).
		Int("upper", target.UpperBound).
		Msg("Zone ride running")
	return nil
}

func ingest(core *service.Core, r live.SensorReading) {
	if err := core.Ingest(r); err != nil {
		logger.Warn().Err(err).Msg("Dropped sensor reading")
	}
}

// readReadings decodes one JSON reading per line until EOF or cancellation
func readReadings(ctx context.Context, r io.Reader, core *service.Core) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var reading live.SensorReading
		if err := json.Unmarshal([]byte(line), &reading); err != nil {
			logger.Warn().Err(err).Str("line", line).Msg("Skipping malformed reading")
			continue
		}
		if reading.EpochMs == 0 {
			reading.EpochMs = time.Now().UnixMilli()
		}
		ingest(core, reading)
	}
	return scanner.Err()
}

func printLiveStatus(core *service.Core) {
	var parts []string

	m := core.Latest()
	if m == nil {
		parts = append(parts, mutedStyle.Render("waiting for sensors"))
	} else {
		parts = append(parts,
			fmt.Sprintf("power %s", liveValue(m.CurrentPower, m.StalePower, "%.0f W")),
			fmt.Sprintf("3s %s", optFloat(m.AvgPower3s, "%.0f W")),
			fmt.Sprintf("hr %s", liveValue(m.CurrentHR, m.StaleHR, "%.0f bpm")),
			fmt.Sprintf("cad %s", liveValue(m.CurrentCadence, m.StaleCadence, "%.0f rpm")),
			fmt.Sprintf("speed %s", formatSpeed(m.CurrentSpeed)),
		)
		if m.PowerZone != nil {
			parts = append(parts, fmt.Sprintf("Z%d", *m.PowerZone))
		}
	}

	if core.Session().IsActive() {
		parts = append(parts, successStyle.Render("recording"))
	} else if n := core.AutoSession().Countdown(); n != nil {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("starting in %d", *n)))
	}

	if st := core.ZoneRides().Status(); st != nil && st.Active {
		zone := fmt.Sprintf("zone [%d-%d] %s in %s", st.LowerBound, st.UpperBound, st.Phase, formatDuration(st.TimeInZoneSecs))
		if st.Paused {
			zone += " paused"
		}
		parts = append(parts, zone)
		if st.SafetyNote != "" {
			parts = append(parts, errorStyle.Render(st.SafetyNote))
		}
	}

	fmt.Fprintln(os.Stderr, strings.Join(parts, "  "))
}

func liveValue(v *float64, stale bool, format string) string {
	s := optFloat(v, format)
	if stale {
		return mutedStyle.Render(s + "?")
	}
	return s
}
