package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"ride-analytics/internal/analysis"
	"ride-analytics/internal/config"
	"ride-analytics/internal/fitimport"
	"ride-analytics/internal/service"
	"ride-analytics/internal/store"
	"ride-analytics/internal/zonecontrol"
)

var (
	analyzeMode  string
	analyzeZone  int
	analyzeLower int
	analyzeUpper int
)

var importCmd = &cobra.Command{
	Use:   "import <file-or-dir>...",
	Short: "Import FIT activity files as sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.fit>",
	Short: "Analyze one ride: power, heart rate, decoupling and time in zone",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var zoneBoundsCmd = &cobra.Command{
	Use:   "zone-bounds",
	Short: "List the numeric bounds of every configured power and heart-rate zone",
	RunE:  runZoneBounds,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "power", "Zone mode for time-in-zone: power or hr")
	analyzeCmd.Flags().IntVar(&analyzeZone, "zone", 0, "Zone number to measure time in (0 skips unless --lower/--upper are set)")
	analyzeCmd.Flags().IntVar(&analyzeLower, "lower", 0, "Custom zone lower bound")
	analyzeCmd.Flags().IntVar(&analyzeUpper, "upper", 0, "Custom zone upper bound")
	rootCmd.AddCommand(importCmd, analyzeCmd, zoneBoundsCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	files, err := service.CollectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println(mutedStyle.Render("No FIT files found."))
		return nil
	}

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	progress := make(chan service.ImportProgress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			if outputFormat == formatText && p.CurrentFile != "" {
				fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", p.Completed+1, p.Total, p.CurrentFile)
			}
		}
	}()

	svc := service.NewImportService(db, cfg.Athlete.FTP, logger)
	result, err := svc.ImportFiles(ctx, files, progress)
	<-done
	if err != nil {
		return fmt.Errorf("importing: %w", err)
	}

	total, err := db.CountSessions(ctx)
	if err != nil {
		return err
	}

	errs := make([]string, len(result.Errors))
	for i, e := range result.Errors {
		errs[i] = e.Error()
	}
	summary := struct {
		FilesFound     int      `json:"files_found" yaml:"files_found"`
		SessionsStored int      `json:"sessions_stored" yaml:"sessions_stored"`
		Skipped        int      `json:"skipped" yaml:"skipped"`
		TotalSessions  int      `json:"total_sessions" yaml:"total_sessions"`
		Errors         []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	}{result.FilesFound, result.SessionsStored, result.Skipped, total, errs}

	return emit(stdout(), summary, func(w io.Writer) {
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Imported %d of %d files", result.SessionsStored, result.FilesFound)))
		for _, e := range errs {
			fmt.Fprintln(w, warningStyle.Render("  "+e))
		}
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d sessions in the database", total)))
	})
}

// rideAnalysis is the analyze command output
type rideAnalysis struct {
	Session          store.Session              `json:"session" yaml:"session"`
	Sport            string                     `json:"sport" yaml:"sport"`
	EfficiencyFactor *float64                   `json:"efficiency_factor" yaml:"efficiency_factor"`
	Decoupling       *float64                   `json:"decoupling_pct" yaml:"decoupling_pct"`
	DataQuality      float64                    `json:"data_quality" yaml:"data_quality"`
	Zone             *zonecontrol.Target        `json:"zone,omitempty" yaml:"zone,omitempty"`
	TimeInZone       *analysis.TimeInZoneResult `json:"time_in_zone,omitempty" yaml:"time_in_zone,omitempty"`
	InZonePct        *float64                   `json:"in_zone_pct,omitempty" yaml:"in_zone_pct,omitempty"`
	TimeToZone       *float64                   `json:"time_to_zone_secs,omitempty" yaml:"time_to_zone_secs,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ride, err := fitimport.ParseFile(args[0], fitimport.Options{FTP: cfg.Athlete.FTP})
	if err != nil {
		return err
	}

	out := rideAnalysis{
		Session:          ride.Session,
		Sport:            ride.Sport,
		EfficiencyFactor: ride.Metrics.EfficiencyFactor,
		Decoupling:       analysis.Decoupling(ride.PowerHR()),
		DataQuality:      ride.Metrics.DataQualityScore,
	}

	target, err := analyzeTarget()
	if err != nil {
		return err
	}
	if target != nil {
		series := ride.PowerSeries()
		if target.Mode == zonecontrol.ModeHeartRate {
			series = ride.HRSeries()
		}
		lo, hi := float64(target.LowerBound), float64(target.UpperBound)
		tiz := analysis.TimeInZone(series, lo, hi, fitimport.IntervalSecs)
		pct := tiz.InZonePct()
		out.Zone = target
		out.TimeInZone = &tiz
		out.InZonePct = &pct
		out.TimeToZone = analysis.TimeToZone(series, lo, hi, fitimport.IntervalSecs)
	}

	return emit(stdout(), out, func(w io.Writer) {
		s := out.Session
		fmt.Fprintln(w, titleStyle.Render(s.Title))
		lines := []string{
			renderMetric("Duration", formatDuration(s.DurationSecs), ""),
			renderMetric("Avg / Max power", optInt(s.AvgPower, " W")+" / "+optInt(s.MaxPower, " W"), ""),
			renderMetric("Normalized power", optInt(s.NormalizedPower, " W"), ""),
			renderMetric("Intensity factor", optFloat(s.IntensityFactor, "%.2f"), ""),
			renderMetric("TSS", optFloat(s.TSS, "%.0f"), ""),
			renderMetric("Avg / Max HR", optInt(s.AvgHR, " bpm")+" / "+optInt(s.MaxHR, " bpm"), ""),
			renderMetric("Avg cadence", optFloat(s.AvgCadence, "%.0f rpm"), ""),
			renderMetric("Avg speed", formatSpeed(s.AvgSpeed), ""),
			renderMetric("Efficiency factor", optFloat(out.EfficiencyFactor, "%.2f"), ""),
		}
		if out.Decoupling != nil {
			lines = append(lines, renderMetric("Decoupling", fmt.Sprintf("%.1f%%", *out.Decoupling), analysis.DecouplingAssessment(*out.Decoupling)))
		} else {
			lines = append(lines, renderMetric("Decoupling", "-", "needs 20 paired samples"))
		}
		lines = append(lines, renderMetric("Data quality", fmt.Sprintf("%.0f%%", out.DataQuality*100), analysis.DataQualityDescription(out.DataQuality)))
		fmt.Fprintln(w, cardStyle.Render(strings.Join(lines, "\n")))

		if out.TimeInZone != nil {
			z := out.Zone
			fmt.Fprintln(w)
			fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Zone %s [%d, %d]", zoneLabel(z), z.LowerBound, z.UpperBound)))
			fmt.Fprintln(w, renderMetric("Below", formatDuration(int(out.TimeInZone.BelowSecs)), ""))
			fmt.Fprintln(w, renderMetric("In zone", formatDuration(int(out.TimeInZone.InZoneSecs)), fmt.Sprintf("%.0f%%", *out.InZonePct)))
			fmt.Fprintln(w, renderMetric("Above", formatDuration(int(out.TimeInZone.AboveSecs)), ""))
			ttz := "never reached"
			if out.TimeToZone != nil {
				ttz = formatDuration(int(*out.TimeToZone))
			}
			fmt.Fprintln(w, renderMetric("Time to zone", ttz, ""))
		}
	})
}

// analyzeTarget builds the zone from flags; nil when no zone was asked for
func analyzeTarget() (*zonecontrol.Target, error) {
	if analyzeZone == 0 && analyzeLower == 0 && analyzeUpper == 0 {
		return nil, nil
	}
	mode, err := zonecontrol.ParseMode(analyzeMode)
	if err != nil {
		return nil, err
	}

	target := zonecontrol.Target{Mode: mode, Zone: analyzeZone, LowerBound: analyzeLower, UpperBound: analyzeUpper}
	if analyzeZone != zonecontrol.CustomZone {
		lo, hi, err := zonecontrol.ResolveBounds(mode, analyzeZone, cfg.Athlete)
		if err != nil {
			return nil, err
		}
		target.LowerBound, target.UpperBound = lo, hi
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return &target, nil
}

func zoneLabel(t *zonecontrol.Target) string {
	if t.Zone == zonecontrol.CustomZone {
		return "custom"
	}
	return fmt.Sprintf("%d", t.Zone)
}

// zoneBound is one resolved zone
type zoneBound struct {
	Mode  zonecontrol.Mode `json:"mode" yaml:"mode"`
	Zone  int              `json:"zone" yaml:"zone"`
	Lower int              `json:"lower" yaml:"lower"`
	Upper int              `json:"upper" yaml:"upper"`
}

func resolveAllBounds(athlete config.AthleteConfig) ([]zoneBound, error) {
	var out []zoneBound
	for _, m := range []struct {
		mode  zonecontrol.Mode
		zones int
	}{
		{zonecontrol.ModePower, config.PowerZoneCount + 1},
		{zonecontrol.ModeHeartRate, config.HRZoneCount},
	} {
		for zone := 1; zone <= m.zones; zone++ {
			lo, hi, err := zonecontrol.ResolveBounds(m.mode, zone, athlete)
			if err != nil {
				return nil, err
			}
			out = append(out, zoneBound{Mode: m.mode, Zone: zone, Lower: lo, Upper: hi})
		}
	}
	return out, nil
}

func runZoneBounds(cmd *cobra.Command, args []string) error {
	bounds, err := resolveAllBounds(cfg.Athlete)
	if err != nil {
		return err
	}

	return emit(stdout(), bounds, func(w io.Writer) {
		rows := make([][]string, len(bounds))
		for i, b := range bounds {
			unit := "W"
			if b.Mode == zonecontrol.ModeHeartRate {
				unit = "bpm"
			}
			rows[i] = []string{string(b.Mode), fmt.Sprintf("%d", b.Zone), fmt.Sprintf("%d-%d %s", b.Lower, b.Upper, unit)}
		}
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Zones (FTP %d W)", cfg.Athlete.FTP)))
		fmt.Fprint(w, renderTable([]string{"Mode", "Zone", "Range"}, rows))
	})
}
