package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"ride-analytics/internal/analysis"
	"ride-analytics/internal/service"
)

var (
	pmcDays  int
	pmcChart bool
)

var pmcCmd = &cobra.Command{
	Use:   "pmc",
	Short: "Show the performance management chart (CTL, ATL, TSB per day)",
	RunE:  runPMC,
}

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Show training load per ISO week",
	RunE:  runWeekly,
}

var ftpCmd = &cobra.Command{
	Use:   "ftp",
	Short: "Show FTP change points",
	RunE:  runFTP,
}

var rampCmd = &cobra.Command{
	Use:   "ramp",
	Short: "Show the 7-day fitness ramp rate",
	RunE:  runRamp,
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show current fitness, form, ramp rate and recent sessions",
	RunE:  runOverview,
}

func init() {
	pmcCmd.Flags().IntVar(&pmcDays, "days", 42, "Number of most recent days to show (0 for all)")
	pmcCmd.Flags().BoolVar(&pmcChart, "chart", false, "Plot CTL, ATL and TSB instead of the daily table")
	rootCmd.AddCommand(pmcCmd, weeklyCmd, ftpCmd, rampCmd, overviewCmd)
}

// withTraining opens the store for the duration of fn
func withTraining(fn func(svc *service.TrainingService) error) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return fn(service.NewTrainingService(db, logger))
}

func runPMC(cmd *cobra.Command, args []string) error {
	return withTraining(func(svc *service.TrainingService) error {
		days, err := svc.FitnessTrend(cmd.Context())
		if err != nil {
			return err
		}
		if pmcDays > 0 && len(days) > pmcDays {
			days = days[len(days)-pmcDays:]
		}

		return emit(stdout(), days, func(w io.Writer) {
			if len(days) == 0 {
				fmt.Fprintln(w, mutedStyle.Render("No sessions yet. Import some with 'ride import'."))
				return
			}
			fmt.Fprintln(w, titleStyle.Render("Performance Management Chart"))
			if pmcChart {
				fmt.Fprintln(w, cardStyle.Render(plotPMC(days)))
				return
			}
			rows := make([][]string, len(days))
			for i, d := range days {
				rows[i] = []string{d.Date, fmt.Sprintf("%.0f", d.TSS), fmt.Sprintf("%.1f", d.CTL), fmt.Sprintf("%.1f", d.ATL), signed(d.TSB)}
			}
			fmt.Fprint(w, renderTable([]string{"Date", "TSS", "CTL", "ATL", "TSB"}, rows))
		})
	})
}

// plotPMC draws fitness, fatigue and form as one chart
func plotPMC(days []analysis.PMCDay) string {
	ctl := make([]float64, len(days))
	atl := make([]float64, len(days))
	tsb := make([]float64, len(days))
	for i, d := range days {
		ctl[i], atl[i], tsb[i] = d.CTL, d.ATL, d.TSB
	}

	return asciigraph.PlotMany([][]float64{ctl, atl, tsb},
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red, asciigraph.Green),
		asciigraph.Caption(fmt.Sprintf("CTL (blue)  ATL (red)  TSB (green)  %s to %s", days[0].Date, days[len(days)-1].Date)),
	)
}

func runWeekly(cmd *cobra.Command, args []string) error {
	return withTraining(func(svc *service.TrainingService) error {
		weeks, err := svc.WeeklyTrend(cmd.Context())
		if err != nil {
			return err
		}

		return emit(stdout(), weeks, func(w io.Writer) {
			if len(weeks) == 0 {
				fmt.Fprintln(w, mutedStyle.Render("No sessions yet."))
				return
			}
			rows := make([][]string, len(weeks))
			for i, wk := range weeks {
				rows[i] = []string{
					wk.WeekStart,
					fmt.Sprintf("%d", wk.SessionCount),
					formatDuration(wk.DurationSecs),
					fmt.Sprintf("%.0f", wk.TotalTSS),
					optFloat(wk.AvgPower, "%.0f W"),
					optFloat(wk.AvgHR, "%.0f bpm"),
				}
			}
			fmt.Fprintln(w, titleStyle.Render("Weekly Training Load"))
			fmt.Fprint(w, renderTable([]string{"Week of", "Rides", "Time", "TSS", "Avg Power", "Avg HR"}, rows))
		})
	})
}

func runFTP(cmd *cobra.Command, args []string) error {
	return withTraining(func(svc *service.TrainingService) error {
		points, err := svc.FTPProgression(cmd.Context())
		if err != nil {
			return err
		}

		return emit(stdout(), points, func(w io.Writer) {
			if len(points) == 0 {
				fmt.Fprintln(w, mutedStyle.Render("No sessions with an FTP recorded."))
				return
			}
			rows := make([][]string, len(points))
			for i, p := range points {
				change := ""
				if i > 0 {
					change = fmt.Sprintf("%+d", p.FTP-points[i-1].FTP)
				}
				rows[i] = []string{p.Date, fmt.Sprintf("%d W", p.FTP), change}
			}
			fmt.Fprintln(w, titleStyle.Render("FTP Progression"))
			fmt.Fprint(w, renderTable([]string{"Date", "FTP", "Change"}, rows))
		})
	})
}

func runRamp(cmd *cobra.Command, args []string) error {
	return withTraining(func(svc *service.TrainingService) error {
		ramp, err := svc.RampRate(cmd.Context())
		if err != nil {
			return err
		}

		return emit(stdout(), ramp, func(w io.Writer) {
			if ramp == nil {
				fmt.Fprintf(w, "Not enough history: ramp rate needs %d days.\n", analysis.RampWindowDays+1)
				return
			}
			fmt.Fprintln(w, renderMetric("Ramp rate", formatRamp(ramp), ""))
		})
	})
}

func runOverview(cmd *cobra.Command, args []string) error {
	return withTraining(func(svc *service.TrainingService) error {
		data, err := svc.Overview(cmd.Context())
		if err != nil {
			return err
		}

		return emit(stdout(), data, func(w io.Writer) {
			fmt.Fprintln(w, titleStyle.Render("Training Overview"))
			if data.SessionCount == 0 {
				fmt.Fprintln(w, mutedStyle.Render("No sessions yet. Import some with 'ride import'."))
				return
			}

			lines := []string{
				renderMetric("Fitness (CTL)", fmt.Sprintf("%.1f", data.Fitness), ""),
				renderMetric("Fatigue (ATL)", fmt.Sprintf("%.1f", data.Fatigue), ""),
				renderMetric("Form (TSB)", signed(data.Form), data.FormDescription),
				renderMetric("Ramp rate", formatRamp(data.Ramp), ""),
				renderMetric("Current FTP", optInt(data.CurrentFTP, " W"), ""),
				renderMetric("Sessions", fmt.Sprintf("%d", data.SessionCount), ""),
			}
			fmt.Fprintln(w, cardStyle.Render(strings.Join(lines, "\n")))

			if len(data.RecentWeeks) > 0 {
				rows := make([][]string, len(data.RecentWeeks))
				for i, wk := range data.RecentWeeks {
					rows[i] = []string{wk.WeekStart, fmt.Sprintf("%d", wk.SessionCount), fmt.Sprintf("%.0f", wk.TotalTSS)}
				}
				fmt.Fprintln(w)
				fmt.Fprint(w, renderTable([]string{"Week of", "Rides", "TSS"}, rows))
			}

			if len(data.RecentSessions) > 0 {
				rows := make([][]string, len(data.RecentSessions))
				for i, s := range data.RecentSessions {
					rows[i] = []string{
						s.StartTime.Local().Format("Mon Jan 2 15:04"),
						formatDuration(s.DurationSecs),
						optInt(s.NormalizedPower, " W"),
						optFloat(s.TSS, "%.0f"),
						s.Title,
					}
				}
				fmt.Fprintln(w)
				fmt.Fprint(w, renderTable([]string{"Start", "Time", "NP", "TSS", "Title"}, rows))
			}
		})
	})
}
