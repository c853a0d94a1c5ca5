package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ride-analytics/internal/store"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE:  runSessions,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one session and its zone rides",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and its zone rides",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Number of most recent sessions to list (0 for all)")
	sessionsCmd.AddCommand(sessionShowCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	sessions, err := db.ListSessions(ctx)
	if err != nil {
		return err
	}
	lastImport, err := db.GetSyncState(ctx, store.StateLastImport)
	if err != nil {
		return err
	}

	// ListSessions is oldest first; show the newest
	if sessionsLimit > 0 && len(sessions) > sessionsLimit {
		sessions = sessions[len(sessions)-sessionsLimit:]
	}

	return emit(stdout(), sessions, func(w io.Writer) {
		if len(sessions) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("No sessions yet."))
			return
		}
		rows := make([][]string, len(sessions))
		for i, s := range sessions {
			rows[i] = []string{
				s.ID,
				s.StartTime.Local().Format("2006-01-02 15:04"),
				formatDuration(s.DurationSecs),
				optInt(s.AvgPower, " W"),
				optInt(s.NormalizedPower, " W"),
				optFloat(s.TSS, "%.0f"),
				s.Title,
			}
		}
		fmt.Fprintln(w, titleStyle.Render("Sessions"))
		fmt.Fprint(w, renderTable([]string{"ID", "Start", "Time", "Avg", "NP", "TSS", "Title"}, rows))
		if lastImport != "" {
			fmt.Fprintln(w, mutedStyle.Render("Last import: "+lastImport))
		}
	})
}

// sessionDetail is the show command output
type sessionDetail struct {
	Session   *store.Session   `json:"session" yaml:"session"`
	ZoneRides []store.ZoneRide `json:"zone_rides" yaml:"zone_rides"`
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	s, err := db.GetSession(ctx, args[0])
	if err != nil {
		return err
	}
	rides, err := db.ListZoneRides(ctx, s.ID)
	if err != nil {
		return err
	}

	return emit(stdout(), sessionDetail{Session: s, ZoneRides: rides}, func(w io.Writer) {
		fmt.Fprintln(w, titleStyle.Render(s.Title))
		fmt.Fprintln(w, renderMetric("Start", s.StartTime.Local().Format("Mon Jan 2 2006 15:04"), ""))
		fmt.Fprintln(w, renderMetric("Duration", formatDuration(s.DurationSecs), ""))
		fmt.Fprintln(w, renderMetric("FTP", optInt(s.FTP, " W"), ""))
		fmt.Fprintln(w, renderMetric("Avg / Max power", optInt(s.AvgPower, " W")+" / "+optInt(s.MaxPower, " W"), ""))
		fmt.Fprintln(w, renderMetric("Normalized power", optInt(s.NormalizedPower, " W"), ""))
		fmt.Fprintln(w, renderMetric("TSS / IF", optFloat(s.TSS, "%.0f")+" / "+optFloat(s.IntensityFactor, "%.2f"), ""))
		fmt.Fprintln(w, renderMetric("Avg / Max HR", optInt(s.AvgHR, " bpm")+" / "+optInt(s.MaxHR, " bpm"), ""))

		if len(rides) == 0 {
			return
		}
		rows := make([][]string, len(rides))
		for i, z := range rides {
			zone := fmt.Sprintf("%d", z.Zone)
			if z.Zone == 0 {
				zone = "custom"
			}
			ttz := "-"
			if z.TimeToZoneSecs != nil {
				ttz = formatDuration(int(*z.TimeToZoneSecs))
			}
			rows[i] = []string{
				z.Mode,
				zone,
				fmt.Sprintf("%d-%d", z.LowerBound, z.UpperBound),
				formatDuration(z.DurationSecs),
				formatDuration(z.TimeInZoneSecs),
				ttz,
				z.StopReason,
			}
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Zone rides"))
		fmt.Fprint(w, renderTable([]string{"Mode", "Zone", "Range", "Time", "In zone", "To zone", "Stop"}, rows))
	})
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.DeleteSession(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, successStyle.Render("Deleted session "+args[0]))
	return nil
}
