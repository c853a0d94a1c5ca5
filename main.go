package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ride-analytics/internal/config"
	"ride-analytics/internal/store"
)

var (
	version = "dev"

	configPath   string
	outputFormat string
	logLevel     string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ride",
	Short: "Training-load and live zone analytics for indoor cycling",
	Long: `ride computes fitness, fatigue and form from recorded sessions, imports
FIT activity files, and runs live sessions with automatic start/stop and
target-zone rides.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case formatText, formatJSON, formatYAML:
		default:
			return fmt.Errorf("unknown output format %q (text, json, yaml)", outputFormat)
		}

		loaded, err := config.Load(configPath)
		if errors.Is(err, config.ErrNoConfig) {
			def := config.DefaultConfig()
			loaded = &def
		} else if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		cfg = loaded

		logger = setupLogger(cfg.Logging)
		log.Logger = logger
		if errors.Is(err, config.ErrNoConfig) {
			logger.Debug().Msg("No config file found, using defaults. Run 'ride init' to create one.")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default ~/.ride-analytics/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatText, "Output format: text, json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// setupLogger configures the logger based on configuration. Logs go to stderr
// so command output stays parseable.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// openStore opens the configured database
func openStore() (*store.DB, error) {
	if cfg.Storage.Path != "" {
		return store.OpenPath(cfg.Storage.Path)
	}
	return store.Open()
}
