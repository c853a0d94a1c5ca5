package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ride-analytics/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	Long:  `Write the default configuration to the config path unless a file already exists there.`,
	// init and validate must work without a loadable config
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runInit,
}

var validateCmd = &cobra.Command{
	Use:               "validate",
	Short:             "Validate the configuration file",
	Long:              `Validate the configuration file for syntax and semantic errors.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runValidate,
}

func init() {
	rootCmd.AddCommand(initCmd, validateCmd)
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}

	written, err := config.CreateExample(path)
	if err != nil {
		return fmt.Errorf("creating config: %w", err)
	}
	if !written {
		color.New(color.FgYellow).Fprintf(os.Stdout, "Config already exists: %s\n", path)
		return nil
	}
	color.New(color.FgGreen).Fprintf(os.Stdout, "Wrote example config: %s\n", path)
	fmt.Fprintln(os.Stdout, "Set athlete.ftp and your zones before importing rides.")
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}

	loaded, err := config.Load(path)
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		return err
	}

	color.New(color.FgGreen).Fprintf(os.Stdout, "Configuration is valid: %s\n", path)
	fmt.Fprintf(os.Stdout, "  FTP %d W, power zones %v, hr zones %v\n",
		loaded.Athlete.FTP, loaded.Athlete.PowerZones, loaded.Athlete.HRZones)
	if loaded.Athlete.MaxHR == 0 {
		color.New(color.FgYellow).Fprintln(os.Stdout, "  athlete.max_hr is unset; heart-rate zone rides use 220 as the ceiling")
	}
	return nil
}
