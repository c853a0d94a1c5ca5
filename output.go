package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"ride-analytics/internal/analysis"
	"ride-analytics/internal/service"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// Colors
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	textColor      = lipgloss.Color("#F9FAFB") // Light gray
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 2)

	metricLabelStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Width(22)

	metricValueStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(textColor)

	trendUpStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	trendDownStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	trendFlatStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(primaryColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	successStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor)
)

// emit writes v as JSON or YAML, or calls text for the human format
func emit(w io.Writer, v any, text func(w io.Writer)) error {
	switch outputFormat {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		text(w)
		return nil
	}
}

func stdout() io.Writer { return os.Stdout }

// renderMetric renders a metric with label, value, and optional trend
func renderMetric(label, value, trend string) string {
	trendStyle := trendFlatStyle
	if len(trend) > 0 {
		switch trend[0] {
		case '+':
			trendStyle = trendUpStyle
		case '-':
			trendStyle = trendDownStyle
		}
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		metricLabelStyle.Render(label),
		metricValueStyle.Render(value),
		trendStyle.Render(" "+trend),
	)
}

// rampColor picks the terminal color for a ramp band
func rampColor(class analysis.RampClass) *color.Color {
	switch class {
	case analysis.RampRecovery:
		return color.New(color.FgCyan)
	case analysis.RampMaintenance:
		return color.New(color.FgGreen)
	case analysis.RampModerate:
		return color.New(color.FgGreen, color.Bold)
	case analysis.RampAggressive:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func formatRamp(r *analysis.RampRate) string {
	if r == nil {
		return "-"
	}
	return rampColor(r.Classification).Sprintf("%+.1f/wk (%s)", r.Current, r.Classification)
}

func signed(v float64) string {
	return fmt.Sprintf("%+.1f", v)
}

func optInt(v *int, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d%s", *v, unit)
}

func optFloat(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

// formatSpeed converts km/h into the configured unit
func formatSpeed(kmh *float64) string {
	if kmh == nil {
		return "-"
	}
	if cfg.Athlete.Units == "imperial" {
		return fmt.Sprintf("%.1f mph", *kmh/service.KmPerMile)
	}
	return fmt.Sprintf("%.1f km/h", *kmh)
}

// formatDuration renders seconds as h:mm:ss or m:ss
func formatDuration(secs int) string {
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, secs%3600/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// renderTable lays out rows under a styled header with padded columns
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	pad := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = c + strings.Repeat(" ", widths[i]-lipgloss.Width(c))
		}
		return strings.Join(parts, "  ")
	}

	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render(pad(headers)))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(pad(row))
		b.WriteString("\n")
	}
	return b.String()
}
