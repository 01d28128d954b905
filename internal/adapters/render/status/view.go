package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/seedpool/internal/application"
	"github.com/bnema/seedpool/internal/domain"
)

const barWidth = 24

type RenderOptions struct {
	Now time.Time
	// StaleAfter flags the last refresh when it is older; zero disables the flag.
	StaleAfter time.Duration
	// Source names where the stats came from, such as the server URL.
	Source string
}

func renderView(stats application.Stats, opts RenderOptions, s styles) string {
	lines := []string{s.title.Render("Entropy Pool")}
	if opts.Source != "" {
		lines = append(lines, s.header.Render("server: "+opts.Source))
	}

	lines = append(lines,
		s.section.Render(poolLine(stats, s)),
		refreshLine(stats, s),
		lastRefreshLine(stats.LastRefresh, opts, s),
		sourcesLine(stats, s),
	)

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func poolLine(stats application.Stats, s styles) string {
	percent := clampPercent(stats.PoolUtilization * 100)
	percentStyle := lipgloss.NewStyle().Foreground(interpolateColor(percent, 0, 100))

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.label.Render("pool:"),
		" ",
		renderProgressBar(percent, barWidth, s),
		" ",
		percentStyle.Render(fmt.Sprintf("%3.0f%% full", percent)),
		" ",
		s.meta.Render(fmt.Sprintf("(%s / %s)", formatBytes(stats.PoolSize), formatBytes(stats.PoolCapacity))),
	)

	if percent < 50 {
		line += " " + s.warning.Render("[low]")
	}

	return line
}

func refreshLine(stats application.Stats, s styles) string {
	var state string
	switch {
	case stats.RefreshInProgress || stats.RefreshState == domain.RefreshRunning:
		state = s.stateBusy.Render("running")
	case stats.RefreshState == domain.RefreshCoolingDown:
		state = s.stateBusy.Render("cooling down")
	default:
		state = s.stateIdle.Render("idle")
	}

	line := s.label.Render("refresh: ") + state
	if stats.ConsecutiveFailures > 0 {
		suffix := "failures"
		if stats.ConsecutiveFailures == 1 {
			suffix = "failure"
		}
		line += " " + s.warning.Render(fmt.Sprintf("(%d consecutive %s)", stats.ConsecutiveFailures, suffix))
	}

	return line
}

func lastRefreshLine(last *time.Time, opts RenderOptions, s styles) string {
	label := s.label.Render("last refresh: ")
	if last == nil || last.IsZero() {
		return label + s.empty.Render("never")
	}

	line := label + s.detail.Render(formatAgo(*last, opts.Now))
	if opts.StaleAfter > 0 && !opts.Now.IsZero() && opts.Now.Sub(*last) > opts.StaleAfter {
		line += " " + s.warning.Render("[stale]")
	}

	return line
}

func sourcesLine(stats application.Stats, s styles) string {
	line := s.label.Render("sources: ") + s.detail.Render(fmt.Sprintf("%d configured", stats.ConfiguredSourceCount))
	if len(stats.MediaSources) == 0 {
		return line + s.meta.Render("; media: none")
	}

	return line + s.meta.Render("; media: "+strings.Join(stats.MediaSources, ", "))
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	filled = min(max(filled, 0), width)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	suffixes := []string{"KiB", "MiB", "GiB"}
	i := -1
	for value >= unit && i < len(suffixes)-1 {
		value /= unit
		i++
	}

	return fmt.Sprintf("%.1f %s", value, suffixes[i])
}

func formatAgo(at, now time.Time) string {
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	elapsed := now.Sub(at)
	clock := at.Local().Format("15:04:05")
	switch {
	case elapsed < 0:
		return "just now (" + clock + ")"
	case elapsed < time.Minute:
		return fmt.Sprintf("%ds ago (%s)", int(elapsed.Seconds()), clock)
	case elapsed < time.Hour:
		minutes := int(elapsed.Minutes())
		suffix := "minutes"
		if minutes == 1 {
			suffix = "minute"
		}
		return fmt.Sprintf("%d %s ago (%s)", minutes, suffix, clock)
	default:
		hours := int(elapsed.Hours())
		suffix := "hours"
		if hours == 1 {
			suffix = "hour"
		}
		return fmt.Sprintf("%d %s ago (%s)", hours, suffix, clock)
	}
}

// interpolateColor maps value onto the 240..255 greyscale ramp.
func interpolateColor(value, lo, hi float64) lipgloss.Color {
	if hi == lo {
		return lipgloss.Color("255")
	}

	normalized := (value - lo) / (hi - lo)
	normalized = min(max(normalized, 0), 1)

	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}
