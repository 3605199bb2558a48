// Package output renders reports, score tables and status lines for the
// terminal.
package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/blackwell-systems/projectlens/internal/report"
)

// Terminal colors.
const (
	ColorPrimary = lipgloss.Color("#64b5f6")
	ColorSuccess = lipgloss.Color("#66bb6a")
	ColorError   = lipgloss.Color("#ef5350")
	ColorWarning = lipgloss.Color("#fff59d")
	ColorMuted   = lipgloss.Color("#888888")
)

// tierColors runs from red for an early prototype to green for a
// production-ready project.
var tierColors = map[report.Tier]lipgloss.Color{
	report.TierDevelopment: ColorError,
	report.TierNearReady:   ColorWarning,
	report.TierDeployment:  lipgloss.Color("#4db6ac"),
	report.TierProduction:  ColorSuccess,
}

// Shared styles. SetNoColor swaps them for plain renderers.
var (
	StyleHeader  lipgloss.Style
	StyleSuccess lipgloss.Style
	StyleError   lipgloss.Style
	StyleWarning lipgloss.Style
	StyleMuted   lipgloss.Style
	StyleBold    lipgloss.Style
	StyleLabel   lipgloss.Style
)

var noColor bool

func init() {
	applyPalette(true)
}

// applyPalette assigns the shared styles, colored or plain.
func applyPalette(color bool) {
	fg := func(c lipgloss.Color) lipgloss.Style {
		if !color {
			return lipgloss.NewStyle()
		}
		return lipgloss.NewStyle().Foreground(c)
	}
	StyleHeader = fg(ColorPrimary).Bold(color)
	StyleSuccess = fg(ColorSuccess)
	StyleError = fg(ColorError)
	StyleWarning = fg(ColorWarning)
	StyleMuted = fg(ColorMuted)
	StyleBold = lipgloss.NewStyle().Bold(color)
	StyleLabel = lipgloss.NewStyle().Width(24)
}

// SetNoColor disables or re-enables color output.
func SetNoColor(disabled bool) {
	noColor = disabled
	applyPalette(!disabled)
}

// IsNoColor reports whether color output is disabled.
func IsNoColor() bool {
	return noColor
}

// PriorityStyle returns the style for a recommendation priority.
func PriorityStyle(p report.Priority) lipgloss.Style {
	switch p {
	case report.PriorityCritical:
		return StyleError.Bold(!noColor)
	case report.PriorityHigh:
		return StyleWarning
	default:
		return StyleMuted
	}
}

// TierStyle returns the style for a readiness tier.
func TierStyle(t report.Tier) lipgloss.Style {
	c, ok := tierColors[t]
	if !ok || noColor {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(c)
}
