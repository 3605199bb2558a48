package output

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/projectlens/internal/report"
)

// DefaultLineWidth is used until SetWidth is called.
const DefaultLineWidth = 100

var lineWidth = DefaultLineWidth

// SetWidth sets the terminal width tables and rules are fitted to. Widths
// below 40 are ignored.
func SetWidth(n int) {
	if n >= 40 {
		lineWidth = n
	}
}

// LineWidth returns the current terminal width.
func LineWidth() int { return lineWidth }

// ScoreBar renders a [0,1] score as a bar colored by the readiness tier the
// score would fall into, followed by the value.
// Example: "████████░░ 0.80"
func ScoreBar(score float64, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := min(max(int(score*float64(width)), 0), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %s", TierStyle(report.Classify(score)).Render(bar), StyleMuted.Render(fmt.Sprintf("%.2f", score)))
}

// trendEpsilon is the smallest score change shown as a trend.
const trendEpsilon = 0.005

// TrendArrow returns a styled indicator for a score delta between two runs.
// Changes smaller than trendEpsilon show a dash.
func TrendArrow(delta float64) string {
	switch {
	case delta >= trendEpsilon:
		return StyleSuccess.Render(fmt.Sprintf("▲ +%.2f", delta))
	case delta <= -trendEpsilon:
		return StyleError.Render(fmt.Sprintf("▼ %.2f", delta))
	default:
		return StyleMuted.Render("─")
	}
}

// Section returns a styled section header over a rule spanning the line.
func Section(title string) string {
	rule := StyleMuted.Render(strings.Repeat("─", min(lineWidth-2, 78)))
	return fmt.Sprintf("\n %s\n %s", StyleHeader.Render(title), rule)
}
