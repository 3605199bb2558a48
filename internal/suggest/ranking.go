package suggest

import "github.com/blackwell-systems/projectlens/internal/report"

// CountByPriority tallies recommendations per priority level.
func CountByPriority(recs []report.Recommendation) map[report.Priority]int {
	counts := make(map[report.Priority]int, 3)
	for _, r := range recs {
		counts[r.Priority]++
	}
	return counts
}

// Highest returns the most urgent priority present, or "" when recs is empty.
func Highest(recs []report.Recommendation) report.Priority {
	var best report.Priority
	for _, r := range recs {
		if best == "" || r.Priority.Rank() < best.Rank() {
			best = r.Priority
		}
	}
	return best
}

// AtLeast reports whether any recommendation is at least as urgent as p.
func AtLeast(recs []report.Recommendation, p report.Priority) bool {
	h := Highest(recs)
	return h != "" && h.Rank() <= p.Rank()
}
