package report

// Tier thresholds on the mean score, ascending.
const (
	NearReadyThreshold  = 0.70
	DeploymentThreshold = 0.80
	ProductionThreshold = 0.90
)

// Mean returns the unweighted arithmetic mean of the component scores, or 0
// for an empty set.
func Mean(components []ComponentReport) float64 {
	if len(components) == 0 {
		return 0
	}
	var sum float64
	for _, c := range components {
		sum += c.Score
	}
	return sum / float64(len(components))
}

// Classify maps a mean score to its readiness tier.
func Classify(mean float64) Tier {
	switch {
	case mean >= ProductionThreshold:
		return TierProduction
	case mean >= DeploymentThreshold:
		return TierDeployment
	case mean >= NearReadyThreshold:
		return TierNearReady
	default:
		return TierDevelopment
	}
}

// Summarize computes the run summary. It must only be called once every
// component of the run is available.
func Summarize(components []ComponentReport) Summary {
	mean := Mean(components)
	return Summary{
		MeanScore:          mean,
		Tier:               Classify(mean),
		ComponentsAnalyzed: len(components),
	}
}

// Assemble builds the component map and summary of r from the given reports,
// keeping their order.
func (r *AggregateReport) Assemble(components []ComponentReport) {
	r.Order = make([]string, 0, len(components))
	r.Components = make(map[string]ComponentReport, len(components))
	for _, c := range components {
		r.Order = append(r.Order, c.Name)
		r.Components[c.Name] = c
	}
	r.Summary = Summarize(components)
}
