package analytics

import "math"

// rankTolerance is the magnitude below which a singular value counts as zero.
const rankTolerance = 1e-10

// featureStats computes the statistics of one feature array. Each feature is
// treated as a single column vector v, so the only non-zero eigenvalue of
// v·vᵀ is ‖v‖² and the only singular value of v is ‖v‖.
func featureStats(op Operation, values []float64) map[string]float64 {
	n, sum, sumSq := moments(values)
	switch op {
	case OpEigen:
		return map[string]float64{"max_eigenvalue": sumSq}
	case OpSVD:
		sv := math.Sqrt(sumSq)
		rank := 0.0
		if sv > rankTolerance {
			rank = 1
		}
		return map[string]float64{"singular_value": sv, "numerical_rank": rank}
	default:
		out := map[string]float64{
			"count":          float64(n),
			"frobenius_norm": math.Sqrt(sumSq),
		}
		if n > 0 {
			mean := sum / float64(n)
			out["mean"] = mean
			out["std"] = std(values, mean)
		}
		return out
	}
}

// combine builds the final statistics map from the per-feature results,
// which must be given in the same order as names. Feature statistics are
// prefixed with the feature name; overall statistics are unprefixed.
func combine(op Operation, names []string, perFeature []map[string]float64, features map[string][]float64) map[string]float64 {
	out := make(map[string]float64)
	for i, name := range names {
		for k, v := range perFeature[i] {
			out[name+"."+k] = v
		}
	}

	switch op {
	case OpEigen:
		var maxEig float64
		for _, fs := range perFeature {
			maxEig = math.Max(maxEig, fs["max_eigenvalue"])
		}
		out["max_eigenvalue"] = maxEig
	case OpSVD:
		var rank float64
		for _, fs := range perFeature {
			rank += fs["numerical_rank"]
		}
		out["numerical_rank"] = rank
	default:
		var all []float64
		for _, name := range names {
			all = append(all, features[name]...)
		}
		for k, v := range featureStats(OpComprehensive, all) {
			out[k] = v
		}
	}
	return out
}

func moments(values []float64) (n int, sum, sumSq float64) {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		n++
		sum += v
		sumSq += v * v
	}
	return n, sum, sumSq
}

// std is the population standard deviation over the finite values.
func std(values []float64, mean float64) float64 {
	var n int
	var acc float64
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		d := v - mean
		acc += d * d
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(acc / float64(n))
}
