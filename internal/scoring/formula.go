// Package scoring converts named metrics into bounded sophistication scores.
package scoring

import (
	"fmt"
	"math"
)

// Term is one additive factor of a Formula. Its contribution is
// min(metric[Source]/Divisor, Cap), computed before any summation.
//
// A structural boolean is expressed as a 0/1 metric with Divisor 1 and the
// factor weight as Cap. A linear per-item weight w is Divisor 1/w.
type Term struct {
	Name    string  `json:"name" yaml:"name"`
	Source  string  `json:"source" yaml:"source"`
	Divisor float64 `json:"divisor" yaml:"divisor"`
	Cap     float64 `json:"cap" yaml:"cap"`
}

// Formula is a base constant plus an ordered list of capped terms.
type Formula struct {
	Base  float64 `json:"base" yaml:"base"`
	Terms []Term  `json:"terms" yaml:"terms"`
}

// Contribution is the capped value a single term added to a score.
type Contribution struct {
	Term  string  `json:"term"`
	Value float64 `json:"value"`
}

// Validate reports formula definitions that cannot produce a meaningful
// score: a base outside [0,1], a non-positive divisor or a negative cap.
func (f Formula) Validate() error {
	if f.Base < 0 || f.Base > 1 || math.IsNaN(f.Base) {
		return fmt.Errorf("base %v outside [0,1]", f.Base)
	}
	seen := make(map[string]bool, len(f.Terms))
	for i, t := range f.Terms {
		if t.Source == "" {
			return fmt.Errorf("term %d (%s): empty source", i, t.Name)
		}
		if !(t.Divisor > 0) {
			return fmt.Errorf("term %d (%s): divisor must be > 0, got %v", i, t.Name, t.Divisor)
		}
		if t.Cap < 0 || math.IsNaN(t.Cap) {
			return fmt.Errorf("term %d (%s): cap must be >= 0, got %v", i, t.Name, t.Cap)
		}
		if t.Name != "" {
			if seen[t.Name] {
				return fmt.Errorf("term %d: duplicate name %q", i, t.Name)
			}
			seen[t.Name] = true
		}
	}
	return nil
}

// Score applies the formula to metrics. Missing metrics count as zero, so an
// empty metric set yields Base. The result is always in [0,1].
func (f Formula) Score(metrics map[string]float64) float64 {
	score, _ := f.Explain(metrics)
	return score
}

// Explain is Score plus the per-term contributions in term order.
func (f Formula) Explain(metrics map[string]float64) (float64, []Contribution) {
	total := f.Base
	contribs := make([]Contribution, 0, len(f.Terms))
	for _, t := range f.Terms {
		v := t.contribution(metrics[t.Source])
		contribs = append(contribs, Contribution{Term: t.label(), Value: v})
		total += v
	}
	return Clamp01(total), contribs
}

func (t Term) contribution(value float64) float64 {
	if !(t.Divisor > 0) || math.IsNaN(value) || value <= 0 {
		return 0
	}
	v := value / t.Divisor
	if v > t.Cap {
		v = t.Cap
	}
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func (t Term) label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Source
}

// Clamp01 bounds v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Flag converts a boolean into the 0/1 metric form used by formula terms.
func Flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
