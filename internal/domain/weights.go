package domain

// SeverityWeights are the user-configurable multipliers applied to each
// severity's base deduction for one analysis run. Each multiplier is
// clamped to [0.0, 3.0]. The exact weights used for a run are frozen into
// the audit record so the score can be re-derived later.
type SeverityWeights struct {
	Critical float64 `json:"critical"`
	High     float64 `json:"high"`
	Medium   float64 `json:"medium"`
	Low      float64 `json:"low"`
}

const (
	WeightMin = 0.0
	WeightMax = 3.0
)

// BalancedWeights is the default preset.
func BalancedWeights() SeverityWeights {
	return SeverityWeights{Critical: 1.5, High: 1.0, Medium: 0.5, Low: 0.2}
}

func StrictWeights() SeverityWeights {
	return SeverityWeights{Critical: 2.0, High: 1.5, Medium: 1.0, Low: 0.5}
}

func LenientWeights() SeverityWeights {
	return SeverityWeights{Critical: 1.0, High: 0.5, Medium: 0.2, Low: 0.1}
}

// Clamp returns a copy with every multiplier forced into [WeightMin, WeightMax].
func (w SeverityWeights) Clamp() SeverityWeights {
	return SeverityWeights{
		Critical: clampWeight(w.Critical),
		High:     clampWeight(w.High),
		Medium:   clampWeight(w.Medium),
		Low:      clampWeight(w.Low),
	}
}

func clampWeight(v float64) float64 {
	if v < WeightMin {
		return WeightMin
	}
	if v > WeightMax {
		return WeightMax
	}
	return v
}

// For returns the multiplier for a severity. Unknown severities default to
// 1.0 rather than erroring; the scorer must not fail.
func (w SeverityWeights) For(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return w.Critical
	case SeverityHigh:
		return w.High
	case SeverityMedium:
		return w.Medium
	case SeverityLow:
		return w.Low
	}
	return 1.0
}
