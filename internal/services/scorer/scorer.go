// Package scorer holds the deterministic scoring logic. Nothing in this
// package performs I/O or calls the LLM: given the same violations and
// weights it always produces the same score and the same ledger, which is
// what makes the audit record replayable.
package scorer

import (
	"math"

	"redline/internal/domain"
)

// ScoreUnit applies every detected violation, in input order, to baseScore
// and returns the clamped final score together with the itemized ledger.
//
// For each violation the base deduction comes from the severity table, the
// multiplier from the run's weight configuration (unknown severities get
// 1.0), and weighted = base * multiplier is added to the running score.
// Deductions are negative, so this only ever lowers the score. The final
// score is clamped into [0, 100].
func ScoreUnit(baseScore float64, violations []domain.DetectedViolation, weights domain.SeverityWeights) (float64, []domain.RuleImpact) {
	score := baseScore
	impacts := make([]domain.RuleImpact, 0, len(violations))

	for _, v := range violations {
		sev := v.Severity.Normalize()
		base := sev.BaseDeduction()
		weight := weights.For(sev)
		weighted := base * weight
		score += weighted

		ruleID := v.RuleID
		if ruleID == "" {
			ruleID = "unknown"
		}
		ruleText := v.RuleText
		if ruleText == "" {
			ruleText = "Unknown rule"
		}
		reason := v.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		impacts = append(impacts, domain.RuleImpact{
			RuleID:            ruleID,
			RuleText:          ruleText,
			Category:          v.Category,
			Severity:          sev,
			BaseDeduction:     base,
			WeightMultiplier:  weight,
			WeightedDeduction: weighted,
			ViolationReason:   reason,
		})
	}

	return Clamp(score), impacts
}

// Clamp bounds a score into [0, 100].
func Clamp(score float64) float64 {
	return math.Max(0.0, math.Min(100.0, score))
}

// Round2 rounds to two decimal places, the precision scores are persisted at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summary holds per-run aggregate statistics. An empty run reports 100
// across the board: an empty document is fully compliant by convention.
type Summary struct {
	Average float64
	Min     float64
	Max     float64
}

func Summarize(scores []float64) Summary {
	if len(scores) == 0 {
		return Summary{Average: 100.0, Min: 100.0, Max: 100.0}
	}
	total := 0.0
	min := scores[0]
	max := scores[0]
	for _, s := range scores {
		total += s
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return Summary{
		Average: Round2(total / float64(len(scores))),
		Min:     Round2(min),
		Max:     Round2(max),
	}
}
