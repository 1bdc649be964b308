package scorer

import (
	"context"
	"errors"

	"redline/internal/domain"
	"redline/internal/ports"
)

// Category weights for the first-pass overall score.
var categoryWeights = map[domain.Category]float64{
	domain.CategoryRegulatory: 0.50,
	domain.CategoryBrand:      0.30,
	domain.CategorySEO:        0.20,
}

// Severity fallback deductions (positive magnitudes) used when a finding
// has no linked rule or the linked rule no longer exists.
var fallbackDeductions = map[domain.Severity]float64{
	domain.SeverityCritical: 20,
	domain.SeverityHigh:     10,
	domain.SeverityMedium:   5,
	domain.SeverityLow:      2,
}

// CheckScores is the category-weighted first-pass scoring result applied
// to a compliance check.
type CheckScores struct {
	Overall    float64
	Regulatory float64
	Brand      float64
	SEO        float64
	Grade      string
	Status     string
}

// ScoreFindings computes per-category sub-scores and a weighted overall
// score from a set of findings. When a finding links a rule, the rule's
// own deduction magnitude is used; a missing rule falls back to the
// severity table, but a broken rule store surfaces as an error so callers
// can apply their own fallback. rules may be nil, in which case every
// finding uses the fallback table.
func ScoreFindings(ctx context.Context, findings []domain.Finding, rules ports.RuleRepository) (CheckScores, error) {
	perCategory := map[domain.Category]float64{
		domain.CategoryRegulatory: 100.0,
		domain.CategoryBrand:      100.0,
		domain.CategorySEO:        100.0,
	}

	for _, f := range findings {
		deduction, err := deductionFor(ctx, f, rules)
		if err != nil {
			return CheckScores{}, err
		}
		if _, ok := perCategory[f.Category]; !ok {
			continue
		}
		perCategory[f.Category] -= deduction
	}
	for c, s := range perCategory {
		perCategory[c] = Clamp(s)
	}

	overall := 0.0
	for c, w := range categoryWeights {
		overall += perCategory[c] * w
	}
	overall = Round2(overall)

	return CheckScores{
		Overall:    overall,
		Regulatory: Round2(perCategory[domain.CategoryRegulatory]),
		Brand:      Round2(perCategory[domain.CategoryBrand]),
		SEO:        Round2(perCategory[domain.CategorySEO]),
		Grade:      Grade(overall),
		Status:     Status(findings, overall),
	}, nil
}

func deductionFor(ctx context.Context, f domain.Finding, rules ports.RuleRepository) (float64, error) {
	if f.RuleID != nil && rules != nil {
		rule, err := rules.Get(ctx, *f.RuleID)
		switch {
		case err == nil && rule.PointsDeduction != 0:
			d := rule.PointsDeduction
			if d < 0 {
				d = -d
			}
			return d, nil
		case err != nil && !errors.Is(err, ports.ErrNotFound):
			return 0, err
		}
	}
	if d, ok := fallbackDeductions[f.Severity.Normalize()]; ok {
		return d, nil
	}
	return 5, nil
}

// Grade converts a numeric score to a letter grade.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// Status derives the compliance status. Any critical finding fails the
// check outright regardless of the numeric score.
func Status(findings []domain.Finding, overall float64) string {
	hasCritical := false
	for _, f := range findings {
		if f.Severity == domain.SeverityCritical {
			hasCritical = true
			break
		}
	}
	switch {
	case hasCritical || overall < 60:
		return "failed"
	case overall < 80:
		return "flagged"
	default:
		return "passed"
	}
}
