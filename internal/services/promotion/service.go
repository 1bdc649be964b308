// Package promotion copies audit-record findings into the parent
// compliance check for at-a-glance reporting. The top-line score always
// defers to the audit record's average once a deep analysis exists;
// sub-scores are recomputed independently and may disagree with it. That
// asymmetry is deliberate and must not be reconciled here.
package promotion

import (
	"context"
	"fmt"
	"log"

	"redline/internal/domain"
	"redline/internal/ports"
	"redline/internal/services/scorer"
)

type Service struct {
	checks   ports.CheckRepository
	records  ports.DeepAnalysisRepository
	findings ports.FindingRepository
	rules    ports.RuleRepository
	matcher  ports.RuleMatcher
}

func New(
	checks ports.CheckRepository,
	records ports.DeepAnalysisRepository,
	findings ports.FindingRepository,
	rules ports.RuleRepository,
	matcher ports.RuleMatcher,
) *Service {
	return &Service{checks: checks, records: records, findings: findings, rules: rules, matcher: matcher}
}

// fallbackPenalty is the per-finding linear deduction applied to every
// category when sub-score recomputation fails outright.
const fallbackPenalty = 2.0

// Sync promotes the latest audit record for a submission into its
// compliance check: prior findings are replaced by ones re-derived from
// the record's ledger, sub-scores are recomputed, and the overall score is
// forced to the record's average.
func (s *Service) Sync(ctx context.Context, submissionID string) error {
	check, err := s.checks.GetCheckBySubmission(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("compliance check for %s: %w", submissionID, err)
	}
	record, err := s.records.GetByCheck(ctx, check.ID)
	if err != nil {
		return fmt.Errorf("deep analysis for check %s: %w", check.ID, err)
	}

	findings := s.deriveFindings(ctx, check.ID, record)

	if err := s.findings.ReplaceFindings(ctx, check.ID, findings); err != nil {
		return fmt.Errorf("replace findings: %w", err)
	}

	// Top-line score always comes from the audit record. Sub-scores are
	// recomputed from the new findings; when that fails, a coarse linear
	// penalty stands in so the check is never left unscored.
	check.OverallScore = record.AverageScore

	checkScores, err := scorer.ScoreFindings(ctx, findings, s.rules)
	if err != nil {
		log.Printf("sync %s: sub-score recomputation failed, using linear penalty: %v", check.ID, err)
		sub := scorer.Clamp(100 - fallbackPenalty*float64(len(findings)))
		check.RegulatoryScore = sub
		check.BrandScore = sub
		check.SEOScore = sub
		check.Grade = scorer.Grade(record.AverageScore)
		check.Status = scorer.Status(nil, record.AverageScore)
	} else {
		check.RegulatoryScore = checkScores.Regulatory
		check.BrandScore = checkScores.Brand
		check.SEOScore = checkScores.SEO
		check.Grade = checkScores.Grade
		check.Status = checkScores.Status
	}
	check.AISummary = "Updated with deep analysis findings."

	if err := s.checks.UpdateCheckScores(ctx, check); err != nil {
		return fmt.Errorf("update check: %w", err)
	}
	return nil
}

// deriveFindings rebuilds itemized findings from the audit ledger. Each
// finding is best-effort matched to a canonical rule; "no match" leaves it
// unlinked rather than blocking the promotion.
func (s *Service) deriveFindings(ctx context.Context, checkID string, record domain.DeepAnalysisRecord) []domain.Finding {
	findings := make([]domain.Finding, 0)
	for _, result := range record.Results {
		for _, impact := range result.RuleImpacts {
			description := impact.ViolationReason
			if description == "" {
				description = "Violation detected via deep analysis"
			}

			ruleID, err := s.matcher.Match(ctx, description, impact.Category, impact.Severity)
			if err != nil {
				log.Printf("sync: rule match failed for segment %d: %v", result.UnitIndex, err)
				ruleID = nil
			}

			findings = append(findings, domain.Finding{
				CheckID:       checkID,
				RuleID:        ruleID,
				Severity:      impact.Severity,
				Category:      impact.Category,
				Description:   description,
				Location:      fmt.Sprintf("Segment %d", result.UnitIndex+1),
				CurrentText:   result.ContentPreview,
				SuggestedFix:  "Review compliance guidelines.",
				IsAutoFixable: false,
			})
		}
	}
	return findings
}
