// Package analysis drives one deep analysis run end to end: it segments
// the document (via the content repository), asks the detector about each
// unit strictly in order, scores every unit deterministically, and writes
// the audit record. The detector call is the only suspension point; while
// waiting on it no other work proceeds for the run.
package analysis

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"redline/internal/domain"
	"redline/internal/ports"
	"redline/internal/services/scorer"
)

type Service struct {
	submissions ports.SubmissionRepository
	checks      ports.CheckRepository
	rules       ports.RuleRepository
	content     ports.ContentRepository
	records     ports.DeepAnalysisRepository
	detector    ports.Detector

	now func() time.Time
}

func New(
	submissions ports.SubmissionRepository,
	checks ports.CheckRepository,
	rules ports.RuleRepository,
	content ports.ContentRepository,
	records ports.DeepAnalysisRepository,
	detector ports.Detector,
) *Service {
	return &Service{
		submissions: submissions,
		checks:      checks,
		rules:       rules,
		content:     content,
		records:     records,
		detector:    detector,
		now:         time.Now,
	}
}

const (
	previewLen         = 200
	streamPreviewLen   = 100
	streamResultLen    = 150
	streamRelevanceLen = 200
	baseUnitScore      = 100.0
)

// Run executes a full deep analysis without progress events.
func (s *Service) Run(ctx context.Context, submissionID string, weights domain.SeverityWeights) (domain.DeepAnalysisRecord, error) {
	return s.RunStreaming(ctx, submissionID, weights, nil)
}

// RunStreaming executes a full deep analysis, emitting ordered progress
// events to sink as each unit completes. sink may be nil. Event emission
// is fire-and-forget and does not affect final-record correctness.
//
// Lifecycle: an initial record is persisted in processing state before the
// first unit so progress is externally observable; on success the record
// transitions to completed with stats and the full ledger; an
// orchestration-level error (not a per-unit detector failure, which
// degrades in place) transitions it to failed.
func (s *Service) RunStreaming(ctx context.Context, submissionID string, weights domain.SeverityWeights, sink ports.ProgressSink) (domain.DeepAnalysisRecord, error) {
	weights = weights.Clamp()

	submission, err := s.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.DeepAnalysisRecord{}, fmt.Errorf("submission %s: %w", submissionID, err)
	}
	check, err := s.checks.GetCheckBySubmission(ctx, submissionID)
	if err != nil {
		return domain.DeepAnalysisRecord{}, fmt.Errorf("compliance check for %s: %w", submissionID, err)
	}
	activeRules, err := s.rules.ListActive(ctx)
	if err != nil {
		return domain.DeepAnalysisRecord{}, fmt.Errorf("rules snapshot: %w", err)
	}
	units, err := s.content.UnitsForSubmission(ctx, submissionID)
	if err != nil {
		return domain.DeepAnalysisRecord{}, fmt.Errorf("content units: %w", err)
	}

	record := domain.DeepAnalysisRecord{
		CheckID:        check.ID,
		TotalUnits:     len(units),
		DocumentTitle:  submission.Title,
		WeightSnapshot: weights,
		Status:         domain.AnalysisProcessing,
		CreatedAt:      s.now(),
	}
	// Re-running replaces the prior record; audit history is single-generation.
	recordID, err := s.records.ReplaceForCheck(ctx, record)
	if err != nil {
		return domain.DeepAnalysisRecord{}, fmt.Errorf("create audit record: %w", err)
	}
	record.ID = recordID

	emit(sink, ports.ProgressEvent{
		Status:        "started",
		TotalUnits:    len(units),
		DocumentTitle: submission.Title,
	})

	results := make([]domain.UnitAnalysisResult, 0, len(units))
	scores := make([]float64, 0, len(units))
	total := len(units)

	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			return record, s.fail(record, fmt.Errorf("run cancelled at unit %d: %w", i, err))
		}

		emit(sink, ports.ProgressEvent{
			Status:       "processing",
			Progress:     scorer.Round2(float64(i) / float64(total) * 100),
			CurrentIndex: i + 1,
			TotalUnits:   total,
			CurrentUnit:  &ports.UnitPreview{Index: unit.Index, Content: truncate(unit.Text, streamPreviewLen)},
		})

		// Sole suspension point: the external classifier. Degraded results
		// are normal data; the loop never aborts for one unit.
		detected := s.detector.Detect(ctx, unit.Text, unit.Index+1, submission.Title, activeRules)

		score, impacts := scorer.ScoreUnit(baseUnitScore, detected.Violations, weights)
		score = scorer.Round2(score)

		results = append(results, domain.UnitAnalysisResult{
			UnitID:           unit.ID,
			UnitIndex:        unit.Index,
			ContentPreview:   truncate(unit.Text, previewLen),
			Score:            score,
			TokenCount:       unit.TokenCount,
			Metadata:         unit.Metadata,
			RelevanceContext: detected.RelevanceContext,
			RuleImpacts:      impacts,
		})
		scores = append(scores, score)

		emit(sink, ports.ProgressEvent{
			Status:       "classified",
			Progress:     scorer.Round2(float64(i+1) / float64(total) * 100),
			CurrentIndex: i + 1,
			TotalUnits:   total,
			LastResult: &ports.ScoredResult{
				Index:            unit.Index,
				Content:          truncate(unit.Text, streamResultLen),
				Score:            score,
				RelevanceContext: truncate(detected.RelevanceContext, streamRelevanceLen),
				ViolationsCount:  len(impacts),
			},
		})
	}

	summary := scorer.Summarize(scores)
	record.TotalUnits = len(results)
	record.AverageScore = summary.Average
	record.MinScore = summary.Min
	record.MaxScore = summary.Max
	record.Results = results
	record.Status = domain.AnalysisCompleted

	if err := s.records.CompleteAnalysis(ctx, recordID, record); err != nil {
		return record, s.fail(record, fmt.Errorf("finalize audit record: %w", err))
	}

	// Refresh the parent check from the run's ledger. Best effort: the
	// audit record is already committed and stands on its own.
	if err := s.refreshCheck(ctx, check, record); err != nil {
		log.Printf("analysis %s: check refresh skipped: %v", recordID, err)
	}

	emit(sink, ports.ProgressEvent{
		Status:       "complete",
		Progress:     100,
		TotalUnits:   len(results),
		AverageScore: summary.Average,
		MinScore:     summary.Min,
		MaxScore:     summary.Max,
	})
	return record, nil
}

// Results returns the latest persisted audit record for a submission.
func (s *Service) Results(ctx context.Context, submissionID string) (domain.DeepAnalysisRecord, error) {
	check, err := s.checks.GetCheckBySubmission(ctx, submissionID)
	if err != nil {
		return domain.DeepAnalysisRecord{}, err
	}
	return s.records.GetByCheck(ctx, check.ID)
}

// fail transitions the record to failed, best effort, and returns err.
// Partial data stays in place for forensic inspection.
func (s *Service) fail(record domain.DeepAnalysisRecord, err error) error {
	if record.ID != "" {
		if markErr := s.records.MarkAnalysisFailed(context.Background(), record.ID); markErr != nil {
			log.Printf("analysis %s: mark failed: %v", record.ID, markErr)
		}
	}
	return err
}

// refreshCheck recomputes the parent check's scores from the run's ledger
// using the same category-weighted path as a first-pass analysis.
func (s *Service) refreshCheck(ctx context.Context, check domain.ComplianceCheck, record domain.DeepAnalysisRecord) error {
	findings := ledgerFindings(check.ID, record)
	checkScores, err := scorer.ScoreFindings(ctx, findings, s.rules)
	if err != nil {
		return err
	}
	check.OverallScore = checkScores.Overall
	check.RegulatoryScore = checkScores.Regulatory
	check.BrandScore = checkScores.Brand
	check.SEOScore = checkScores.SEO
	check.Grade = checkScores.Grade
	check.Status = checkScores.Status
	return s.checks.UpdateCheckScores(ctx, check)
}

// ledgerFindings converts a record's rule impacts into findings for the
// category scorer. Impacts without a real rule identity stay unlinked.
func ledgerFindings(checkID string, record domain.DeepAnalysisRecord) []domain.Finding {
	var findings []domain.Finding
	for _, result := range record.Results {
		for _, impact := range result.RuleImpacts {
			f := domain.Finding{
				CheckID:     checkID,
				Severity:    impact.Severity,
				Category:    impact.Category,
				Description: impact.ViolationReason,
			}
			if impact.RuleID != "" && impact.RuleID != "unknown" {
				id := impact.RuleID
				f.RuleID = &id
			}
			findings = append(findings, f)
		}
	}
	return findings
}

func emit(sink ports.ProgressSink, e ports.ProgressEvent) {
	if sink != nil {
		sink.Emit(e)
	}
}

// truncate shortens s to at most n bytes without splitting a rune, so
// previews stay valid UTF-8 when persisted or sent over the wire.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
