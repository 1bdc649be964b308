package ports

import (
	"context"

	"redline/internal/domain"
)

// RuleRepository serves read-only rule snapshots for a run.
type RuleRepository interface {
	ListActive(ctx context.Context) ([]domain.Rule, error)
	ListByCategory(ctx context.Context, category domain.Category) ([]domain.Rule, error)
	Get(ctx context.Context, id string) (domain.Rule, error)
}

// SubmissionRepository fetches parent documents.
type SubmissionRepository interface {
	GetSubmission(ctx context.Context, id string) (domain.Submission, error)
}

// ContentRepository abstracts over "already segmented into chunks" vs
// "needs a synthetic single-unit fallback" so the orchestrator never
// special-cases legacy documents.
type ContentRepository interface {
	UnitsForSubmission(ctx context.Context, submissionID string) ([]domain.ContentUnit, error)
}

// CheckRepository manages the parent summary entity.
type CheckRepository interface {
	GetCheckBySubmission(ctx context.Context, submissionID string) (domain.ComplianceCheck, error)
	UpdateCheckScores(ctx context.Context, check domain.ComplianceCheck) error
}

// DeepAnalysisRepository owns the audit record. ReplaceForCheck deletes any
// prior record and inserts the new one in a single transaction; audit
// history is single-generation.
type DeepAnalysisRepository interface {
	ReplaceForCheck(ctx context.Context, record domain.DeepAnalysisRecord) (recordID string, err error)
	CompleteAnalysis(ctx context.Context, recordID string, record domain.DeepAnalysisRecord) error
	MarkAnalysisFailed(ctx context.Context, recordID string) error
	GetByCheck(ctx context.Context, checkID string) (domain.DeepAnalysisRecord, error)
}

// FindingRepository replaces a check's itemized findings atomically
// (delete-then-insert) during promotion.
type FindingRepository interface {
	ListFindings(ctx context.Context, checkID string) ([]domain.Finding, error)
	ReplaceFindings(ctx context.Context, checkID string, findings []domain.Finding) error
}
