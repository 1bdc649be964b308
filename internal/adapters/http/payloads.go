package httpadapter

import (
	"time"

	"redline/internal/domain"
)

// Wire shapes for the compliance API. Kept separate from domain types so
// the persisted model can evolve without breaking callers.

type checkResponse struct {
	ID              string            `json:"id"`
	SubmissionID    string            `json:"submission_id"`
	OverallScore    float64           `json:"overall_score"`
	RegulatoryScore float64           `json:"regulatory_score"`
	BrandScore      float64           `json:"brand_score"`
	SEOScore        float64           `json:"seo_score"`
	Status          string            `json:"status"`
	Grade           string            `json:"grade"`
	AISummary       string            `json:"ai_summary"`
	CheckDate       time.Time         `json:"check_date"`
	Findings        []findingResponse `json:"findings"`
}

type findingResponse struct {
	ID            string  `json:"id"`
	RuleID        *string `json:"rule_id"`
	Severity      string  `json:"severity"`
	Category      string  `json:"category"`
	Description   string  `json:"description"`
	Location      string  `json:"location"`
	CurrentText   string  `json:"current_text"`
	SuggestedFix  string  `json:"suggested_fix"`
	IsAutoFixable bool    `json:"is_auto_fixable"`
}

func checkResponseFrom(check domain.ComplianceCheck, findings []domain.Finding) checkResponse {
	out := checkResponse{
		ID:              check.ID,
		SubmissionID:    check.SubmissionID,
		OverallScore:    check.OverallScore,
		RegulatoryScore: check.RegulatoryScore,
		BrandScore:      check.BrandScore,
		SEOScore:        check.SEOScore,
		Status:          check.Status,
		Grade:           check.Grade,
		AISummary:       check.AISummary,
		CheckDate:       check.CheckDate,
		Findings:        make([]findingResponse, 0, len(findings)),
	}
	for _, f := range findings {
		out.Findings = append(out.Findings, findingResponse{
			ID:            f.ID,
			RuleID:        f.RuleID,
			Severity:      string(f.Severity),
			Category:      string(f.Category),
			Description:   f.Description,
			Location:      f.Location,
			CurrentText:   f.CurrentText,
			SuggestedFix:  f.SuggestedFix,
			IsAutoFixable: f.IsAutoFixable,
		})
	}
	return out
}

type recordResponse struct {
	CheckID           string                      `json:"check_id"`
	SubmissionID      string                      `json:"submission_id"`
	DocumentTitle     string                      `json:"document_title"`
	TotalUnits        int                         `json:"total_units"`
	AverageScore      float64                     `json:"average_score"`
	MinScore          float64                     `json:"min_score"`
	MaxScore          float64                     `json:"max_score"`
	SeverityConfig    domain.SeverityWeights      `json:"severity_config"`
	Status            string                      `json:"status"`
	Units             []domain.UnitAnalysisResult `json:"units"`
	AnalysisTimestamp *time.Time                  `json:"analysis_timestamp"`
}

func recordResponseFrom(submissionID string, record domain.DeepAnalysisRecord) recordResponse {
	units := record.Results
	if units == nil {
		units = []domain.UnitAnalysisResult{}
	}
	var ts *time.Time
	if !record.CreatedAt.IsZero() {
		t := record.CreatedAt
		ts = &t
	}
	return recordResponse{
		CheckID:           record.CheckID,
		SubmissionID:      submissionID,
		DocumentTitle:     record.DocumentTitle,
		TotalUnits:        record.TotalUnits,
		AverageScore:      record.AverageScore,
		MinScore:          record.MinScore,
		MaxScore:          record.MaxScore,
		SeverityConfig:    record.WeightSnapshot,
		Status:            string(record.Status),
		Units:             units,
		AnalysisTimestamp: ts,
	}
}
