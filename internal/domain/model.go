package domain

import "time"

// Core domain models used internally. HTTP payload types live in the http
// adapter; keep these decoupled where helpful.

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Normalize maps arbitrary detector output onto a known severity.
// Anything unrecognized is treated as low.
func (s Severity) Normalize() Severity {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return s
	}
	return SeverityLow
}

// BaseDeduction is the standing point deduction for a severity, used when
// no rule-specific deduction applies. Values are negative.
func (s Severity) BaseDeduction() float64 {
	switch s {
	case SeverityCritical:
		return -20.0
	case SeverityHigh:
		return -10.0
	case SeverityMedium:
		return -5.0
	default:
		return -2.0
	}
}

type Category string

const (
	CategoryRegulatory Category = "regulatory"
	CategoryBrand      Category = "brand"
	CategorySEO        Category = "seo"
)

// Categories in reporting order.
func Categories() []Category {
	return []Category{CategoryRegulatory, CategoryBrand, CategorySEO}
}

type Rule struct {
	ID              string
	Category        Category
	RuleText        string
	Severity        Severity
	Keywords        []string
	Pattern         *string
	PointsDeduction float64 // negative
	IsActive        bool
	CreatedAt       time.Time
}

type Submission struct {
	ID          string
	Title       string
	Content     string
	ContentType string // text|html|markdown|pdf|docx
	Status      string // uploaded|preprocessed|analyzing|completed|failed
}

// ContentUnit is one addressable span of a submission's text. Units are
// read-only once produced for a run; Index is 0-based and stable.
type ContentUnit struct {
	ID         string
	Index      int
	Text       string
	TokenCount int
	Metadata   UnitMetadata
}

type UnitMetadata struct {
	SourceType      string `json:"source_type,omitempty"`
	CharOffsetStart int    `json:"char_offset_start"`
	CharOffsetEnd   int    `json:"char_offset_end"`
	ChunkMethod     string `json:"chunk_method,omitempty"`
	Synthetic       bool   `json:"synthetic,omitempty"`
	Truncated       bool   `json:"truncated,omitempty"`
	OriginalLength  int    `json:"original_length,omitempty"`
}

// DetectedViolation is the per-unit detector output. It is validated and
// defaulted at the detector boundary and never persisted standalone.
type DetectedViolation struct {
	RuleID   string
	RuleText string
	Category Category
	Severity Severity
	Reason   string
}

// RuleImpact is one ledger entry: the full derivation of a single
// deduction, frozen at scoring time for audit.
type RuleImpact struct {
	RuleID            string   `json:"rule_id"`
	RuleText          string   `json:"rule_text"`
	Category          Category `json:"category"`
	Severity          Severity `json:"severity"`
	BaseDeduction     float64  `json:"base_deduction"`
	WeightMultiplier  float64  `json:"weight_multiplier"`
	WeightedDeduction float64  `json:"weighted_deduction"`
	ViolationReason   string   `json:"violation_reason"`
}

// UnitAnalysisResult is the scored outcome for one unit, stored inside the
// audit record in detection order.
type UnitAnalysisResult struct {
	UnitID           string       `json:"unit_id"`
	UnitIndex        int          `json:"unit_index"`
	ContentPreview   string       `json:"content_preview"`
	Score            float64      `json:"score"`
	TokenCount       int          `json:"token_count"`
	Metadata         UnitMetadata `json:"metadata"`
	RelevanceContext string       `json:"relevance_context"`
	RuleImpacts      []RuleImpact `json:"rule_impacts"`
}

type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

// DeepAnalysisRecord is the persisted audit artifact for one analysis run:
// the exact weights used, the full per-unit ledger, and summary stats.
// At most one record exists per compliance check.
type DeepAnalysisRecord struct {
	ID             string
	CheckID        string
	TotalUnits     int
	AverageScore   float64
	MinScore       float64
	MaxScore       float64
	DocumentTitle  string
	WeightSnapshot SeverityWeights
	Status         AnalysisStatus
	Results        []UnitAnalysisResult
	CreatedAt      time.Time
}

type ComplianceCheck struct {
	ID              string
	SubmissionID    string
	OverallScore    float64
	RegulatoryScore float64
	BrandScore      float64
	SEOScore        float64
	Status          string // passed|flagged|failed
	Grade           string // A..F
	AISummary       string
	CheckDate       time.Time
}

// Finding is an itemized violation attached to a compliance check. After
// promotion these are re-derived from the deep analysis ledger.
type Finding struct {
	ID            string
	CheckID       string
	RuleID        *string
	Severity      Severity
	Category      Category
	Description   string
	Location      string
	CurrentText   string
	SuggestedFix  string
	IsAutoFixable bool
}
