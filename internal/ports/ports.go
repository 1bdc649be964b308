package ports

import (
	"context"

	"redline/internal/domain"
)

// DetectResult is what the violation detector returns for one unit.
// Degraded is set when the transport exhausted its retries and the fixed
// fallback payload was substituted; a degraded result is normal data, not
// an error, so a single unit's failure never aborts a run.
type DetectResult struct {
	RelevanceContext string
	Violations       []domain.DetectedViolation
	Degraded         bool
}

// Detector wraps the external non-deterministic classifier. Detect must
// not return an error for transport or parse failures; it degrades instead.
type Detector interface {
	Detect(ctx context.Context, unitText string, position int, documentLabel string, rules []domain.Rule) DetectResult
	HealthCheck(ctx context.Context) error
}

// TextGenerator is the raw prompt-in/text-out surface of the LLM, used by
// the rule matcher. Unlike Detect, errors are surfaced to the caller.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// RuleMatcher resolves a free-text finding to a canonical rule identity.
// A nil id with a nil error means "no match"; the finding stays unlinked.
type RuleMatcher interface {
	Match(ctx context.Context, description string, category domain.Category, severity domain.Severity) (*string, error)
}

// ProgressEvent is one ordered streaming update for a live caller.
type ProgressEvent struct {
	Status        string        `json:"status"` // started|processing|classified|complete|error
	Progress      float64       `json:"progress,omitempty"`
	CurrentIndex  int           `json:"current_index,omitempty"`
	TotalUnits    int           `json:"total_units"`
	DocumentTitle string        `json:"document_title,omitempty"`
	CurrentUnit   *UnitPreview  `json:"current_unit,omitempty"`
	LastResult    *ScoredResult `json:"last_result,omitempty"`
	AverageScore  float64       `json:"average_score,omitempty"`
	MinScore      float64       `json:"min_score,omitempty"`
	MaxScore      float64       `json:"max_score,omitempty"`
	Message       string        `json:"message,omitempty"`
}

type UnitPreview struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

type ScoredResult struct {
	Index            int     `json:"index"`
	Content          string  `json:"content"`
	Score            float64 `json:"score"`
	RelevanceContext string  `json:"relevance_context"`
	ViolationsCount  int     `json:"violations_count"`
}

// ProgressSink receives ordered events during a streaming run. Emission is
// fire-and-forget: implementations must not block the run indefinitely and
// the orchestrator ignores emit failures.
type ProgressSink interface {
	Emit(event ProgressEvent)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(ProgressEvent)

func (f SinkFunc) Emit(e ProgressEvent) { f(e) }
