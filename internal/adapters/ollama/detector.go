package ollama

import (
	"context"
	"log"

	"redline/internal/domain"
	"redline/internal/ports"
)

const unavailableContext = "AI analysis service temporarily unavailable"

// Detect runs one detection call for a unit. Transport and parse failures
// degrade to an empty result: one unit's failure must not abort the whole
// document's analysis, so this method never returns an error.
func (c *Client) Detect(ctx context.Context, unitText string, position int, documentLabel string, rules []domain.Rule) ports.DetectResult {
	raw, err := c.Generate(ctx, detectionSystemPrompt, buildDetectionPrompt(unitText, position, documentLabel, rules))
	if err != nil {
		log.Printf("detector degraded for segment %d: %v", position, err)
		return ports.DetectResult{RelevanceContext: unavailableContext, Degraded: true}
	}

	relevance, violations := parseDetection(raw)
	return ports.DetectResult{RelevanceContext: relevance, Violations: violations}
}

var _ ports.Detector = (*Client)(nil)
var _ ports.TextGenerator = (*Client)(nil)
