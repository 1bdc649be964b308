package ollama

import (
	"fmt"
	"strings"

	"redline/internal/domain"
)

// The detection prompt restricts the model to violation identification and
// relevance context. Score calculation stays on our side.
const detectionSystemPrompt = `You are a compliance analysis agent for regulated marketing content.

YOUR TASK: Analyze a single segment of text and identify any compliance rule violations.

OUTPUT REQUIREMENTS:
1. Determine if any of the provided rules are violated
2. Explain the relevance/context of this segment
3. Output ONLY valid JSON - no other text

OUTPUT FORMAT (strict JSON):
{
    "relevance_context": "Brief description of what this segment is about and why it matters for compliance",
    "violations": [
        {
            "rule_id": "the-rule-uuid-that-was-violated",
            "rule_text": "the full text of the violated rule",
            "category": "regulatory|brand|seo",
            "severity": "critical|high|medium|low",
            "reason": "specific explanation of HOW this segment violates the rule"
        }
    ]
}

RULES:
1. If no violations are found, return an empty violations array: {"relevance_context": "...", "violations": []}
2. Be precise - only flag actual violations, not potential ones
3. The relevance_context should explain what the segment is about (e.g., "pricing claim", "benefit description", "disclaimer")
4. Do NOT calculate scores - only identify violations
5. Output ONLY the JSON object, nothing else before or after`

func buildDetectionPrompt(unitText string, position int, documentLabel string, rules []domain.Rule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this segment from a marketing document:\n\n")
	fmt.Fprintf(&b, "DOCUMENT CONTEXT: %s\n", documentLabel)
	fmt.Fprintf(&b, "SEGMENT POSITION: %d\n", position)
	fmt.Fprintf(&b, "SEGMENT CONTENT: %q\n\n", unitText)
	b.WriteString("ACTIVE COMPLIANCE RULES TO CHECK:\n")
	b.WriteString(formatRules(rules))
	b.WriteString("\n\nAnalyze the segment and output JSON with violations (if any) and relevance context.")
	return b.String()
}

func formatRules(rules []domain.Rule) string {
	if len(rules) == 0 {
		return "No active rules configured."
	}
	parts := make([]string, 0, len(rules))
	for i, r := range rules {
		parts = append(parts, fmt.Sprintf("%d. [ID: %s] [%s] [%s]\n   Rule: %s\n   Keywords: %s",
			i+1, r.ID,
			strings.ToUpper(string(r.Category)),
			strings.ToUpper(string(r.Severity)),
			r.RuleText,
			strings.Join(r.Keywords, ", ")))
	}
	return strings.Join(parts, "\n\n")
}
