package ollama

import (
	"encoding/json"
	"strings"

	"redline/internal/domain"
)

// detectionPayload mirrors the JSON the model is asked to produce.
type detectionPayload struct {
	RelevanceContext string             `json:"relevance_context"`
	Violations       []violationPayload `json:"violations"`
}

type violationPayload struct {
	RuleID   string `json:"rule_id"`
	RuleText string `json:"rule_text"`
	Category string `json:"category"`
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
}

const unparsableContext = "Unable to analyze this segment"

// parseDetection extracts the detection payload from a raw completion.
// Models routinely wrap JSON in code fences or surround it with prose, so
// we strip fences, locate the first balanced JSON object, and substitute
// defaults for missing keys. Parse failures never reach the caller: the
// worst case is an empty, neutral payload.
func parseDetection(raw string) (string, []domain.DetectedViolation) {
	body := extractJSONObject(raw)
	if body == "" {
		return unparsableContext, nil
	}

	var payload detectionPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return unparsableContext, nil
	}
	if payload.RelevanceContext == "" {
		payload.RelevanceContext = "Context not provided"
	}

	violations := make([]domain.DetectedViolation, 0, len(payload.Violations))
	for _, v := range payload.Violations {
		violations = append(violations, domain.DetectedViolation{
			RuleID:   v.RuleID,
			RuleText: v.RuleText,
			Category: domain.Category(strings.ToLower(strings.TrimSpace(v.Category))),
			Severity: domain.Severity(strings.ToLower(strings.TrimSpace(v.Severity))).Normalize(),
			Reason:   v.Reason,
		})
	}
	return payload.RelevanceContext, violations
}

// extractJSONObject returns the first balanced top-level JSON object in s,
// tolerating markdown code fences and text before or after the payload.
func extractJSONObject(s string) string {
	s = stripCodeFence(s)

	depth := 0
	start := -1
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
	} else {
		return s
	}
	if j := strings.Index(s, "```"); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}
