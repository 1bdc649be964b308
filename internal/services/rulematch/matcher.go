// Package rulematch resolves free-text findings to canonical rule
// identities using LLM semantic similarity. Matching is best-effort: every
// failure path reports "no match" so promotion can proceed with the
// finding left unlinked.
package rulematch

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"sync"

	"redline/internal/domain"
	"redline/internal/ports"
)

// confidenceThreshold is the minimum confidence for accepting a match.
const confidenceThreshold = 0.7

const DefaultCacheSize = 512

type Matcher struct {
	rules ports.RuleRepository
	llm   ports.TextGenerator

	mu    sync.Mutex
	cache *lruCache
}

func New(rules ports.RuleRepository, llm ports.TextGenerator, cacheSize int) *Matcher {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Matcher{rules: rules, llm: llm, cache: newLRUCache(cacheSize)}
}

// Match returns the id of the best matching rule for the described
// violation, or nil when no rule clears the confidence threshold.
func (m *Matcher) Match(ctx context.Context, description string, category domain.Category, severity domain.Severity) (*string, error) {
	key := cacheKey(description, category, severity)

	m.mu.Lock()
	if cached, ok := m.cache.Get(key); ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	ruleID := m.matchUncached(ctx, description, category, severity)

	m.mu.Lock()
	m.cache.Put(key, ruleID)
	m.mu.Unlock()
	return ruleID, nil
}

func (m *Matcher) matchUncached(ctx context.Context, description string, category domain.Category, severity domain.Severity) *string {
	rules, err := m.rules.ListByCategory(ctx, category)
	if err != nil || len(rules) == 0 {
		if err != nil {
			log.Printf("rule match: listing %s rules: %v", category, err)
		}
		return nil
	}

	system, user := buildMatchingPrompt(description, category, severity, rules)
	raw, err := m.llm.Generate(ctx, system, user)
	if err != nil {
		log.Printf("rule match: llm call failed: %v", err)
		return nil
	}

	idx, confidence := parseMatchResponse(raw)
	if idx < 0 || idx >= len(rules) || confidence < confidenceThreshold {
		return nil
	}
	id := rules[idx].ID
	return &id
}

func cacheKey(description string, category domain.Category, severity domain.Severity) string {
	h := fnv.New64a()
	h.Write([]byte(description))
	return fmt.Sprintf("%s:%s:%x", category, severity, h.Sum64())
}

func buildMatchingPrompt(description string, category domain.Category, severity domain.Severity, rules []domain.Rule) (string, string) {
	system := `You are a compliance rule matching expert. Your task is to find the BEST matching rule for a given violation based on semantic similarity.

Consider:
1. Topic and subject matter similarity
2. Regulatory domain alignment
3. Violation type match
4. Severity level appropriateness

Respond ONLY with valid JSON, no additional text.`

	var b strings.Builder
	fmt.Fprintf(&b, "Match this violation to the most similar rule:\n\n")
	fmt.Fprintf(&b, "VIOLATION TO MATCH:\nDescription: %q\nCategory: %s\nSeverity: %s\n\n", description, category, severity)
	b.WriteString("AVAILABLE RULES IN DATABASE:\n")
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. %q (Severity: %s, Points: %.2f)\n", i, r.RuleText, r.Severity, r.PointsDeduction)
	}
	b.WriteString(`
Respond with JSON in this exact format:
{
  "matched_rule_index": <index number or null>,
  "confidence": <number between 0.0 and 1.0>,
  "reasoning": "<brief explanation>"
}

If no rule is semantically similar (confidence < 0.7), set matched_rule_index to null.`)

	return system, b.String()
}

// parseMatchResponse extracts the matched index and confidence from a raw
// completion. Returns index -1 when there is no usable match.
func parseMatchResponse(raw string) (int, float64) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "```json"); i >= 0 {
		raw = raw[i+len("```json"):]
		if j := strings.Index(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	} else if i := strings.Index(raw, "```"); i >= 0 {
		raw = raw[i+3:]
		if j := strings.Index(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}

	var payload struct {
		MatchedRuleIndex *int    `json:"matched_rule_index"`
		Confidence       float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return -1, 0
	}
	if payload.MatchedRuleIndex == nil {
		return -1, payload.Confidence
	}
	return *payload.MatchedRuleIndex, payload.Confidence
}

var _ ports.RuleMatcher = (*Matcher)(nil)
