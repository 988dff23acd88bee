package classification

import (
	"regexp"
	"strings"

	"query_router/core/domain"
)

// MaxKeyEntities caps the entities reported by the fallback extractor.
const MaxKeyEntities = 5

// =============================================================================
// Entity Extraction
// =============================================================================

var (
	errorCodePattern = regexp.MustCompile(`\b\d{3}\b`)
	amountPattern    = regexp.MustCompile(`(?i)\$?\d+\.?\d*\s*(?:dollars?|USD)?`)
	datePattern      = regexp.MustCompile(`\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{1,2}`)
)

// ErrorCodePrefix tags 3-digit tokens in the entity list.
const ErrorCodePrefix = "error_"

// ExtractEntities returns error codes, amounts and dates, in that order,
// capped at MaxKeyEntities. Duplicates are kept.
func ExtractEntities(text string) []string {
	entities := make([]string, 0, MaxKeyEntities)

	for _, code := range errorCodePattern.FindAllString(text, -1) {
		entities = append(entities, ErrorCodePrefix+code)
	}
	for _, amount := range amountPattern.FindAllString(text, -1) {
		if a := strings.TrimSpace(amount); a != "" {
			entities = append(entities, a)
		}
	}
	entities = append(entities, datePattern.FindAllString(strings.ToLower(text), -1)...)

	if len(entities) > MaxKeyEntities {
		entities = entities[:MaxKeyEntities]
	}
	return entities
}

// =============================================================================
// Sentiment
// =============================================================================

var (
	urgentWords   = []string{"urgent", "critical", "emergency", "immediately", "asap", "blocked", "down"}
	negativeWords = []string{"error", "failed", "stuck", "problem", "issue", "dispute", "wrong", "incorrect", "can't", "unable"}
	positiveWords = []string{"thanks", "thank you", "great", "helpful", "appreciate"}
)

// DetectSentiment checks urgent, then negative, then positive word lists
// against lower-cased text.
func DetectSentiment(lower string) domain.Sentiment {
	switch {
	case containsAny(lower, urgentWords):
		return domain.SentimentUrgent
	case containsAny(lower, negativeWords):
		return domain.SentimentNegative
	case containsAny(lower, positiveWords):
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}

// =============================================================================
// Urgency
// =============================================================================

var criticalPatterns = mustCompileAll(
	`\b(?:down|not working|completely|totally|entirely)\s+(?:down|broken|failed)`,
	`\b(?:emergency|critical|urgent)\s+(?:issue|problem|situation)`,
	`\b(?:security|breach|leak|hack)`,
	`\b(?:blocked|blocking)\s+(?:all|everything|operations|business)`,
)

var highPatterns = mustCompileAll(
	// failure word followed, within the same sentence, by a duration
	`\b(?:error|failing|failed|stuck|delayed)\b[^.!?]{0,30}?\b(?:for|since)\s+\d+`,
	`\b(?:failing|failed)\s+with\s+(?:an?\s+)?error\b`,
	`\b(?:affecting|blocking|preventing)\s+(?:operations|business|transactions)`,
	`\b(?:dispute|discrepancy|wrong charge|incorrect billing)`,
	`\b(?:can't|cannot|unable)\s+(?:process|complete|access|verify)`,
)

var lowPatterns = mustCompileAll(
	`\b(?:just wondering|curious|feedback|suggestion)`,
	`\b(?:information|info|question)\s+(?:about|regarding)`,
	`\b(?:how do|where can|can you tell)`,
)

// DetectUrgency applies the critical, high and low tiers in order and
// defaults to medium.
func DetectUrgency(lower string) domain.Urgency {
	switch {
	case matchesAny(lower, criticalPatterns):
		return domain.UrgencyCritical
	case matchesAny(lower, highPatterns):
		return domain.UrgencyHigh
	case matchesAny(lower, lowPatterns):
		return domain.UrgencyLow
	default:
		return domain.UrgencyMedium
	}
}

// =============================================================================
// Dispute Override
// =============================================================================

var disputeWords = []string{"dispute", "discrepancy", "wrong charge", "incorrect billing", "billing error"}

// DisputeScore is the initial compliance score when a dispute word is present.
const DisputeScore = 10

// IsDispute reports whether lower-cased text mentions a billing dispute.
func IsDispute(lower string) bool {
	return containsAny(lower, disputeWords)
}

// =============================================================================
// Helpers
// =============================================================================

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func mustCompileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}
