package classification

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"query_router/core/domain"
)

const (
	containmentScore    = 2
	wordBoundaryScore   = 1
	contextualBonus     = 3
	minFallbackConf     = 0.5
	maxFallbackConf     = 0.85
	confidencePerPoint  = 0.05
	defaultFallbackConf = 0.5
)

// contextual co-occurrence patterns; up to two words may sit between the
// noun and the status word.
var contextualPatterns = map[domain.Intent]*regexp.Regexp{
	domain.IntentKYCVerification:  regexp.MustCompile(`\b(?:verify|verification|kyc|document)\b(?:\s+\S+){0,2}?\s+(?:stuck|pending|failed|issue)`),
	domain.IntentTechnicalSupport: regexp.MustCompile(`\b(?:api|webhook|integration|sdk)\b(?:\s+\S+){0,2}?\s+(?:error|failing|not working)`),
	domain.IntentBillingFinance:   regexp.MustCompile(`\b(?:invoice|payment|charge|refund|billing)\b(?:\s+\S+){0,2}?\s+(?:question|issue|problem)`),
}

// FallbackClassifier is the deterministic keyword/pattern classifier.
// It is safe for concurrent use.
type FallbackClassifier struct {
	rules *Ruleset

	mu      sync.RWMutex
	loosely map[string]*regexp.Regexp
}

// NewFallbackClassifier creates a classifier over the given ruleset.
func NewFallbackClassifier(rules *Ruleset) *FallbackClassifier {
	if rules == nil {
		rules = DefaultRuleset()
	}
	return &FallbackClassifier{
		rules:   rules,
		loosely: make(map[string]*regexp.Regexp),
	}
}

// Classify scores text against the ruleset extended by the overlay.
func (f *FallbackClassifier) Classify(text string, overlay *Overlay) *domain.ClassificationResult {
	lower := strings.ToLower(text)

	entities := ExtractEntities(text)
	sentiment := DetectSentiment(lower)
	urgency := DetectUrgency(lower)

	dispute := IsDispute(lower)
	if dispute && urgency != domain.UrgencyCritical {
		urgency = domain.UrgencyHigh
	}

	scores := make(map[domain.Intent]int, len(domain.Intents))
	for _, intent := range domain.Intents {
		scores[intent] = f.score(intent, lower, overlay)
	}
	if dispute {
		scores[domain.IntentComplianceRegulatory] += DisputeScore
	}

	intent, best := domain.IntentGeneralSupport, 0
	if dispute {
		intent, best = domain.IntentComplianceRegulatory, scores[domain.IntentComplianceRegulatory]
	} else {
		for _, candidate := range domain.Intents {
			if scores[candidate] > best {
				intent, best = candidate, scores[candidate]
			}
		}
	}

	confidence := defaultFallbackConf
	if best > 0 {
		confidence = scoreConfidence(best)
	}

	return &domain.ClassificationResult{
		Intent:       intent,
		Urgency:      urgency,
		Confidence:   confidence,
		Sentiment:    sentiment,
		KeyEntities:  entities,
		Reasoning:    fallbackReasoning(intent, entities, sentiment),
		AssignedTeam: f.rules.teamFor(intent, overlay),
		Method:       domain.MethodFallback,
	}
}

func (f *FallbackClassifier) score(intent domain.Intent, lower string, overlay *Overlay) int {
	score := 0
	for _, kw := range f.rules.keywordsFor(intent, overlay) {
		if strings.Contains(lower, kw) {
			score += containmentScore
		} else if f.wordPattern(kw).MatchString(lower) {
			score += wordBoundaryScore
		}
	}
	if p, ok := contextualPatterns[intent]; ok && p.MatchString(lower) {
		score += contextualBonus
	}
	return score
}

// wordPattern matches a multi-word keyword whose words are separated by
// arbitrary whitespace, e.g. "api\n  error" for "api error".
func (f *FallbackClassifier) wordPattern(keyword string) *regexp.Regexp {
	f.mu.RLock()
	p, ok := f.loosely[keyword]
	f.mu.RUnlock()
	if ok {
		return p
	}

	words := strings.Fields(keyword)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	p = regexp.MustCompile(`\b` + strings.Join(words, `\s+`) + `\b`)

	f.mu.Lock()
	f.loosely[keyword] = p
	f.mu.Unlock()
	return p
}

func scoreConfidence(score int) float64 {
	c := minFallbackConf + confidencePerPoint*float64(score)
	if c > maxFallbackConf {
		return maxFallbackConf
	}
	return c
}

func fallbackReasoning(intent domain.Intent, entities []string, sentiment domain.Sentiment) string {
	parts := []string{fmt.Sprintf("Classified as '%s' using keyword matching", intent)}
	if len(entities) > 0 {
		n := len(entities)
		if n > 3 {
			n = 3
		}
		parts = append(parts, "Detected entities: "+strings.Join(entities[:n], ", "))
	}
	parts = append(parts, fmt.Sprintf("Sentiment: %s, Urgency determined by context analysis", sentiment))
	return strings.Join(parts, ". ")
}
