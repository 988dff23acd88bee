// Package classification implements the query classification engine.
//
// Pipeline:
//
//	Stage 0: Result Cache  → validated AI results keyed by text hash
//	Stage 1: AI Classifier → structured output from the external model
//	Stage 2: Fallback      → deterministic keyword/pattern scoring
//
// The fallback stage always produces a result, so Classify never fails.
package classification

import (
	"query_router/core/domain"
)

// MaxLearnedKeywordsPerIntent caps how many learned keywords an overlay adds.
const MaxLearnedKeywordsPerIntent = 10

// =============================================================================
// Keyword Ruleset (static)
// =============================================================================

// Ruleset is the immutable intent→keyword and intent→team table.
type Ruleset struct {
	keywords map[domain.Intent][]string
	teams    map[domain.Intent]string
}

// DefaultRuleset returns the built-in keyword table.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		keywords: map[domain.Intent][]string{
			domain.IntentKYCVerification: {
				"account verification", "identity check", "kyc", "document upload",
				"verification stuck", "pending verification", "id verification",
			},
			domain.IntentTechnicalSupport: {
				"api error", "integration", "webhook", "error code", "technical issue",
				"500 error", "403 error", "404 error", "timeout", "rate limit", "sdk",
			},
			domain.IntentBillingFinance: {
				"invoice", "billing", "charge", "payment", "refund", "subscription",
				"pricing", "cost", "fee", "balance", "transaction",
			},
			domain.IntentComplianceRegulatory: {
				"compliance", "gdpr", "pci dss", "soc 2", "audit", "regulation",
				"data protection", "privacy", "security certificate", "certification",
			},
			domain.IntentSalesInquiry: {
				"demo", "pricing plan", "enterprise", "partnership", "white label",
				"new customer", "signup", "trial", "features",
			},
			domain.IntentGeneralSupport: {
				"help", "how to", "question", "information", "documentation", "guide",
			},
		},
		teams: map[domain.Intent]string{
			domain.IntentKYCVerification:      domain.TeamKYC,
			domain.IntentTechnicalSupport:     domain.TeamTechSupport,
			domain.IntentBillingFinance:       domain.TeamFinance,
			domain.IntentComplianceRegulatory: domain.TeamCompliance,
			domain.IntentSalesInquiry:         domain.TeamSales,
			domain.IntentGeneralSupport:       domain.TeamTechSupport,
		},
	}
}

// Keywords returns a copy of the static keywords for an intent.
func (r *Ruleset) Keywords(intent domain.Intent) []string {
	kw := r.keywords[intent]
	out := make([]string, len(kw))
	copy(out, kw)
	return out
}

// HasKeyword reports whether the keyword is part of the static set for intent.
func (r *Ruleset) HasKeyword(intent domain.Intent, keyword string) bool {
	for _, k := range r.keywords[intent] {
		if k == keyword {
			return true
		}
	}
	return false
}

// DefaultTeam returns the static team for an intent, Tech Support when unmapped.
func (r *Ruleset) DefaultTeam(intent domain.Intent) string {
	if team, ok := r.teams[intent]; ok {
		return team
	}
	return domain.TeamTechSupport
}

// =============================================================================
// Learned Overlay
// =============================================================================

// Overlay is a snapshot of learned keywords and team overrides. It is never
// mutated after construction; refresh builds a new one.
type Overlay struct {
	keywords map[domain.Intent][]string
	teams    map[domain.Intent]string
}

// EmptyOverlay has no learned data.
func EmptyOverlay() *Overlay {
	return &Overlay{
		keywords: map[domain.Intent][]string{},
		teams:    map[domain.Intent]string{},
	}
}

// NewOverlay merges learned data against the ruleset: per intent, up to
// MaxLearnedKeywordsPerIntent keywords that are not already static, in the
// order given.
func (r *Ruleset) NewOverlay(learnedKeywords map[domain.Intent][]string, learnedTeams map[domain.Intent]string) *Overlay {
	o := EmptyOverlay()
	for intent, words := range learnedKeywords {
		seen := make(map[string]struct{}, len(words))
		var added []string
		for _, w := range words {
			if len(added) >= MaxLearnedKeywordsPerIntent {
				break
			}
			if w == "" || r.HasKeyword(intent, w) {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			added = append(added, w)
		}
		if len(added) > 0 {
			o.keywords[intent] = added
		}
	}
	for intent, team := range learnedTeams {
		if team != "" {
			o.teams[intent] = team
		}
	}
	return o
}

// LearnedKeywords returns the learned keywords for an intent.
func (o *Overlay) LearnedKeywords(intent domain.Intent) []string {
	if o == nil {
		return nil
	}
	return o.keywords[intent]
}

// LearnedTeam returns the learned team override, if any.
func (o *Overlay) LearnedTeam(intent domain.Intent) (string, bool) {
	if o == nil {
		return "", false
	}
	team, ok := o.teams[intent]
	return team, ok
}

// Size returns the number of learned keywords and team overrides.
func (o *Overlay) Size() (keywords, teams int) {
	if o == nil {
		return 0, 0
	}
	for _, kw := range o.keywords {
		keywords += len(kw)
	}
	return keywords, len(o.teams)
}

// keywordsFor returns static keywords followed by learned ones.
func (r *Ruleset) keywordsFor(intent domain.Intent, o *Overlay) []string {
	static := r.keywords[intent]
	learned := o.LearnedKeywords(intent)
	if len(learned) == 0 {
		return static
	}
	all := make([]string, 0, len(static)+len(learned))
	all = append(all, static...)
	return append(all, learned...)
}

// teamFor resolves the assigned team: learned override first, then default.
func (r *Ruleset) teamFor(intent domain.Intent, o *Overlay) string {
	if team, ok := o.LearnedTeam(intent); ok {
		return team
	}
	return r.DefaultTeam(intent)
}
