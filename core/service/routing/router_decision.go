package routing

import (
	"fmt"
	"regexp"
	"strings"

	"query_router/core/domain"
)

// DecisionInput is everything the router looks at.
type DecisionInput struct {
	Intent       domain.Intent
	Urgency      domain.Urgency
	Confidence   float64
	AssignedTeam string
	Sentiment    domain.Sentiment
	KeyEntities  []string
}

// InputFrom adapts a classification result.
func InputFrom(c *domain.ClassificationResult) DecisionInput {
	return DecisionInput{
		Intent:       c.Intent,
		Urgency:      c.Urgency,
		Confidence:   c.Confidence,
		AssignedTeam: c.AssignedTeam,
		Sentiment:    c.Sentiment,
		KeyEntities:  c.KeyEntities,
	}
}

var (
	criticalEntityMarkers = []string{"error_", "security", "breach", "down", "blocked"}
	disputeEntityMarkers  = []string{"dispute", "discrepancy", "wrong", "incorrect", "error"}

	// error_<code> tags are produced by the entity extractor, not the customer.
	errorCodeTag = regexp.MustCompile(`\berror_\d{3}\b`)
)

// Decide applies, in order: sentiment urgency adjustment, escalation lookup,
// the triage gate, additional teams and final team overrides. The triage
// gate always wins.
func Decide(in DecisionInput) *domain.RoutingDecision {
	entities := strings.ToLower(strings.Join(in.KeyEntities, " "))

	urgency := in.Urgency
	switch {
	case in.Sentiment == domain.SentimentUrgent && urgency == domain.UrgencyMedium:
		urgency = domain.UrgencyHigh
	case in.Sentiment == domain.SentimentNegative && urgency == domain.UrgencyHigh:
		if containsAny(entities, criticalEntityMarkers) {
			urgency = domain.UrgencyCritical
		}
	}

	policy := PolicyFor(urgency)
	needsReview := in.Confidence < TriageThreshold
	escalate := urgency == domain.UrgencyCritical || urgency == domain.UrgencyHigh ||
		needsReview || policy.AutoEscalate

	additional := []string{}
	switch {
	case in.Intent == domain.IntentTechnicalSupport && urgency == domain.UrgencyCritical:
		additional = append(additional, domain.TeamTechLead)
	case in.Intent == domain.IntentComplianceRegulatory:
		additional = append(additional, domain.TeamLegal)
	}

	final := in.AssignedTeam
	if in.Intent == domain.IntentBillingFinance {
		customerEntities := errorCodeTag.ReplaceAllString(entities, "")
		if containsAny(customerEntities, disputeEntityMarkers) {
			final = domain.TeamCompliance
		}
		if in.Sentiment == domain.SentimentNegative || in.Sentiment == domain.SentimentUrgent {
			final = domain.TeamCompliance
		}
	}
	if needsReview {
		final = domain.TeamTriage
	}

	return &domain.RoutingDecision{
		FinalTeam:       final,
		PrimaryTeam:     in.AssignedTeam,
		AdditionalTeams: additional,
		Escalate:        escalate,
		NeedsReview:     needsReview,
		ResponseTime:    policy.ResponseTime,
		Notify:          policy.Notify,
		Urgency:         urgency,
		Reasoning:       reasoning(in.Intent, urgency, in.Confidence, needsReview),
	}
}

func reasoning(intent domain.Intent, urgency domain.Urgency, confidence float64, needsReview bool) string {
	reasons := []string{
		fmt.Sprintf("Intent classified as '%s' with %.0f%% confidence", intent, confidence*100),
		fmt.Sprintf("Urgency level: %s", urgency),
	}
	if needsReview {
		reasons = append(reasons, "Low confidence - routing to triage for manual review")
	}
	switch urgency {
	case domain.UrgencyCritical:
		reasons = append(reasons, "Critical urgency - immediate attention required")
	case domain.UrgencyHigh:
		reasons = append(reasons, "High urgency - priority handling needed")
	}
	return strings.Join(reasons, ". ")
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
