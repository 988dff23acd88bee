package classification

import (
	"errors"
	"fmt"

	"query_router/core/domain"
	"query_router/core/port/out"
)

const (
	defaultAIConfidence = 0.8
	defaultAIReasoning  = "Classified based on message content"
)

var errMissingField = errors.New("missing required field")

// validateAI turns raw model output into a result, or reports why it cannot
// be used. AssignedTeam and Method are left for the caller.
func validateAI(raw *out.AIClassification) (*domain.ClassificationResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("empty classification: %w", errMissingField)
	}
	if raw.Intent == "" {
		return nil, fmt.Errorf("intent: %w", errMissingField)
	}
	if raw.Urgency == "" {
		return nil, fmt.Errorf("urgency: %w", errMissingField)
	}

	intent := domain.Intent(raw.Intent)
	if !intent.IsValid() {
		return nil, fmt.Errorf("unknown intent %q", raw.Intent)
	}

	urgency := domain.Urgency(raw.Urgency)
	if !urgency.IsValid() {
		urgency = domain.UrgencyMedium
	}

	confidence := defaultAIConfidence
	if raw.Confidence != nil {
		confidence = clamp01(*raw.Confidence)
	}

	sentiment := domain.Sentiment(raw.Sentiment)
	if !sentiment.IsValid() {
		sentiment = domain.SentimentNeutral
	}

	reasoning := raw.Reasoning
	if reasoning == "" {
		reasoning = defaultAIReasoning
	}

	entities := raw.KeyEntities
	if entities == nil {
		entities = []string{}
	}

	return &domain.ClassificationResult{
		Intent:      intent,
		Urgency:     urgency,
		Confidence:  confidence,
		Sentiment:   sentiment,
		KeyEntities: entities,
		Reasoning:   reasoning,
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
