package out

import (
	"context"
	"time"

	"query_router/core/domain"
)

// AIClassification is the raw structured output of the external classifier.
// Fields are unvalidated; Confidence is nil when the model omitted it.
type AIClassification struct {
	Intent      string   `json:"intent"`
	Urgency     string   `json:"urgency"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Sentiment   string   `json:"sentiment"`
	KeyEntities []string `json:"key_entities"`
	Reasoning   string   `json:"reasoning"`
}

// AIClassifier turns message text into a structured classification.
type AIClassifier interface {
	ClassifyQuery(ctx context.Context, text string) (*AIClassification, error)
}

// DraftRequest carries everything the drafter may use. Routing has already
// run, so AssignedTeam and ResponseTime are final.
type DraftRequest struct {
	Message      string
	Intent       domain.Intent
	Urgency      domain.Urgency
	CustomerName string
	Reasoning    string
	KeyEntities  []string
	Sentiment    domain.Sentiment
	AssignedTeam string
	ResponseTime string
}

// Draft is stored verbatim on the ticket.
type Draft struct {
	Response      string   `json:"response"`
	Method        string   `json:"method"`
	TemplatesUsed []string `json:"templates_used,omitempty"`
}

// ResponseDrafter produces a reply draft.
type ResponseDrafter interface {
	DraftResponse(ctx context.Context, req *DraftRequest) (*Draft, error)
}

// ClassificationCache stores validated AI classifications keyed by text hash.
// Get returns (nil, nil) on a miss.
type ClassificationCache interface {
	Get(ctx context.Context, key string) (*domain.ClassificationResult, error)
	Set(ctx context.Context, key string, result *domain.ClassificationResult, ttl time.Duration) error
}
