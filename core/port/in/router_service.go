package in

import (
	"context"
	"time"

	"query_router/core/domain"
)

// ProcessRequest is one inbound message.
type ProcessRequest struct {
	Channel       domain.Channel `json:"channel"`
	Message       string         `json:"message"`
	Sender        *string        `json:"sender,omitempty"`
	Subject       *string        `json:"subject,omitempty"`
	AutoRespond   bool           `json:"auto_respond"`
	ExtraMetadata map[string]any `json:"extra_metadata,omitempty"`
}

// ProcessResult is returned for every successfully persisted ticket.
type ProcessResult struct {
	TicketID       string                       `json:"ticket_id"`
	Channel        domain.Channel               `json:"channel"`
	Classification *domain.ClassificationResult `json:"classification"`
	Routing        *domain.RoutingDecision      `json:"routing"`
	Response       *string                      `json:"response"`
	Escalation     *domain.Escalation           `json:"escalation"`
	Status         string                       `json:"status"`
}

// BatchItemResult holds either a result or the error and the offending input.
type BatchItemResult struct {
	Result *ProcessResult  `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Query  *ProcessRequest `json:"query,omitempty"`
}

// DashboardStats combines ticket, learning and pipeline latency figures.
type DashboardStats struct {
	Tickets  *domain.TicketStats   `json:"tickets"`
	Learning *domain.LearningStats `json:"learning"`
	Latency  map[string]float64    `json:"latency_ms"`
}

// RouterService is the entry point used by outer surfaces.
type RouterService interface {
	Process(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	// Batch never fails as a whole; each item carries its own outcome.
	Batch(ctx context.Context, reqs []*ProcessRequest) []*BatchItemResult
	TicketDetails(ctx context.Context, ticketID string) (*domain.TicketDetails, error)
	DashboardStats(ctx context.Context) (*DashboardStats, error)
}

// TicketService exposes lifecycle operations on stored tickets.
type TicketService interface {
	Get(ctx context.Context, ticketID string) (*domain.Ticket, error)
	List(ctx context.Context, filter *domain.TicketFilter) ([]*domain.Ticket, error)
	UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus, notes string) error
	Reassign(ctx context.Context, ticketID, newTeam, reason string) error
	AttachResponse(ctx context.Context, ticketID, response string) error
	Delete(ctx context.Context, ticketID string) error
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
	Stats(ctx context.Context) (*domain.TicketStats, error)
	Teams(ctx context.Context) ([]*domain.Team, error)
}

// AnalysisReport summarizes one analysis pass.
type AnalysisReport struct {
	TicketsScanned    int           `json:"tickets_scanned"`
	TicketsReassigned int           `json:"tickets_reassigned"`
	TeamPatterns      int           `json:"team_patterns"`
	KeywordPatterns   int           `json:"keyword_patterns"`
	Duration          time.Duration `json:"duration"`
}

// LearningService exposes the learning engine.
type LearningService interface {
	LearnFromTicket(ctx context.Context, ticket *domain.Ticket) error
	LearnFromReassignment(ctx context.Context, ticketID, originalTeam, newTeam, originalIntent, reason string) error
	AnalyzeAndUpdatePatterns(ctx context.Context) (*AnalysisReport, error)
	GetLearnedKeywordsForIntent(ctx context.Context, intent domain.Intent) ([]string, error)
	GetLearnedTeamForIntent(ctx context.Context, intent domain.Intent) (string, bool, error)
	Stats(ctx context.Context) (*domain.LearningStats, error)
	Patterns(ctx context.Context, patternType domain.PatternType) ([]*domain.LearningPattern, error)
}
