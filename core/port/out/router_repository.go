package out

import (
	"context"
	"time"

	"query_router/core/domain"
)

// TicketRepository persists tickets. GetByID returns (nil, nil) when the
// ticket does not exist.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// CreateWithEvents writes the ticket and its initial events atomically:
	// on error neither the ticket nor any event is stored.
	CreateWithEvents(ctx context.Context, ticket *domain.Ticket, events []*domain.RoutingEvent) error
	GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error)
	List(ctx context.Context, filter *domain.TicketFilter) ([]*domain.Ticket, error)
	ListAll(ctx context.Context) ([]*domain.Ticket, error)
	UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus, at time.Time) error
	UpdateAssignedTeam(ctx context.Context, ticketID, team string, at time.Time) error
	UpdateResponse(ctx context.Context, ticketID, response string, at time.Time) error
	Stats(ctx context.Context) (*domain.TicketStats, error)

	// Delete removes the ticket with its routing events and feedback records
	// atomically.
	Delete(ctx context.Context, ticketID string) error
	// DeleteOlderThan cascades like Delete for every ticket created before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventRepository is the append-only routing log.
type EventRepository interface {
	Append(ctx context.Context, event *domain.RoutingEvent) error
	ListByTicket(ctx context.Context, ticketID string) ([]*domain.RoutingEvent, error)
	// TicketIDsWithEvent returns the set of tickets having at least one event
	// of the given type.
	TicketIDsWithEvent(ctx context.Context, eventType domain.EventType) (map[string]struct{}, error)
}

// PatternRepository is the learning pattern store.
type PatternRepository interface {
	// Reinforce upserts the pattern: an existing row gets usage_count+1 and
	// the given confidence, a new row starts at usage_count 1.
	Reinforce(ctx context.Context, patternType domain.PatternType, key, value string, confidence float64) error
	// Set upserts the pattern with absolute usage_count and confidence.
	Set(ctx context.Context, patternType domain.PatternType, key, value string, confidence float64, usageCount int) error

	List(ctx context.Context, patternType domain.PatternType) ([]*domain.LearningPattern, error)
	// ListByKey returns patterns of a type for a key with confidence >= minConfidence,
	// ordered by usage_count descending.
	ListByKey(ctx context.Context, patternType domain.PatternType, key string, minConfidence float64, limit int) ([]*domain.LearningPattern, error)
	// ListByValue returns patterns of a type for a value with confidence >= minConfidence,
	// ordered by confidence then usage_count descending.
	ListByValue(ctx context.Context, patternType domain.PatternType, value string, minConfidence float64) ([]*domain.LearningPattern, error)
}

// FeedbackRepository is the append-only feedback log.
type FeedbackRepository interface {
	Append(ctx context.Context, record *domain.FeedbackRecord) error
	List(ctx context.Context, limit int) ([]*domain.FeedbackRecord, error)
	// CountByType returns the number of records per feedback type.
	CountByType(ctx context.Context) (map[domain.FeedbackType]int, error)
}

// TeamRepository reads the team directory.
type TeamRepository interface {
	List(ctx context.Context) ([]*domain.Team, error)
	GetByName(ctx context.Context, name string) (*domain.Team, error)
	Upsert(ctx context.Context, team *domain.Team) error
}
