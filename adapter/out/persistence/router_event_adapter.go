package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"query_router/core/domain"
	"query_router/core/port/out"
)

// EventAdapter implements out.EventRepository on the routing_log table.
type EventAdapter struct {
	db *sqlx.DB
}

var _ out.EventRepository = (*EventAdapter)(nil)

// NewEventAdapter creates a new EventAdapter.
func NewEventAdapter(db *sqlx.DB) *EventAdapter {
	return &EventAdapter{db: db}
}

type eventRow struct {
	ID        int64     `db:"id"`
	TicketID  string    `db:"ticket_id"`
	EventType string    `db:"event_type"`
	EventData []byte    `db:"event_data"`
	Timestamp time.Time `db:"timestamp"`
}

func (r *eventRow) toEntity() *domain.RoutingEvent {
	return &domain.RoutingEvent{
		ID:        r.ID,
		TicketID:  r.TicketID,
		EventType: domain.EventType(r.EventType),
		EventData: decodeMap(r.EventData),
		Timestamp: r.Timestamp.UTC(),
	}
}

// Append writes the event and sets its ID.
func (a *EventAdapter) Append(ctx context.Context, event *domain.RoutingEvent) error {
	return insertEvent(ctx, a.db, event)
}

func insertEvent(ctx context.Context, db sqlx.ExtContext, event *domain.RoutingEvent) error {
	data, err := encodeMap(event.EventData)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := db.Rebind(`
		INSERT INTO routing_log (ticket_id, event_type, event_data, timestamp)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	if err := db.QueryRowxContext(ctx, query,
		event.TicketID, string(event.EventType), data, event.Timestamp.UTC(),
	).Scan(&event.ID); err != nil {
		return fmt.Errorf("failed to append routing event: %w", err)
	}
	return nil
}

// ListByTicket returns the ticket's events in insertion order.
func (a *EventAdapter) ListByTicket(ctx context.Context, ticketID string) ([]*domain.RoutingEvent, error) {
	var rows []eventRow
	query := a.db.Rebind(`
		SELECT id, ticket_id, event_type, event_data, timestamp
		FROM routing_log WHERE ticket_id = ?
		ORDER BY timestamp ASC, id ASC`)

	if err := a.db.SelectContext(ctx, &rows, query, ticketID); err != nil {
		return nil, fmt.Errorf("failed to list routing events: %w", err)
	}

	events := make([]*domain.RoutingEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toEntity()
	}
	return events, nil
}

// TicketIDsWithEvent returns the tickets having at least one event of the type.
func (a *EventAdapter) TicketIDsWithEvent(ctx context.Context, eventType domain.EventType) (map[string]struct{}, error) {
	var ids []string
	query := a.db.Rebind(`SELECT DISTINCT ticket_id FROM routing_log WHERE event_type = ?`)

	if err := a.db.SelectContext(ctx, &ids, query, string(eventType)); err != nil {
		return nil, fmt.Errorf("failed to list tickets by event: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
