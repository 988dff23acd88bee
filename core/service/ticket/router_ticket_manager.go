// Package ticket manages the ticket lifecycle and its routing event log.
package ticket

import (
	"context"
	"strings"
	"time"

	"query_router/core/domain"
	"query_router/core/port/in"
	"query_router/core/port/out"
	"query_router/pkg/apperr"
	"query_router/pkg/logger"
)

// ReassignmentLearner receives human reassignments. It may be the learning
// engine itself or a queue in front of it.
type ReassignmentLearner interface {
	LearnFromReassignment(ctx context.Context, ticketID, originalTeam, newTeam, originalIntent, reason string) error
}

// CreateTicketInput carries a routed message to be persisted.
type CreateTicketInput struct {
	Channel      domain.Channel
	Message      string
	Intent       domain.Intent
	Urgency      domain.Urgency
	AssignedTeam string
	Sender       *string
	Subject      *string
	Response     *string
	Metadata     map[string]any

	// Events are written after ticket_created, in the same transaction as
	// the ticket.
	Events []EventInput
}

// EventInput is a routing event recorded together with a new ticket.
type EventInput struct {
	Type domain.EventType
	Data map[string]any
}

// Manager implements in.TicketService.
type Manager struct {
	tickets out.TicketRepository
	events  out.EventRepository
	teams   out.TeamRepository
	learner ReassignmentLearner
	now     func() time.Time
}

var _ in.TicketService = (*Manager)(nil)

// NewManager creates a ticket manager. teams and learner may be nil.
func NewManager(tickets out.TicketRepository, events out.EventRepository, teams out.TeamRepository, learner ReassignmentLearner) *Manager {
	return &Manager{
		tickets: tickets,
		events:  events,
		teams:   teams,
		learner: learner,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create writes the ticket, its ticket_created event and any input events
// atomically.
func (m *Manager) Create(ctx context.Context, input *CreateTicketInput) (string, error) {
	if strings.TrimSpace(input.Message) == "" {
		return "", apperr.InvalidInput("message", "must not be empty")
	}

	now := m.now()
	t := &domain.Ticket{
		TicketID:     NewTicketID(input.Channel, input.Urgency, now),
		Channel:      input.Channel,
		Sender:       input.Sender,
		Subject:      input.Subject,
		Message:      input.Message,
		Intent:       input.Intent,
		Urgency:      input.Urgency,
		AssignedTeam: input.AssignedTeam,
		Status:       domain.StatusOpen,
		Response:     input.Response,
		Metadata:     input.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}

	events := make([]*domain.RoutingEvent, 0, len(input.Events)+1)
	events = append(events, &domain.RoutingEvent{
		TicketID:  t.TicketID,
		EventType: domain.EventTicketCreated,
		EventData: map[string]any{
			"channel":       t.Channel,
			"intent":        t.Intent,
			"urgency":       t.Urgency,
			"assigned_team": t.AssignedTeam,
		},
		Timestamp: now,
	})
	for _, e := range input.Events {
		events = append(events, &domain.RoutingEvent{
			TicketID:  t.TicketID,
			EventType: e.Type,
			EventData: e.Data,
			Timestamp: now,
		})
	}

	if err := m.tickets.CreateWithEvents(ctx, t, events); err != nil {
		return "", apperr.DatabaseError("create ticket", err)
	}
	return t.TicketID, nil
}

// Get returns the ticket or NOT_FOUND.
func (m *Manager) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	t, err := m.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperr.DatabaseError("get ticket", err)
	}
	if t == nil {
		return nil, apperr.NotFound("ticket").WithDetail("ticket_id", ticketID)
	}
	return t, nil
}

// List returns tickets matching the filter, newest first.
func (m *Manager) List(ctx context.Context, filter *domain.TicketFilter) ([]*domain.Ticket, error) {
	if filter == nil {
		filter = &domain.TicketFilter{}
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperr.InvalidInput("status", "must be one of open, pending, closed")
	}
	if filter.Urgency != "" && !filter.Urgency.IsValid() {
		return nil, apperr.InvalidInput("urgency", "must be one of critical, high, medium, low")
	}
	tickets, err := m.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperr.DatabaseError("list tickets", err)
	}
	return tickets, nil
}

// History returns the routing events of a ticket, oldest first.
func (m *Manager) History(ctx context.Context, ticketID string) ([]*domain.RoutingEvent, error) {
	events, err := m.events.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperr.DatabaseError("list routing events", err)
	}
	return events, nil
}

// Details returns the ticket with its routing history.
func (m *Manager) Details(ctx context.Context, ticketID string) (*domain.TicketDetails, error) {
	t, err := m.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	history, err := m.History(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return &domain.TicketDetails{Ticket: t, RoutingHistory: history}, nil
}

// UpdateStatus writes the status and a status_changed event.
func (m *Manager) UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus, notes string) error {
	if !status.IsValid() {
		return apperr.InvalidInput("status", "must be one of open, pending, closed")
	}
	t, err := m.Get(ctx, ticketID)
	if err != nil {
		return err
	}

	if err := m.tickets.UpdateStatus(ctx, ticketID, status, m.now()); err != nil {
		return apperr.DatabaseError("update ticket status", err)
	}

	data := map[string]any{
		"old_status": t.Status,
		"new_status": status,
	}
	if notes != "" {
		data["notes"] = notes
	}
	return m.appendEvent(ctx, ticketID, domain.EventStatusChanged, data)
}

// Reassign moves the ticket to another team and feeds the correction to the
// learner. Learner failures are logged, never returned.
func (m *Manager) Reassign(ctx context.Context, ticketID, newTeam, reason string) error {
	newTeam = strings.TrimSpace(newTeam)
	if newTeam == "" {
		return apperr.InvalidInput("team", "must not be empty")
	}
	t, err := m.Get(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := m.checkTeam(ctx, newTeam); err != nil {
		return err
	}

	if err := m.tickets.UpdateAssignedTeam(ctx, ticketID, newTeam, m.now()); err != nil {
		return apperr.DatabaseError("update assigned team", err)
	}

	data := map[string]any{
		"old_team": t.AssignedTeam,
		"new_team": newTeam,
	}
	if reason != "" {
		data["reason"] = reason
	}
	if err := m.appendEvent(ctx, ticketID, domain.EventTicketReassigned, data); err != nil {
		return err
	}

	if m.learner != nil {
		originalTeam := t.AssignedTeam
		if originalTeam == "" {
			originalTeam = "Unknown"
		}
		if err := m.learner.LearnFromReassignment(ctx, ticketID, originalTeam, newTeam, string(t.Intent), reason); err != nil {
			logger.WithContext(ctx).WithError(err).WithField("ticket_id", ticketID).
				Warn("[TicketManager] learning from reassignment failed")
		}
	}
	return nil
}

// checkTeam rejects teams missing from a non-empty directory.
func (m *Manager) checkTeam(ctx context.Context, name string) error {
	if m.teams == nil {
		return nil
	}
	teams, err := m.teams.List(ctx)
	if err != nil {
		return apperr.DatabaseError("list teams", err)
	}
	if len(teams) == 0 {
		return nil
	}
	for _, team := range teams {
		if team.Name == name {
			return nil
		}
	}
	return apperr.InvalidInput("team", "unknown team "+name)
}

// AttachResponse stores a response and logs only its length.
func (m *Manager) AttachResponse(ctx context.Context, ticketID, response string) error {
	if _, err := m.Get(ctx, ticketID); err != nil {
		return err
	}
	if err := m.tickets.UpdateResponse(ctx, ticketID, response, m.now()); err != nil {
		return apperr.DatabaseError("update response", err)
	}
	return m.appendEvent(ctx, ticketID, domain.EventResponseAdded, map[string]any{
		"response_length": len(response),
	})
}

// Delete removes a ticket with its events and feedback.
func (m *Manager) Delete(ctx context.Context, ticketID string) error {
	if _, err := m.Get(ctx, ticketID); err != nil {
		return err
	}
	if err := m.tickets.Delete(ctx, ticketID); err != nil {
		return apperr.DatabaseError("delete ticket", err)
	}
	logger.WithContext(ctx).WithField("ticket_id", ticketID).Info("[TicketManager] ticket deleted")
	return nil
}

// PurgeOlderThan deletes every ticket created more than age ago.
func (m *Manager) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, apperr.InvalidInput("age", "must be positive")
	}
	n, err := m.tickets.DeleteOlderThan(ctx, m.now().Add(-age))
	if err != nil {
		return 0, apperr.DatabaseError("purge tickets", err)
	}
	logger.WithField("deleted", n).Info("[TicketManager] purged tickets older than %s", age)
	return n, nil
}

// Stats aggregates the ticket table.
func (m *Manager) Stats(ctx context.Context) (*domain.TicketStats, error) {
	stats, err := m.tickets.Stats(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("ticket stats", err)
	}
	return stats, nil
}

// Teams lists the team directory.
func (m *Manager) Teams(ctx context.Context) ([]*domain.Team, error) {
	if m.teams == nil {
		teams := make([]*domain.Team, len(domain.DefaultTeams))
		for i := range domain.DefaultTeams {
			t := domain.DefaultTeams[i]
			teams[i] = &t
		}
		return teams, nil
	}
	teams, err := m.teams.List(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("list teams", err)
	}
	return teams, nil
}

func (m *Manager) appendEvent(ctx context.Context, ticketID string, eventType domain.EventType, data map[string]any) error {
	event := &domain.RoutingEvent{
		TicketID:  ticketID,
		EventType: eventType,
		EventData: data,
		Timestamp: m.now(),
	}
	if err := m.events.Append(ctx, event); err != nil {
		return apperr.DatabaseError("append routing event", err)
	}
	return nil
}
