package domain

import (
	"time"
)

// Channel is the inbound source of a message.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
	ChannelForm  Channel = "form"
)

// Prefix returns the ticket id prefix for the channel; unknown channels use TKT.
func (c Channel) Prefix() string {
	switch c {
	case ChannelEmail:
		return "EML"
	case ChannelChat:
		return "CHT"
	case ChannelForm:
		return "FRM"
	default:
		return "TKT"
	}
}

// TicketStatus transitions are driven externally.
type TicketStatus string

const (
	StatusOpen    TicketStatus = "open"
	StatusPending TicketStatus = "pending"
	StatusClosed  TicketStatus = "closed"
)

// IsValid reports whether the status belongs to the closed set.
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusPending, StatusClosed:
		return true
	}
	return false
}

// Ticket is the system of record for a routed message.
type Ticket struct {
	TicketID     string         `json:"ticket_id"`
	Channel      Channel        `json:"channel"`
	Sender       *string        `json:"sender,omitempty"`
	Subject      *string        `json:"subject,omitempty"`
	Message      string         `json:"message"`
	Intent       Intent         `json:"intent"`
	Urgency      Urgency        `json:"urgency"`
	AssignedTeam string         `json:"assigned_team"`
	Status       TicketStatus   `json:"status"`
	Response     *string        `json:"response,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SubjectText returns the subject or an empty string.
func (t *Ticket) SubjectText() string {
	if t.Subject == nil {
		return ""
	}
	return *t.Subject
}

// HasResponse reports whether a non-empty response is attached.
func (t *Ticket) HasResponse() bool {
	return t.Response != nil && *t.Response != ""
}

// EventType names an entry of the append-only routing log.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketReassigned EventType = "ticket_reassigned"
	EventTicketEscalated  EventType = "ticket_escalated"
	EventStatusChanged    EventType = "status_changed"
	EventRoutingCompleted EventType = "routing_completed"
	EventResponseAdded    EventType = "response_added"
)

// RoutingEvent is never mutated once written.
type RoutingEvent struct {
	ID        int64          `json:"id"`
	TicketID  string         `json:"ticket_id"`
	EventType EventType      `json:"event_type"`
	EventData map[string]any `json:"event_data"`
	Timestamp time.Time      `json:"timestamp"`
}

// TicketFilter narrows ticket listings. Zero values mean "any".
type TicketFilter struct {
	Status       TicketStatus
	Urgency      Urgency
	AssignedTeam string
	Channel      Channel
	Limit        int
}

// TicketStats aggregates the ticket table for dashboards.
type TicketStats struct {
	TotalTickets  int            `json:"total_tickets"`
	ByStatus      map[string]int `json:"by_status"`
	ByUrgency     map[string]int `json:"by_urgency"`
	ByTeam        map[string]int `json:"by_team"`
	ByChannel     map[string]int `json:"by_channel"`
	ByIntent      map[string]int `json:"by_intent"`
	AutoResponses int            `json:"auto_responses"`
}

// TicketDetails is a ticket plus its routing history.
type TicketDetails struct {
	Ticket         *Ticket         `json:"ticket"`
	RoutingHistory []*RoutingEvent `json:"routing_history"`
}
