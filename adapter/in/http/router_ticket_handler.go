package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"query_router/core/domain"
	"query_router/core/port/in"
	"query_router/pkg/apperr"
	"query_router/pkg/response"
)

// TicketHandler handles ticket lifecycle routes.
type TicketHandler struct {
	tickets in.TicketService
	router  in.RouterService
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(tickets in.TicketService, router in.RouterService) *TicketHandler {
	return &TicketHandler{tickets: tickets, router: router}
}

// Register registers ticket routes
func (h *TicketHandler) Register(router fiber.Router) {
	tickets := router.Group("/tickets")
	tickets.Get("/", h.List)
	tickets.Get("/stats", h.Stats)
	tickets.Get("/:id", h.Get)
	tickets.Patch("/:id/status", h.UpdateStatus)
	tickets.Post("/:id/reassign", h.Reassign)
	tickets.Post("/:id/response", h.AttachResponse)
	tickets.Delete("/:id", h.Delete)

	router.Get("/teams", h.Teams)
	router.Post("/admin/purge", h.Purge)
}

// List returns tickets filtered by status, urgency, team and channel.
func (h *TicketHandler) List(c *fiber.Ctx) error {
	filter := &domain.TicketFilter{
		Status:       domain.TicketStatus(strings.ToLower(c.Query("status"))),
		Urgency:      domain.Urgency(strings.ToLower(c.Query("urgency"))),
		AssignedTeam: c.Query("team"),
		Channel:      domain.Channel(strings.ToLower(c.Query("channel"))),
		Limit:        response.Limit(c, defaultListLimit, maxListLimit),
	}

	tickets, err := h.tickets.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, tickets, &response.Meta{Total: len(tickets), Limit: filter.Limit})
}

// Stats returns aggregate ticket counts.
func (h *TicketHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tickets.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return response.OK(c, stats)
}

// Get returns a ticket with its routing history.
func (h *TicketHandler) Get(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	details, err := h.router.TicketDetails(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.OK(c, details)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// UpdateStatus moves a ticket to open, pending or closed.
func (h *TicketHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	status := domain.TicketStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if err := h.tickets.UpdateStatus(c.UserContext(), id, status, req.Notes); err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"ticket_id": id, "status": status})
}

type reassignRequest struct {
	NewTeam string `json:"new_team"`
	Reason  string `json:"reason"`
}

// Reassign moves a ticket to another team and feeds the learning engine.
func (h *TicketHandler) Reassign(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req reassignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.tickets.Reassign(c.UserContext(), id, req.NewTeam, req.Reason); err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"ticket_id": id, "assigned_team": req.NewTeam})
}

type attachResponseRequest struct {
	Response string `json:"response"`
}

// AttachResponse stores a response on the ticket.
func (h *TicketHandler) AttachResponse(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req attachResponseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Response) == "" {
		return apperr.MissingField("response")
	}

	if err := h.tickets.AttachResponse(c.UserContext(), id, req.Response); err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"ticket_id": id})
}

// Delete removes a ticket and its events.
func (h *TicketHandler) Delete(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return response.NoContent(c)
}

// Teams lists the team directory.
func (h *TicketHandler) Teams(c *fiber.Ctx) error {
	teams, err := h.tickets.Teams(c.UserContext())
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, teams, &response.Meta{Total: len(teams)})
}

type purgeRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// Purge deletes tickets older than the given number of days.
func (h *TicketHandler) Purge(c *fiber.Ctx) error {
	var req purgeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.OlderThanDays < 1 {
		return apperr.InvalidInput("older_than_days", "must be at least 1")
	}

	deleted, err := h.tickets.PurgeOlderThan(c.UserContext(), time.Duration(req.OlderThanDays)*24*time.Hour)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"deleted": deleted, "older_than_days": req.OlderThanDays})
}
