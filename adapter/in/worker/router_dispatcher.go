package worker

import (
	"context"
	"fmt"

	"query_router/core/domain"
	"query_router/core/port/in"
	"query_router/core/port/out"
	"query_router/core/service/classification"
	"query_router/pkg/logger"
)

// Learner is the part of the learning engine the worker drives.
type Learner interface {
	LearnFromTicket(ctx context.Context, ticket *domain.Ticket) error
	LearnFromReassignment(ctx context.Context, ticketID, originalTeam, newTeam, originalIntent, reason string) error
	AnalyzeAndUpdatePatterns(ctx context.Context) (*in.AnalysisReport, error)
}

// TicketLoader loads a ticket by id; (nil, nil) means it is gone.
type TicketLoader interface {
	GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error)
}

// OverlayRefresher rebuilds the classifier overlay after an analysis pass.
type OverlayRefresher interface {
	Refresh(ctx context.Context) (*classification.Overlay, error)
}

// Handler dispatches messages to the learning engine.
type Handler struct {
	learner   Learner
	tickets   TicketLoader
	refresher OverlayRefresher
}

// NewHandler creates a handler; refresher may be nil.
func NewHandler(learner Learner, tickets TicketLoader, refresher OverlayRefresher) *Handler {
	return &Handler{learner: learner, tickets: tickets, refresher: refresher}
}

// Process runs one message.
func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobLearnTicket:
		return h.learnTicket(ctx, msg)
	case JobLearnReassignment:
		return h.learnReassignment(ctx, msg)
	case JobAnalyze:
		return h.analyze(ctx, msg)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

func (h *Handler) learnTicket(ctx context.Context, msg *Message) error {
	job, err := ParsePayload[out.LearnTicketJob](msg)
	if err != nil {
		return fmt.Errorf("failed to parse learn ticket payload: %w", err)
	}

	t, err := h.tickets.GetByID(ctx, job.TicketID)
	if err != nil {
		return fmt.Errorf("failed to load ticket %s: %w", job.TicketID, err)
	}
	if t == nil {
		// deleted before the worker got to it
		logger.WithField("ticket_id", job.TicketID).Debug("[Worker] ticket gone, skipping")
		return nil
	}
	return h.learner.LearnFromTicket(ctx, t)
}

func (h *Handler) learnReassignment(ctx context.Context, msg *Message) error {
	job, err := ParsePayload[out.LearnReassignmentJob](msg)
	if err != nil {
		return fmt.Errorf("failed to parse reassignment payload: %w", err)
	}
	return h.learner.LearnFromReassignment(ctx, job.TicketID, job.OriginalTeam, job.NewTeam, job.OriginalIntent, job.Reason)
}

func (h *Handler) analyze(ctx context.Context, msg *Message) error {
	job, err := ParsePayload[out.AnalyzeJob](msg)
	if err != nil {
		return fmt.Errorf("failed to parse analyze payload: %w", err)
	}

	report, err := h.learner.AnalyzeAndUpdatePatterns(ctx)
	if err != nil {
		return err
	}
	logger.WithFields(map[string]any{
		"reason":          job.Reason,
		"tickets_scanned": report.TicketsScanned,
	}).Info("[Worker] analysis job done")

	if h.refresher != nil {
		if _, err := h.refresher.Refresh(ctx); err != nil {
			logger.WithError(err).Warn("[Worker] overlay refresh after analysis failed")
		}
	}
	return nil
}
