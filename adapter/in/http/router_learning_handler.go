package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"query_router/core/domain"
	"query_router/core/port/in"
	"query_router/core/service/classification"
	"query_router/pkg/apperr"
	"query_router/pkg/response"
)

// OverlayRefresher rebuilds the classifier's learned overlay.
type OverlayRefresher interface {
	Refresh(ctx context.Context) (*classification.Overlay, error)
}

// AnalysisQueue hands analysis passes to the worker process.
type AnalysisQueue interface {
	RequestAnalysis(ctx context.Context, reason string) error
}

// LearningHandler exposes the learning engine.
type LearningHandler struct {
	learning  in.LearningService
	refresher OverlayRefresher
	queue     AnalysisQueue
}

// NewLearningHandler creates a LearningHandler. When queue is non-nil,
// analysis requests are enqueued instead of run inline.
func NewLearningHandler(learning in.LearningService, refresher OverlayRefresher, queue AnalysisQueue) *LearningHandler {
	return &LearningHandler{learning: learning, refresher: refresher, queue: queue}
}

// Register registers learning routes
func (h *LearningHandler) Register(router fiber.Router) {
	learning := router.Group("/learning")
	learning.Post("/analyze", h.Analyze)
	learning.Get("/stats", h.Stats)
	learning.Get("/patterns", h.Patterns)
	learning.Post("/refresh", h.Refresh)
}

// Analyze re-derives patterns from resolved tickets.
func (h *LearningHandler) Analyze(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if h.queue != nil {
		if err := h.queue.RequestAnalysis(ctx, "api"); err != nil {
			return apperr.Unavailable("learning queue", err)
		}
		return c.Status(fiber.StatusAccepted).JSON(response.Response{
			Success: true,
			Data:    fiber.Map{"queued": true},
		})
	}

	report, err := h.learning.AnalyzeAndUpdatePatterns(ctx)
	if err != nil {
		return err
	}
	if h.refresher != nil {
		if _, err := h.refresher.Refresh(ctx); err != nil {
			return err
		}
	}
	return response.OK(c, report)
}

// Stats returns pattern and feedback counts.
func (h *LearningHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.learning.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return response.OK(c, stats)
}

// Patterns lists learned patterns, optionally filtered by ?type=.
func (h *LearningHandler) Patterns(c *fiber.Ctx) error {
	patternType := domain.PatternType(strings.ToLower(c.Query("type")))
	switch patternType {
	case "", domain.PatternIntentKeyword, domain.PatternTeamIntent:
	default:
		return apperr.InvalidInput("type", "must be intent_keyword or team_intent")
	}

	patterns, err := h.learning.Patterns(c.UserContext(), patternType)
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, patterns, &response.Meta{Total: len(patterns)})
}

// Refresh reloads the learned overlay into the classifier.
func (h *LearningHandler) Refresh(c *fiber.Ctx) error {
	if h.refresher == nil {
		return apperr.Unavailable("classifier", nil)
	}
	overlay, err := h.refresher.Refresh(c.UserContext())
	if err != nil {
		return err
	}
	keywords, teams := overlay.Size()
	return response.OK(c, fiber.Map{
		"learned_keywords": keywords,
		"learned_teams":    teams,
	})
}
