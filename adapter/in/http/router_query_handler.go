package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"query_router/core/port/in"
	"query_router/pkg/apperr"
	"query_router/pkg/response"
)

// QueryHandler handles inbound customer messages.
type QueryHandler struct {
	router in.RouterService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(router in.RouterService) *QueryHandler {
	return &QueryHandler{router: router}
}

// Register registers query routes
func (h *QueryHandler) Register(router fiber.Router) {
	router.Post("/queries", h.Process)
	router.Post("/queries/batch", h.Batch)
	router.Get("/dashboard", h.Dashboard)
}

// Process classifies, routes and stores a single message.
func (h *QueryHandler) Process(c *fiber.Ctx) error {
	var req in.ProcessRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.router.Process(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return response.Created(c, result)
}

type batchRequest struct {
	Queries []*in.ProcessRequest `json:"queries"`
}

type batchResponse struct {
	Results   []*in.BatchItemResult `json:"results"`
	Total     int                   `json:"total"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
}

// Batch processes many messages; item failures are reported per item.
func (h *QueryHandler) Batch(c *fiber.Ctx) error {
	var req batchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if len(req.Queries) == 0 {
		return apperr.InvalidInput("queries", "must not be empty")
	}
	if len(req.Queries) > maxBatchSize {
		return apperr.InvalidInput("queries", fmt.Sprintf("at most %d items per batch", maxBatchSize))
	}

	results := h.router.Batch(c.UserContext(), req.Queries)

	resp := batchResponse{Results: results, Total: len(results)}
	for _, r := range results {
		if r.Error != "" {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	return response.OK(c, resp)
}

// Dashboard returns ticket, learning and latency statistics.
func (h *QueryHandler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.router.DashboardStats(c.UserContext())
	if err != nil {
		return err
	}
	return response.OK(c, stats)
}
