// Package response renders the JSON envelope used by every HTTP handler.
package response

import (
	"github.com/gofiber/fiber/v2"

	"query_router/pkg/apperr"
)

// Response is the standard API envelope.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo mirrors apperr.AppError for clients.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Meta describes list responses.
type Meta struct {
	Total int `json:"total"`
	Limit int `json:"limit,omitempty"`
}

func OK(c *fiber.Ctx, data any) error {
	return c.JSON(Response{Success: true, Data: data})
}

func OKWithMeta(c *fiber.Ctx, data any, meta *Meta) error {
	return c.JSON(Response{Success: true, Data: data, Meta: meta})
}

func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: data})
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// Error writes a plain coded error.
func Error(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}

// AppError writes err with its status and details. Internal causes stay in logs.
func AppError(c *fiber.Ctx, err *apperr.AppError) error {
	return c.Status(err.Status).JSON(Response{
		Success: false,
		Error:   &ErrorInfo{Code: err.Code, Message: err.Message, Details: err.Details},
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, apperr.CodeBadRequest, message)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, apperr.CodeUnauthorized, message)
}

// Limit reads ?limit= clamped to [1, maxLimit]; zero means no limit requested.
func Limit(c *fiber.Ctx, defaultLimit, maxLimit int) int {
	limit := c.QueryInt("limit", defaultLimit)
	if limit < 1 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
