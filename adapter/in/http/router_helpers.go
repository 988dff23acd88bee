// Package http exposes the router over fiber.
package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"query_router/pkg/apperr"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBatchSize     = 100
)

// parseBody decodes the JSON body into dest or returns a BAD_REQUEST error.
func parseBody(c *fiber.Ctx, dest any) error {
	if len(c.Body()) == 0 {
		return apperr.BadRequest("request body is required")
	}
	if err := c.BodyParser(dest); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	return nil
}

// ticketIDParam returns the :id path parameter.
func ticketIDParam(c *fiber.Ctx) (string, error) {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return "", apperr.MissingField("id")
	}
	return id, nil
}
