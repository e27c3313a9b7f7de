package server

import (
	"log/slog"
	"strconv"

	"simplesns/internal/middleware"
	"simplesns/internal/models"
	"simplesns/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// respondError writes err with the status its code maps to. Server-side
// failures are logged with their cause; the body never carries it.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusForError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("code", models.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

// parseLimit reads ?limit, defaulting to validation.DefaultListLimit. Range
// checks are left to the backend so out-of-range values are rejected, never
// clamped.
func parseLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return validation.DefaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError("limit must be an integer")
	}
	return limit, nil
}

func invalidBody() error {
	return models.NewValidationError("Invalid request body")
}
