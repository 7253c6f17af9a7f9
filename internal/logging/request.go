package logging

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger logs every request once it has been handled. userID reads the
// authenticated user from the context; it returns 0 for public routes.
func RequestLogger(userID func(*fiber.Ctx) uint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if id := userID(c); id != 0 {
			attrs = append(attrs, "user_id", id)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			slog.Error("istek", attrs...)
		case status >= fiber.StatusBadRequest:
			slog.Warn("istek", attrs...)
		default:
			slog.Info("istek", attrs...)
		}
		return err
	}
}
