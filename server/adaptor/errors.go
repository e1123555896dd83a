package adaptor

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/zmahdi/wasla/server/domain"
)

// userMessage strips wrapping detail down to something safe to echo to a
// client. Store internals never leave the process.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrStore):
		return "internal error"
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

func httpError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
}
