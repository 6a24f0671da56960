package handlers

import (
	"quest-progression-system/middleware"
	"quest-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupDevRoutes registers the testing shortcuts. The service refuses them unless dev_mode is on.
func SetupDevRoutes(router fiber.Router, devService *services.DevService) {
	dev := router.Group("/user/dev")

	dev.Post("/xp", func(c *fiber.Ctx) error {
		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		prof, err := devService.AddXP(c.UserContext(), middleware.UserID(c), req.Amount)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(prof)
	})

	dev.Post("/level-up", func(c *fiber.Ctx) error {
		prof, err := devService.ForceLevelUp(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(prof)
	})

	dev.Post("/simulate", func(c *fiber.Ctx) error {
		var req struct {
			HabitID string `json:"habit_id"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid JSON", err)
			}
		}
		res, err := devService.Simulate(c.UserContext(), middleware.UserID(c), req.HabitID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}
