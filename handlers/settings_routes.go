package handlers

import (
	"quest-progression-system/middleware"
	"quest-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSettingsRoutes(router fiber.Router, settingsService *services.SettingsService) {
	router.Get("/user/settings", func(c *fiber.Ctx) error {
		st, err := settingsService.Get(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(st)
	})

	// PUT overlays the body on the stored settings; omitted fields keep their value.
	router.Put("/user/settings", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		current, err := settingsService.Get(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}

		next := *current
		next.MultiplierTiers = nil
		if err := c.BodyParser(&next); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		if next.MultiplierTiers == nil {
			next.MultiplierTiers = current.MultiplierTiers
		}

		saved, err := settingsService.Save(c.UserContext(), userID, next)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(saved)
	})
}
