package handlers

import (
	"quest-progression-system/middleware"
	"quest-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQuestRoutes(router fiber.Router, habitService *services.HabitService) {
	router.Get("/quests", func(c *fiber.Ctx) error {
		habits, err := habitService.ListActive(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(habits)
	})

	router.Post("/quests", func(c *fiber.Ctx) error {
		var in services.CreateHabitInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		habit, err := habitService.Create(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(habit)
	})

	router.Get("/quests/today", func(c *fiber.Ctx) error {
		day, logs, err := habitService.TodayLogs(c.UserContext(), middleware.UserID(c), c.Query("day"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"day": day, "logs": logs})
	})

	router.Delete("/quests/:id", func(c *fiber.Ctx) error {
		if err := habitService.Deactivate(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
