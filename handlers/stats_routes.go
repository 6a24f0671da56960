package handlers

import (
	"fmt"

	"quest-progression-system/middleware"
	"quest-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupStatsRoutes(router fiber.Router, statsService *services.StatsService, exportService *services.ExportService) {
	router.Get("/user/stats", func(c *fiber.Ctx) error {
		report, err := statsService.Report(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(report)
	})

	router.Get("/user/export", func(c *fiber.Ctx) error {
		dump, err := exportService.Dump(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename="quests-export-%s.json"`, dump.ExportedAt.Format("20060102")))
		return c.JSON(dump)
	})

	router.Post("/user/export/archive", func(c *fiber.Ctx) error {
		res, err := exportService.Archive(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})
}
