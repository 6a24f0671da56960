// handlers/progression_routes.go
package handlers

import (
	"strconv"
	"strings"

	"quest-progression-system/middleware"
	"quest-progression-system/models"
	"quest-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

type toggleRequest struct {
	HabitID   string `json:"habit_id"`
	Day       string `json:"day"`
	Completed *bool  `json:"completed"`
}

// SetupProgressionRoutes registers profile, history and the quest toggle.
// router must already carry an auth middleware that attaches the user id.
func SetupProgressionRoutes(router fiber.Router, progressionService *services.ProgressionService) {
	router.Get("/user/profile", func(c *fiber.Ctx) error {
		view, err := progressionService.GetProfile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	router.Get("/user/progress/history", func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		history, err := progressionService.GetUserHistory(c.UserContext(), middleware.UserID(c), page, size)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(history)
	})

	router.Post("/quests/toggle", func(c *fiber.Ctx) error {
		var req toggleRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		if req.Completed == nil {
			return badRequest(c, "completed is required", nil)
		}

		res, err := progressionService.ToggleQuest(c.UserContext(), middleware.UserID(c), services.ToggleRequest{
			HabitID:   strings.TrimSpace(req.HabitID),
			Day:       strings.TrimSpace(req.Day),
			Completed: *req.Completed,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}

// SetupAdminRoutes registers operator endpoints, restricted to the admin role.
func SetupAdminRoutes(router fiber.Router, progressionService *services.ProgressionService) {
	adminGroup := router.Group("/s/admin", middleware.RequireRole("admin"))

	adminGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id"`
			XP     int64  `json:"xp"`
			Reason string `json:"reason"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		if len(req.Reason) > 255 {
			return badRequest(c, "reason must be at most 255 characters", nil)
		}

		prof, err := progressionService.AwardXP(c.UserContext(), strings.TrimSpace(req.UserID), req.XP, models.XPEventAdminGrant, req.Reason)
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"message": "XP granted successfully",
			"user_id": prof.UserID,
			"xp":      req.XP,
			"profile": prof,
		})
	})
}
