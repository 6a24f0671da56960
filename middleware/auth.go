// middleware/auth.go
package middleware

import (
	"slices"
	"strings"

	"quest-progression-system/logger"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID = "user_id"
	localRoles  = "user_roles"
)

// UserContextMiddleware extracts user identity and roles set by Gateway.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			logger.Warn("[USER_CTX] X-User-ID required but missing", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		setIdentity(c, userID, splitRoles(c.Get("X-User-Roles")))
		logger.Debug("[USER_CTX] identity attached", "user", userID, "path", c.Path())
		return c.Next()
	}
}

// RequireRole rejects callers that do not carry role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !slices.Contains(Roles(c), role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient role",
				"kind":  "authorization",
			})
		}
		return c.Next()
	}
}

// UserID returns the authenticated user attached by the auth middleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// Roles returns the caller's roles attached by the auth middleware.
func Roles(c *fiber.Ctx) []string {
	roles, _ := c.Locals(localRoles).([]string)
	return roles
}

func setIdentity(c *fiber.Ctx, userID string, roles []string) {
	c.Locals(localUserID, userID)
	c.Locals(localRoles, roles)
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
