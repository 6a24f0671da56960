package handlers

import (
	"quest-progression-system/logger"
	"quest-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps a service error kind to an HTTP status and a JSON body.
func respondError(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)

	var status int
	switch kind {
	case services.KindValidation:
		status = fiber.StatusBadRequest
	case services.KindNotFound:
		status = fiber.StatusNotFound
	case services.KindAuthorization:
		status = fiber.StatusForbidden
	case services.KindConflict:
		status = fiber.StatusConflict
	case services.KindStoreUnavailable:
		status = fiber.StatusServiceUnavailable
	default:
		status = fiber.StatusInternalServerError
	}

	if status >= fiber.StatusInternalServerError {
		logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	body := fiber.Map{"error": services.Message(err)}
	if kind != "" {
		body["kind"] = kind
	}
	if kind == services.KindConflict || kind == services.KindStoreUnavailable {
		body["retryable"] = true
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string, cause error) error {
	body := fiber.Map{"error": msg, "kind": services.KindValidation}
	if cause != nil {
		body["cause"] = cause.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
