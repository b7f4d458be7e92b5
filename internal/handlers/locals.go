package handlers

import (
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

func currentUserID(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals(middleware.LocalUserID).(string)
	return userID, ok && userID != ""
}

func currentRole(c *fiber.Ctx) string {
	role, _ := c.Locals(middleware.LocalRole).(string)
	return role
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
}
