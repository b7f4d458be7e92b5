package handlers

import (
	"context"
	"errors"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
)

type pushTokenRegistrar interface {
	Register(ctx context.Context, userID, token, platform string) error
}

type PushTokenHandler struct {
	service pushTokenRegistrar
}

func NewPushTokenHandler(service pushTokenRegistrar) *PushTokenHandler {
	return &PushTokenHandler{service: service}
}

type registerPushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// Register always answers 202 once the payload is valid; the token is
// stored best effort.
func (h *PushTokenHandler) Register(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req registerPushTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.service.Register(c.Context(), userID, req.Token, req.Platform); err != nil {
		if errors.Is(err, services.ErrValidationFailed) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationMessage(err)})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register push token"})
	}

	return c.SendStatus(fiber.StatusAccepted)
}
