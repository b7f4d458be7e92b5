package handlers

import (
	"context"
	"errors"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type adminApplicationService interface {
	ListUsers(ctx context.Context, role string) ([]models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	Assign(ctx context.Context, youthID, referentID string) (*models.User, error)
	Unassign(ctx context.Context, youthID, referentID string) (*models.User, error)
}

// AdminHandler serves the user directory and referent assignments. Routes
// are mounted behind RequireRole(admin).
type AdminHandler struct {
	service adminApplicationService
}

type assignmentRequest struct {
	YouthID    string `json:"youth_id"`
	ReferentID string `json:"referent_id"`
}

func NewAdminHandler(service adminApplicationService) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.Context(), c.Query("role"))
	if err != nil {
		return mapAdminError(c, err)
	}

	page := parsePositiveInt(c.Query("page"), 1)
	items, meta := paginate(users, page, parseLimit(c.Query("limit")))

	return c.JSON(fiber.Map{
		"users":      items,
		"pagination": meta,
	})
}

func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.service.GetUser(c.Context(), c.Params("id"))
	if err != nil {
		return mapAdminError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *AdminHandler) Assign(c *fiber.Ctx) error {
	var req assignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	youth, err := h.service.Assign(c.Context(), req.YouthID, req.ReferentID)
	if err != nil {
		return mapAdminError(c, err)
	}
	return c.JSON(fiber.Map{"user": youth})
}

func (h *AdminHandler) Unassign(c *fiber.Ctx) error {
	var req assignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	youth, err := h.service.Unassign(c.Context(), req.YouthID, req.ReferentID)
	if err != nil {
		return mapAdminError(c, err)
	}
	return c.JSON(fiber.Map{"user": youth})
}

func mapAdminError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidationFailed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationMessage(err)})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, services.ErrStorageUnavailable):
		log.Error().Err(err).Msg("admin storage failure")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage unavailable"})
	default:
		log.Error().Err(err).Msg("admin request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process admin request"})
	}
}
