package handlers

import (
	"context"
	"errors"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type authApplicationService interface {
	Register(ctx context.Context, input services.RegisterInput) (*models.User, string, error)
	Login(ctx context.Context, email string, password string) (*models.User, string, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

type AuthHandler struct {
	service authApplicationService
}

func NewAuthHandler(service authApplicationService) *AuthHandler {
	return &AuthHandler{service: service}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	user, token, err := h.service.Register(c.Context(), services.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	})
	if err != nil {
		return mapAuthError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	user, token, err := h.service.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(c, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.service.Me(c.Context(), userID)
	if err != nil {
		return mapAuthError(c, err)
	}

	return c.JSON(fiber.Map{"user": user})
}

func mapAuthError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidationFailed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationMessage(err)})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	case errors.Is(err, services.ErrEmailTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already exists"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, services.ErrStorageUnavailable):
		log.Error().Err(err).Msg("auth storage failure")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage unavailable"})
	default:
		log.Error().Err(err).Msg("auth request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process auth request"})
	}
}
