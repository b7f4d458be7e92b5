package handlers

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type profileApplicationService interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, input services.UpdateProfileInput) (*models.User, error)
	UploadAvatar(ctx context.Context, userID string, file multipart.File, filename string, size int64) (*models.User, error)
}

type ProfileHandler struct {
	service profileApplicationService
}

func NewProfileHandler(service profileApplicationService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type updateProfileRequest struct {
	DisplayName       *string `json:"display_name"`
	PreferredLanguage *string `json:"preferred_language"`
}

func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.service.GetProfile(c.Context(), userID)
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.JSON(fiber.Map{"profile": user})
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	user, err := h.service.UpdateProfile(c.Context(), userID, services.UpdateProfileInput{
		DisplayName:       req.DisplayName,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.JSON(fiber.Map{"profile": user})
}

func (h *ProfileHandler) UploadAvatar(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Avatar file is required"})
	}
	if fileHeader.Size > services.MaxAvatarBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Avatar file exceeds 5MB limit"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to open avatar file"})
	}
	defer file.Close()

	user, err := h.service.UploadAvatar(c.Context(), userID, file, fileHeader.Filename, fileHeader.Size)
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":    "Avatar uploaded successfully",
		"avatar_url": user.AvatarURL,
	})
}

func mapProfileError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidationFailed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationMessage(err)})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
	case errors.Is(err, services.ErrObjectStorageNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Object storage not configured"})
	case errors.Is(err, services.ErrStorageUnavailable):
		log.Error().Err(err).Msg("profile storage failure")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage unavailable"})
	default:
		log.Error().Err(err).Msg("profile request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process profile request"})
	}
}
