package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type noteApplicationService interface {
	CreateNote(ctx context.Context, authorID string, input services.CreateNoteInput) (*models.Note, error)
	ListNotes(ctx context.Context, authorID string) ([]models.Note, error)
	GetNote(ctx context.Context, authorID string, noteID int64) (*models.Note, error)
	UpdateNote(ctx context.Context, authorID string, noteID int64, input services.UpdateNoteInput) (*models.Note, error)
	DeleteNote(ctx context.Context, authorID string, noteID int64) error
}

type NoteHandler struct {
	service noteApplicationService
}

func NewNoteHandler(service noteApplicationService) *NoteHandler {
	return &NoteHandler{service: service}
}

type createNoteRequest struct {
	YouthID *string `json:"youth_id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
}

type updateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (h *NoteHandler) CreateNote(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req createNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	note, err := h.service.CreateNote(c.Context(), userID, services.CreateNoteInput{
		YouthID: req.YouthID,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return mapNoteError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"note": note})
}

func (h *NoteHandler) ListNotes(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	notes, err := h.service.ListNotes(c.Context(), userID)
	if err != nil {
		return mapNoteError(c, err)
	}

	return c.JSON(fiber.Map{"notes": notes})
}

func (h *NoteHandler) GetNote(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	noteID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || noteID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid note id"})
	}

	note, err := h.service.GetNote(c.Context(), userID, noteID)
	if err != nil {
		return mapNoteError(c, err)
	}

	return c.JSON(fiber.Map{"note": note})
}

func (h *NoteHandler) UpdateNote(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	noteID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || noteID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid note id"})
	}

	var req updateNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	note, err := h.service.UpdateNote(c.Context(), userID, noteID, services.UpdateNoteInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return mapNoteError(c, err)
	}

	return c.JSON(fiber.Map{"note": note})
}

func (h *NoteHandler) DeleteNote(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	noteID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || noteID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid note id"})
	}

	if err := h.service.DeleteNote(c.Context(), userID, noteID); err != nil {
		return mapNoteError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func mapNoteError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidationFailed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationMessage(err)})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Youth is not assigned to you"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Note not found"})
	case errors.Is(err, services.ErrStorageUnavailable):
		log.Error().Err(err).Msg("note storage failure")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage unavailable"})
	default:
		log.Error().Err(err).Msg("note request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process note request"})
	}
}
