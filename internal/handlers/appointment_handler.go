package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/repository"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type appointmentApplicationService interface {
	ScheduleAppointment(ctx context.Context, actorID string, input services.ScheduleAppointmentInput) (*models.Appointment, error)
	ListAppointments(ctx context.Context, actorID string, role string, filter repository.AppointmentListFilter) ([]models.Appointment, error)
	GetAppointment(ctx context.Context, actorID string, role string, appointmentID int64) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, actorID string, role string, appointmentID int64, requestedStatus string) (*models.Appointment, error)
}

type AppointmentHandler struct {
	service appointmentApplicationService
}

func NewAppointmentHandler(service appointmentApplicationService) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

type scheduleAppointmentRequest struct {
	CounterpartID   string  `json:"counterpart_id"`
	Title           string  `json:"title"`
	Location        *string `json:"location"`
	ScheduledAt     string  `json:"scheduled_at"`
	DurationMinutes int     `json:"duration_minutes"`
	Notes           *string `json:"notes"`
}

type updateAppointmentStatusRequest struct {
	Status string `json:"status"`
}

func (h *AppointmentHandler) ScheduleAppointment(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req scheduleAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	scheduledAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_at must be a valid RFC3339 timestamp"})
	}

	appointment, err := h.service.ScheduleAppointment(c.Context(), userID, services.ScheduleAppointmentInput{
		CounterpartID:   req.CounterpartID,
		Title:           req.Title,
		Location:        req.Location,
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		return mapAppointmentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"appointment": appointment})
}

func (h *AppointmentHandler) ListAppointments(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	appointments, err := h.service.ListAppointments(c.Context(), userID, currentRole(c), repository.AppointmentListFilter{
		Status:    c.Query("status"),
		Timeframe: c.Query("timeframe"),
	})
	if err != nil {
		return mapAppointmentError(c, err)
	}

	return c.JSON(fiber.Map{"appointments": appointments})
}

func (h *AppointmentHandler) GetAppointment(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	appointmentID, err := parseAppointmentID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	appointment, err := h.service.GetAppointment(c.Context(), userID, currentRole(c), appointmentID)
	if err != nil {
		return mapAppointmentError(c, err)
	}

	return c.JSON(fiber.Map{"appointment": appointment})
}

func (h *AppointmentHandler) UpdateStatus(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	appointmentID, err := parseAppointmentID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	var req updateAppointmentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	appointment, err := h.service.UpdateStatus(c.Context(), userID, currentRole(c), appointmentID, req.Status)
	if err != nil {
		return mapAppointmentError(c, err)
	}

	return c.JSON(fiber.Map{"appointment": appointment})
}

func parseAppointmentID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func mapAppointmentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidationFailed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationMessage(err)})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Counterpart is not assigned to you"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Requested time conflicts with another appointment"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Invalid status transition"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Appointment not found"})
	case errors.Is(err, services.ErrStorageUnavailable):
		log.Error().Err(err).Msg("appointment storage failure")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage unavailable"})
	default:
		log.Error().Err(err).Msg("appointment request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process appointment request"})
	}
}
