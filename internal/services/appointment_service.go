package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/repository"
	"github.com/jackc/pgx/v5"
)

const (
	minAppointmentMinutes = 15
	maxAppointmentMinutes = 480
)

type appointmentStore interface {
	Create(ctx context.Context, input repository.CreateAppointmentInput) (*models.Appointment, error)
	GetByID(ctx context.Context, appointmentID int64) (*models.Appointment, error)
	List(ctx context.Context, filter repository.AppointmentListFilter) ([]models.Appointment, error)
	UpdateStatusIfCurrent(ctx context.Context, appointmentID int64, currentStatus, nextStatus string) (*models.Appointment, error)
	LockReferentSchedule(ctx context.Context, referentID string) error
	HasConflict(ctx context.Context, referentID string, requestedTime time.Time, durationMinutes int) (bool, error)
}

type userReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type AppointmentService struct {
	tx           TxRunner
	appointments appointmentStore
	users        userReader
	now          func() time.Time
}

func NewAppointmentService(tx TxRunner, appointments appointmentStore, users userReader) *AppointmentService {
	return &AppointmentService{
		tx:           tx,
		appointments: appointments,
		users:        users,
		now:          time.Now,
	}
}

type ScheduleAppointmentInput struct {
	CounterpartID   string
	Title           string
	Location        *string
	ScheduledAt     time.Time
	DurationMinutes int
	Notes           *string
}

func (s *AppointmentService) ScheduleAppointment(
	ctx context.Context,
	actorID string,
	input ScheduleAppointmentInput,
) (*models.Appointment, error) {
	if input.DurationMinutes < minAppointmentMinutes || input.DurationMinutes > maxAppointmentMinutes {
		return nil, validationError("duration must be between %d and %d minutes", minAppointmentMinutes, maxAppointmentMinutes)
	}
	if !input.ScheduledAt.After(s.now()) {
		return nil, validationError("appointment must be in the future")
	}
	if strings.TrimSpace(input.CounterpartID) == "" || input.CounterpartID == actorID {
		return nil, validationError("a distinct counterpart is required")
	}

	title := SanitizeText(input.Title)
	if title == "" || utf8.RuneCountInString(title) > MaxTitleRunes {
		return nil, validationError("title must be 1 to %d characters", MaxTitleRunes)
	}
	location, err := optionalText(input.Location, MaxTitleRunes)
	if err != nil {
		return nil, err
	}
	notes, err := optionalText(input.Notes, MaxNoteRunes)
	if err != nil {
		return nil, err
	}

	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	counterpart, err := s.loadUser(ctx, input.CounterpartID)
	if err != nil {
		return nil, err
	}

	var youth, referent *models.User
	switch {
	case actor.Role == models.RoleYouth && models.IsReferentRole(counterpart.Role):
		youth, referent = actor, counterpart
	case models.IsReferentRole(actor.Role) && counterpart.Role == models.RoleYouth:
		youth, referent = counterpart, actor
	default:
		return nil, ErrForbidden
	}
	if !CanConverse(youth, referent) {
		return nil, ErrUnauthorized
	}

	var appointment *models.Appointment
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.appointments.LockReferentSchedule(ctx, referent.ID); err != nil {
			return err
		}

		hasConflict, err := s.appointments.HasConflict(ctx, referent.ID, input.ScheduledAt.UTC(), input.DurationMinutes)
		if err != nil {
			return err
		}
		if hasConflict {
			return ErrConflict
		}

		appointment, err = s.appointments.Create(ctx, repository.CreateAppointmentInput{
			YouthID:         youth.ID,
			ReferentID:      referent.ID,
			CreatedBy:       actor.ID,
			Title:           title,
			Location:        location,
			ScheduledAt:     input.ScheduledAt.UTC(),
			DurationMinutes: input.DurationMinutes,
			Notes:           notes,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrConflict
		}
		return nil, storageError(err)
	}
	return appointment, nil
}

func (s *AppointmentService) ListAppointments(
	ctx context.Context,
	actorID string,
	role string,
	filter repository.AppointmentListFilter,
) ([]models.Appointment, error) {
	status := strings.TrimSpace(filter.Status)
	if status != "" && !isAppointmentStatus(status) {
		return nil, validationError("invalid status %q", status)
	}
	timeframe := strings.TrimSpace(filter.Timeframe)
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return nil, validationError("invalid timeframe %q", timeframe)
	}

	appointments, err := s.appointments.List(ctx, repository.AppointmentListFilter{
		ActorID:   actorID,
		Role:      role,
		Status:    status,
		Timeframe: timeframe,
	})
	if err != nil {
		return nil, storageError(err)
	}
	return appointments, nil
}

func (s *AppointmentService) GetAppointment(
	ctx context.Context,
	actorID string,
	role string,
	appointmentID int64,
) (*models.Appointment, error) {
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageError(err)
	}
	if role != models.RoleAdmin && !isAppointmentParty(actorID, appointment) {
		return nil, ErrForbidden
	}
	return appointment, nil
}

func (s *AppointmentService) UpdateStatus(
	ctx context.Context,
	actorID string,
	role string,
	appointmentID int64,
	requestedStatus string,
) (*models.Appointment, error) {
	appointment, err := s.GetAppointment(ctx, actorID, role, appointmentID)
	if err != nil {
		return nil, err
	}
	if !isAppointmentParty(actorID, appointment) {
		return nil, ErrForbidden
	}

	nextStatus, err := normalizeRequestedStatus(requestedStatus)
	if err != nil {
		return nil, err
	}
	if err := validateStatusTransition(actorID, appointment, nextStatus, s.now().UTC()); err != nil {
		return nil, err
	}

	updated, err := s.appointments.UpdateStatusIfCurrent(ctx, appointmentID, appointment.Status, nextStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, storageError(err)
	}
	return updated, nil
}

func (s *AppointmentService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storageError(err)
	}
	return user, nil
}

func isAppointmentParty(actorID string, appointment *models.Appointment) bool {
	return appointment != nil && (appointment.YouthID == actorID || appointment.ReferentID == actorID)
}

func isAppointmentStatus(status string) bool {
	switch status {
	case models.AppointmentScheduled, models.AppointmentCancelled, models.AppointmentCompleted:
		return true
	default:
		return false
	}
}

func normalizeRequestedStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "complete", "completed":
		return models.AppointmentCompleted, nil
	case "cancel", "cancelled", "canceled":
		return models.AppointmentCancelled, nil
	default:
		return "", validationError("invalid status %q", status)
	}
}

// validateStatusTransition allows scheduled -> cancelled by either party and
// scheduled -> completed by the referent once the appointment has ended.
func validateStatusTransition(
	actorID string,
	appointment *models.Appointment,
	nextStatus string,
	now time.Time,
) error {
	if appointment.Status != models.AppointmentScheduled {
		return ErrInvalidStateTransition
	}

	switch nextStatus {
	case models.AppointmentCancelled:
		return nil
	case models.AppointmentCompleted:
		if appointment.ReferentID != actorID {
			return ErrForbidden
		}
		if appointment.EndsAt().After(now) {
			return ErrInvalidStateTransition
		}
		return nil
	default:
		return ErrInvalidStateTransition
	}
}

func optionalText(value *string, maxRunes int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	cleaned := SanitizeText(*value)
	if cleaned == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(cleaned) > maxRunes {
		return nil, validationError("text exceeds %d characters", maxRunes)
	}
	return &cleaned, nil
}
