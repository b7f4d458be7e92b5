package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id, youth_id, referent_id, created_by, title, location, scheduled_at, duration_min, status, notes, created_at, updated_at`

type CreateAppointmentInput struct {
	YouthID         string
	ReferentID      string
	CreatedBy       string
	Title           string
	Location        *string
	ScheduledAt     time.Time
	DurationMinutes int
	Notes           *string
}

type AppointmentListFilter struct {
	ActorID   string
	Role      string
	Status    string
	Timeframe string
}

type AppointmentRepository struct {
	db DBTX
}

func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Create(
	ctx context.Context,
	input CreateAppointmentInput,
) (*models.Appointment, error) {
	query := `
		INSERT INTO appointments (youth_id, referent_id, created_by, title, location, scheduled_at, duration_min, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', $8)
		RETURNING ` + appointmentColumns

	return scanAppointment(conn(ctx, r.db).QueryRow(
		ctx,
		query,
		input.YouthID,
		input.ReferentID,
		input.CreatedBy,
		input.Title,
		input.Location,
		input.ScheduledAt,
		input.DurationMinutes,
		input.Notes,
	))
}

func (r *AppointmentRepository) GetByID(ctx context.Context, appointmentID int64) (*models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = $1
	`
	return scanAppointment(conn(ctx, r.db).QueryRow(ctx, query, appointmentID))
}

func (r *AppointmentRepository) GetByIDForUpdate(
	ctx context.Context,
	appointmentID int64,
) (*models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`
	return scanAppointment(conn(ctx, r.db).QueryRow(ctx, query, appointmentID))
}

// List returns the appointments the actor takes part in. Admins see all of
// them.
func (r *AppointmentRepository) List(
	ctx context.Context,
	filter AppointmentListFilter,
) ([]models.Appointment, error) {
	args := []any{}
	whereParts := []string{}

	switch {
	case filter.Role == models.RoleAdmin:
	case models.IsReferentRole(filter.Role):
		args = append(args, filter.ActorID)
		whereParts = append(whereParts, fmt.Sprintf("referent_id = $%d", len(args)))
	default:
		args = append(args, filter.ActorID)
		whereParts = append(whereParts, fmt.Sprintf("youth_id = $%d", len(args)))
	}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(whereParts, "(scheduled_at + (duration_min * INTERVAL '1 minute')) > NOW()")
	case "past":
		whereParts = append(whereParts, "(scheduled_at + (duration_min * INTERVAL '1 minute')) <= NOW()")
	}

	where := ""
	if len(whereParts) > 0 {
		where = "WHERE " + strings.Join(whereParts, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		%s
		ORDER BY scheduled_at ASC, id ASC
	`, appointmentColumns, where)

	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]models.Appointment, 0)
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, *appointment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return appointments, nil
}

func (r *AppointmentRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	appointmentID int64,
	currentStatus string,
	nextStatus string,
) (*models.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + appointmentColumns

	return scanAppointment(conn(ctx, r.db).QueryRow(ctx, query, appointmentID, currentStatus, nextStatus))
}

// LockReferentSchedule serialises bookings for one referent until the
// surrounding transaction ends.
func (r *AppointmentRepository) LockReferentSchedule(ctx context.Context, referentID string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, referentID)
	return err
}

func (r *AppointmentRepository) HasConflict(
	ctx context.Context,
	referentID string,
	requestedTime time.Time,
	durationMinutes int,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE referent_id = $1
			  AND status <> 'cancelled'
			  AND scheduled_at < ($2::timestamptz + ($3::int * INTERVAL '1 minute'))
			  AND (scheduled_at + (duration_min * INTERVAL '1 minute')) > $2::timestamptz
		)
	`
	var hasConflict bool
	if err := conn(ctx, r.db).QueryRow(ctx, query, referentID, requestedTime, durationMinutes).Scan(&hasConflict); err != nil {
		return false, err
	}
	return hasConflict, nil
}

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := row.Scan(
		&appointment.ID,
		&appointment.YouthID,
		&appointment.ReferentID,
		&appointment.CreatedBy,
		&appointment.Title,
		&appointment.Location,
		&appointment.ScheduledAt,
		&appointment.DurationMinutes,
		&appointment.Status,
		&appointment.Notes,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &appointment, nil
}
