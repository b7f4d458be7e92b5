package models

import "time"

const (
	AppointmentScheduled = "scheduled"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

type Appointment struct {
	ID              int64     `json:"id"`
	YouthID         string    `json:"youth_id"`
	ReferentID      string    `json:"referent_id"`
	CreatedBy       string    `json:"created_by"`
	Title           string    `json:"title"`
	Location        *string   `json:"location"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.UTC().Add(time.Duration(a.DurationMinutes) * time.Minute)
}
