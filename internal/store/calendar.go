package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"calendra/backend/internal/domain"
)

type CalendarRepository interface {
	Create(ctx context.Context, cal *domain.Calendar) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Calendar, error)
	// Update loads the calendar under its per-calendar lock, applies fn and
	// saves the result. Nothing is written when fn fails.
	Update(ctx context.Context, id uuid.UUID, fn func(cal *domain.Calendar) error) (*domain.Calendar, error)
}

// CalendarTx is the set of operations available while a calendar's lock is held.
type CalendarTx interface {
	GetCalendar(ctx context.Context, id uuid.UUID) (*domain.Calendar, error)
	SaveCalendar(ctx context.Context, cal *domain.Calendar) error

	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	ListAppointments(ctx context.Context, calendarID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	CancelAppointment(ctx context.Context, calendarID, appointmentID uuid.UUID) error
}

// CalendarCache holds calendar snapshots in front of CalendarRepository.
// A miss is reported as (nil, false, nil).
type CalendarCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Calendar, bool, error)
	Set(ctx context.Context, cal *domain.Calendar) error
	Delete(ctx context.Context, id uuid.UUID) error
}
