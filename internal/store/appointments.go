package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"calendra/backend/internal/domain"
)

type AppointmentRepository interface {
	// List returns non-cancelled appointments overlapping the window.
	List(ctx context.Context, calendarID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	Cancel(ctx context.Context, calendarID, appointmentID uuid.UUID) error
	InCalendarTransaction(ctx context.Context, calendarID uuid.UUID, fn func(ctx context.Context, tx CalendarTx) error) error
}
