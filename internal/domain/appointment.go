package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is a committed booking against a calendar. Non-cancelled
// appointments are the booked intervals excluded from availability.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID          uuid.UUID         `bun:"id,pk,type:uuid"`
	CalendarID  uuid.UUID         `bun:"calendar_id,notnull,type:uuid"`
	CustomerRef string            `bun:"customer_ref,notnull"`
	Notes       string            `bun:"notes"`
	Status      AppointmentStatus `bun:"status,notnull"`
	StartTime   time.Time         `bun:"start_time,notnull"`
	EndTime     time.Time         `bun:"end_time,notnull"`
	CreatedAt   time.Time         `bun:"created_at,notnull"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// BusyIntervals converts the appointment into booked intervals for availability checks.
func (a Appointment) BusyIntervals() []TimeInterval {
	if a.Status == AppointmentStatusCancelled {
		return nil
	}
	return BusyIntervals(a.StartTime, a.EndTime, a.ID.String())
}
