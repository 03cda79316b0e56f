package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"calendra/backend/internal/domain"
	"calendra/backend/internal/store"
)

const overlapConstraint = "appointments_no_overlap"

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type calendarTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) List(ctx context.Context, calendarID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listAppointments(ctx, r.db, calendarID, windowStart, windowEnd)
}

func (r *AppointmentRepo) Cancel(ctx context.Context, calendarID, appointmentID uuid.UUID) error {
	return r.InCalendarTransaction(ctx, calendarID, func(ctx context.Context, tx store.CalendarTx) error {
		return tx.CancelAppointment(ctx, calendarID, appointmentID)
	})
}

func (r *AppointmentRepo) InCalendarTransaction(ctx context.Context, calendarID uuid.UUID, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	return inCalendarTransaction(ctx, r.db, calendarID, fn)
}

// inCalendarTransaction serializes writers per calendar with a transaction-scoped advisory lock.
func inCalendarTransaction(ctx context.Context, db *bun.DB, calendarID uuid.UUID, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendar(ctx, tx, calendarID); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
}

func lockCalendar(ctx context.Context, tx bun.Tx, calendarID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", calendarID.String()).Exec(ctx)
	return err
}

func listAppointments(ctx context.Context, db bun.IDB, calendarID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("calendar_id = ?", calendarID).
		Where("status <> ?", domain.AppointmentStatusCancelled).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type insertFailure int

const (
	insertFailureOther insertFailure = iota
	insertFailureOverlap
	insertFailureDuplicateID
)

func classifyInsertError(err error) insertFailure {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return insertFailureOther
	}
	switch {
	case pgErr.Code == "23P01" && pgErr.ConstraintName == overlapConstraint:
		return insertFailureOverlap
	case pgErr.Code == "23505":
		return insertFailureDuplicateID
	}
	return insertFailureOther
}

// sameBooking reports whether a retried insert carries the stored request.
// Status is excluded because it is derived from calendar settings.
func sameBooking(existing, appt domain.Appointment) bool {
	return existing.CalendarID == appt.CalendarID &&
		existing.CustomerRef == appt.CustomerRef &&
		existing.Notes == appt.Notes &&
		existing.StartTime.Equal(appt.StartTime) &&
		existing.EndTime.Equal(appt.EndTime)
}

func (r calendarTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ID:          appt.ID,
		CalendarID:  appt.CalendarID,
		CustomerRef: appt.CustomerRef,
		Notes:       appt.Notes,
		Status:      appt.Status,
		StartTime:   appt.StartTime,
		EndTime:     appt.EndTime,
		CreatedAt:   appt.CreatedAt,
		UpdatedAt:   appt.UpdatedAt,
	}

	// The savepoint keeps the transaction usable after a constraint violation.
	if _, err := r.tx.NewRaw("SAVEPOINT create_appointment").Exec(ctx); err != nil {
		return domain.Appointment{}, err
	}
	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		if _, rbErr := r.tx.NewRaw("ROLLBACK TO SAVEPOINT create_appointment").Exec(ctx); rbErr != nil {
			return domain.Appointment{}, rbErr
		}
		kind := classifyInsertError(err)
		if kind == insertFailureOther {
			return domain.Appointment{}, err
		}

		// A retried request overlaps its own stored row, so either violation
		// may surface first.
		var existing domain.Appointment
		selectErr := r.tx.NewSelect().
			Model(&existing).
			Where("id = ?", m.ID).
			Limit(1).
			Scan(ctx)
		switch {
		case selectErr == nil:
			if !sameBooking(existing, appt) {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		case !errors.Is(selectErr, sql.ErrNoRows):
			return domain.Appointment{}, err
		case kind == insertFailureOverlap:
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	if _, err := r.tx.NewRaw("RELEASE SAVEPOINT create_appointment").Exec(ctx); err != nil {
		return domain.Appointment{}, err
	}

	return m, nil
}

func (r calendarTx) ListAppointments(ctx context.Context, calendarID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listAppointments(ctx, r.tx, calendarID, windowStart, windowEnd)
}

func (r calendarTx) CancelAppointment(ctx context.Context, calendarID, appointmentID uuid.UUID) error {
	m := domain.Appointment{ID: appointmentID, Status: domain.AppointmentStatusCancelled}
	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("status", "updated_at").
		Where("calendar_id = ?", calendarID).
		Where("id = ?", appointmentID).
		Where("status <> ?", domain.AppointmentStatusCancelled).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
