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

// calendarRow stores the aggregate's value collections as jsonb documents.
type calendarRow struct {
	bun.BaseModel `bun:"table:calendars"`

	ID           uuid.UUID               `bun:"id,pk,type:uuid"`
	BusinessID   uuid.UUID               `bun:"business_id,notnull,type:uuid"`
	Type         domain.CalendarType     `bun:"type,notnull"`
	OwnerID      *uuid.UUID              `bun:"owner_id,type:uuid"`
	Name         string                  `bun:"name,notnull"`
	Description  string                  `bun:"description,notnull"`
	Status       domain.CalendarStatus   `bun:"status,notnull"`
	Settings     domain.CalendarSettings `bun:"settings,type:jsonb,notnull"`
	Availability domain.Availability     `bun:"availability,type:jsonb,notnull"`
	BookingRules []domain.BookingRule    `bun:"booking_rules,type:jsonb,notnull"`
	CreatedAt    time.Time               `bun:"created_at,notnull"`
	UpdatedAt    time.Time               `bun:"updated_at,notnull"`
}

func toCalendarRow(cal *domain.Calendar) calendarRow {
	rules := cal.BookingRules
	if rules == nil {
		rules = []domain.BookingRule{}
	}
	return calendarRow{
		ID:           cal.ID,
		BusinessID:   cal.BusinessID,
		Type:         cal.Type,
		OwnerID:      cal.OwnerID,
		Name:         cal.Name,
		Description:  cal.Description,
		Status:       cal.Status,
		Settings:     cal.Settings,
		Availability: cal.Availability,
		BookingRules: rules,
		CreatedAt:    cal.CreatedAt.UTC(),
		UpdatedAt:    cal.UpdatedAt.UTC(),
	}
}

// toDomain rebuilds the aggregate and re-checks its invariants.
func (r calendarRow) toDomain() (*domain.Calendar, error) {
	cal := &domain.Calendar{
		ID:           r.ID,
		BusinessID:   r.BusinessID,
		Type:         r.Type,
		OwnerID:      r.OwnerID,
		Name:         r.Name,
		Description:  r.Description,
		Settings:     r.Settings,
		Availability: r.Availability,
		BookingRules: r.BookingRules,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(cal.BookingRules) == 0 {
		cal.BookingRules = nil
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal, nil
}

type CalendarRepo struct {
	db *bun.DB
}

func NewCalendarRepo(db *bun.DB) *CalendarRepo {
	return &CalendarRepo{db: db}
}

func (r *CalendarRepo) Create(ctx context.Context, cal *domain.Calendar) error {
	row := toCalendarRow(cal)
	_, err := r.db.NewInsert().Model(&row).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (r *CalendarRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Calendar, error) {
	return getCalendar(ctx, r.db, id, false)
}

func (r *CalendarRepo) Update(ctx context.Context, id uuid.UUID, fn func(cal *domain.Calendar) error) (*domain.Calendar, error) {
	var out *domain.Calendar
	err := inCalendarTransaction(ctx, r.db, id, func(ctx context.Context, tx store.CalendarTx) error {
		cal, err := tx.GetCalendar(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(cal); err != nil {
			return err
		}
		if err := tx.SaveCalendar(ctx, cal); err != nil {
			return err
		}
		out = cal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getCalendar(ctx context.Context, db bun.IDB, id uuid.UUID, forUpdate bool) (*domain.Calendar, error) {
	var row calendarRow
	q := db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Limit(1)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain()
}

func (r calendarTx) GetCalendar(ctx context.Context, id uuid.UUID) (*domain.Calendar, error) {
	return getCalendar(ctx, r.tx, id, true)
}

func (r calendarTx) SaveCalendar(ctx context.Context, cal *domain.Calendar) error {
	row := toCalendarRow(cal)
	res, err := r.tx.NewUpdate().
		Model(&row).
		Column("type", "owner_id", "name", "description", "status", "settings", "availability", "booking_rules", "updated_at").
		WherePK().
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
