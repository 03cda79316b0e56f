package availability

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"calendra/backend/internal/domain"
	"calendra/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// ErrSlotUnavailable means the requested start is not among the currently offered slots.
var ErrSlotUnavailable = errors.New("slot not available")

const (
	DefaultMaxRangeDays = 31
	MaxHolidayRangeDays = 3660
	maxIdempotencyKey   = 256
)

type Config struct {
	// Cache is optional.
	Cache           store.CalendarCache
	Clock           domain.Clock
	Logger          *slog.Logger
	DefaultTimezone string
	MaxRangeDays    int
}

type Service struct {
	calendars    store.CalendarRepository
	appointments store.AppointmentRepository
	cache        store.CalendarCache
	clock        domain.Clock
	logger       *slog.Logger
	defaultTZ    string
	maxRangeDays int
}

func NewService(calendars store.CalendarRepository, appointments store.AppointmentRepository, cfg Config) *Service {
	s := &Service{
		calendars:    calendars,
		appointments: appointments,
		cache:        cfg.Cache,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		defaultTZ:    cfg.DefaultTimezone,
		maxRangeDays: cfg.MaxRangeDays,
	}
	if s.clock == nil {
		s.clock = domain.SystemClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.defaultTZ == "" {
		s.defaultTZ = domain.DefaultTimezone
	}
	if s.maxRangeDays <= 0 {
		s.maxRangeDays = DefaultMaxRangeDays
	}
	return s
}

type CreateCalendarInput struct {
	BusinessID  uuid.UUID
	Type        domain.CalendarType
	OwnerID     *uuid.UUID
	Name        string
	Description string
	Timezone    string
	// Settings overrides the defaults when set; Timezone is then ignored.
	Settings *domain.CalendarSettings
}

func (s *Service) CreateCalendar(ctx context.Context, in CreateCalendarInput) (*domain.Calendar, error) {
	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = s.defaultTZ
	}
	cal, err := domain.NewCalendar(domain.NewCalendarParams{
		BusinessID:  in.BusinessID,
		Type:        in.Type,
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		Description: in.Description,
		Settings:    in.Settings,
		Timezone:    tz,
	}, s.clock)
	if err != nil {
		return nil, err
	}
	if err := s.calendars.Create(ctx, cal); err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cal)
	return cal, nil
}

func (s *Service) GetCalendar(ctx context.Context, id uuid.UUID) (*domain.Calendar, error) {
	if id == uuid.Nil {
		return nil, validationError("calendar_id is required")
	}
	if s.cache != nil {
		cal, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("calendar cache read failed", "calendar_id", id, "err", err)
		} else if ok {
			cal.SetClock(s.clock)
			return cal, nil
		}
	}
	cal, err := s.calendars.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cal.SetClock(s.clock)
	s.cacheSet(ctx, cal)
	return cal, nil
}

func (s *Service) IsAvailableOnDate(ctx context.Context, id uuid.UUID, date time.Time) (bool, error) {
	if date.IsZero() {
		return false, validationError("date is required")
	}
	cal, err := s.GetCalendar(ctx, id)
	if err != nil {
		return false, err
	}
	return cal.IsAvailableOnDate(date), nil
}

// ListSlots returns the bookable slots on date. A zero duration uses the
// calendar's slot duration.
func (s *Service) ListSlots(ctx context.Context, id uuid.UUID, date time.Time, duration time.Duration) ([]domain.Slot, error) {
	if date.IsZero() {
		return nil, validationError("date is required")
	}
	if duration < 0 {
		return nil, validationError("duration must not be negative")
	}
	cal, err := s.GetCalendar(ctx, id)
	if err != nil {
		return nil, err
	}
	day := cal.LocalDate(date)
	appts, err := s.appointments.List(ctx, cal.ID, day.UTC(), day.AddDate(0, 0, 1).UTC())
	if err != nil {
		return nil, err
	}
	return cal.EvaluatedSlots(day, duration, busyIntervals(appts, uuid.Nil))
}

type DaySlots struct {
	Date  time.Time
	Slots []domain.Slot
}

// ListSlotsInRange lists slots for every date in [from, to].
func (s *Service) ListSlotsInRange(ctx context.Context, id uuid.UUID, from, to time.Time, duration time.Duration) ([]DaySlots, error) {
	if from.IsZero() || to.IsZero() {
		return nil, validationError("from and to are required")
	}
	if duration < 0 {
		return nil, validationError("duration must not be negative")
	}
	cal, err := s.GetCalendar(ctx, id)
	if err != nil {
		return nil, err
	}
	first := cal.LocalDate(from)
	last := cal.LocalDate(to)
	if last.Before(first) {
		return nil, validationError("to must not be before from")
	}
	days := 0
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days++
	}
	if days > s.maxRangeDays {
		return nil, validationError("date range too long")
	}

	appts, err := s.appointments.List(ctx, cal.ID, first.UTC(), last.AddDate(0, 0, 1).UTC())
	if err != nil {
		return nil, err
	}
	busy := busyIntervals(appts, uuid.Nil)

	out := make([]DaySlots, 0, days)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		slots, err := cal.EvaluatedSlots(d, duration, busy)
		if err != nil {
			return nil, err
		}
		out = append(out, DaySlots{Date: d, Slots: slots})
	}
	return out, nil
}

type HolidayDate struct {
	Name string
	Date time.Time
}

// ListHolidayDates lists the dates within [from, to] on which a one-off or
// recurring holiday falls, sorted by date.
func (s *Service) ListHolidayDates(ctx context.Context, id uuid.UUID, from, to time.Time) ([]HolidayDate, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, validationError("from must not be after to")
	}
	first := civil(from)
	last := civil(to)
	if last.Sub(first) >= MaxHolidayRangeDays*24*time.Hour {
		return nil, validationError("date range too long")
	}
	cal, err := s.GetCalendar(ctx, id)
	if err != nil {
		return nil, err
	}

	var out []HolidayDate
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		for _, h := range cal.Availability.Holidays {
			if h.OccursOn(d) {
				out = append(out, HolidayDate{Name: h.Name, Date: d})
			}
		}
	}
	return out, nil
}

type HolidayInput struct {
	Name       string
	Date       time.Time
	Recurrence *domain.RecurrenceSpec
}

func (s *Service) AddHoliday(ctx context.Context, id uuid.UUID, in HolidayInput) (*domain.Calendar, error) {
	h := domain.Holiday{Name: strings.TrimSpace(in.Name), Date: in.Date}
	if in.Recurrence != nil {
		rule, err := domain.NewRecurrenceRule(*in.Recurrence)
		if err != nil {
			return nil, err
		}
		h.Recurrence = &rule
	}
	return s.update(ctx, id, func(cal *domain.Calendar) error {
		return cal.AddHoliday(h)
	})
}

func (s *Service) RemoveHoliday(ctx context.Context, id uuid.UUID, name string, date time.Time) (*domain.Calendar, error) {
	return s.update(ctx, id, func(cal *domain.Calendar) error {
		if !cal.RemoveHoliday(strings.TrimSpace(name), date) {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Service) AddMaintenancePeriod(ctx context.Context, id uuid.UUID, start, end time.Time, reason string) (*domain.Calendar, error) {
	return s.update(ctx, id, func(cal *domain.Calendar) error {
		return cal.AddMaintenancePeriod(start, end, reason)
	})
}

func (s *Service) AddBookingRule(ctx context.Context, id uuid.UUID, rule domain.BookingRule) (*domain.Calendar, error) {
	return s.update(ctx, id, func(cal *domain.Calendar) error {
		return cal.AddBookingRule(rule)
	})
}

func (s *Service) UpdateWorkingHours(ctx context.Context, id uuid.UUID, weekday int, schedule domain.DaySchedule) (*domain.Calendar, error) {
	return s.update(ctx, id, func(cal *domain.Calendar) error {
		return cal.UpdateWorkingHours(weekday, schedule)
	})
}

func (s *Service) AddSpecialDate(ctx context.Context, id uuid.UUID, sd domain.SpecialDate) (*domain.Calendar, error) {
	return s.update(ctx, id, func(cal *domain.Calendar) error {
		return cal.AddSpecialDate(sd)
	})
}

func (s *Service) UpdateSettings(ctx context.Context, id uuid.UUID, settings domain.CalendarSettings) (*domain.Calendar, error) {
	return s.update(ctx, id, func(cal *domain.Calendar) error {
		return cal.UpdateSettings(settings)
	})
}

func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status domain.CalendarStatus) (*domain.Calendar, error) {
	return s.update(ctx, id, func(cal *domain.Calendar) error {
		return cal.TransitionTo(status)
	})
}

func (s *Service) update(ctx context.Context, id uuid.UUID, fn func(cal *domain.Calendar) error) (*domain.Calendar, error) {
	if id == uuid.Nil {
		return nil, validationError("calendar_id is required")
	}
	cal, err := s.calendars.Update(ctx, id, func(cal *domain.Calendar) error {
		cal.SetClock(s.clock)
		return fn(cal)
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, id); err != nil {
			s.logger.Warn("calendar cache invalidation failed", "calendar_id", id, "err", err)
		}
	}
	return cal, nil
}

type BookSlotInput struct {
	CalendarID  uuid.UUID
	CustomerRef string
	Notes       string
	StartTime   time.Time
	// Duration defaults to the calendar's slot duration.
	Duration       time.Duration
	IdempotencyKey string
}

// BookSlot books one of the currently offered slots. The offer check and the
// insert run under the calendar's lock.
func (s *Service) BookSlot(ctx context.Context, in BookSlotInput) (domain.Appointment, error) {
	if in.CalendarID == uuid.Nil {
		return domain.Appointment{}, validationError("calendar_id is required")
	}
	customer := strings.TrimSpace(in.CustomerRef)
	if customer == "" {
		return domain.Appointment{}, validationError("customer_ref is required")
	}
	if in.StartTime.IsZero() {
		return domain.Appointment{}, validationError("start_time is required")
	}
	if in.Duration < 0 {
		return domain.Appointment{}, validationError("duration must not be negative")
	}

	appt := domain.Appointment{
		CalendarID:  in.CalendarID,
		CustomerRef: customer,
		Notes:       in.Notes,
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxIdempotencyKey {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("calendra:book_slot:"+in.CalendarID.String()+":"+key))
	}

	start := in.StartTime.UTC()
	var out domain.Appointment
	err := s.appointments.InCalendarTransaction(ctx, in.CalendarID, func(ctx context.Context, tx store.CalendarTx) error {
		cal, err := tx.GetCalendar(ctx, in.CalendarID)
		if err != nil {
			return err
		}
		cal.SetClock(s.clock)
		if !cal.CanAcceptBookings() {
			return ErrSlotUnavailable
		}

		day := cal.LocalDate(start.In(cal.Location()))
		booked, err := tx.ListAppointments(ctx, cal.ID, day.UTC(), day.AddDate(0, 0, 1).UTC())
		if err != nil {
			return err
		}
		slots, err := cal.EvaluatedSlots(day, in.Duration, busyIntervals(booked, appt.ID))
		if err != nil {
			return err
		}
		slot, ok := findSlot(slots, start)
		if !ok {
			return ErrSlotUnavailable
		}

		appt.StartTime = slot.Interval.Start().UTC()
		appt.EndTime = slot.Interval.End().UTC()
		appt.Status = domain.AppointmentStatusPending
		if cal.Settings.AutoConfirm && !slot.Evaluation.RequiresApproval {
			appt.Status = domain.AppointmentStatusConfirmed
		}
		created, err := tx.CreateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (s *Service) CancelAppointment(ctx context.Context, calendarID, appointmentID uuid.UUID) error {
	if calendarID == uuid.Nil {
		return validationError("calendar_id is required")
	}
	if appointmentID == uuid.Nil {
		return validationError("appointment_id is required")
	}
	return s.appointments.Cancel(ctx, calendarID, appointmentID)
}

func (s *Service) cacheSet(ctx context.Context, cal *domain.Calendar) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cal); err != nil {
		s.logger.Warn("calendar cache write failed", "calendar_id", cal.ID, "err", err)
	}
}

// busyIntervals skips the appointment being retried under an idempotency key
// so its own row does not hide the slot.
func busyIntervals(appts []domain.Appointment, skip uuid.UUID) []domain.TimeInterval {
	var out []domain.TimeInterval
	for _, a := range appts {
		if skip != uuid.Nil && a.ID == skip {
			continue
		}
		out = append(out, a.BusyIntervals()...)
	}
	return out
}

func findSlot(slots []domain.Slot, start time.Time) (domain.Slot, bool) {
	for _, s := range slots {
		if s.Interval.Start().Equal(start) {
			return s, true
		}
	}
	return domain.Slot{}, false
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
