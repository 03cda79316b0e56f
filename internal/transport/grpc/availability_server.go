package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"calendra/backend/internal/domain"
	"calendra/backend/internal/service/availability"
	"calendra/backend/internal/store"
)

type AvailabilityServer struct {
	svc availabilityService
	log *slog.Logger
}

var _ AvailabilityServiceServer = (*AvailabilityServer)(nil)

type availabilityService interface {
	IsAvailableOnDate(ctx context.Context, id uuid.UUID, date time.Time) (bool, error)
	ListSlots(ctx context.Context, id uuid.UUID, date time.Time, duration time.Duration) ([]domain.Slot, error)
	ListSlotsInRange(ctx context.Context, id uuid.UUID, from, to time.Time, duration time.Duration) ([]availability.DaySlots, error)
	BookSlot(ctx context.Context, in availability.BookSlotInput) (domain.Appointment, error)
	CancelAppointment(ctx context.Context, calendarID, appointmentID uuid.UUID) error
	AddHoliday(ctx context.Context, id uuid.UUID, in availability.HolidayInput) (*domain.Calendar, error)
	AddMaintenancePeriod(ctx context.Context, id uuid.UUID, start, end time.Time, reason string) (*domain.Calendar, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.CalendarStatus) (*domain.Calendar, error)
	CreateCalendar(ctx context.Context, in availability.CreateCalendarInput) (*domain.Calendar, error)
	ListHolidayDates(ctx context.Context, id uuid.UUID, from, to time.Time) ([]availability.HolidayDate, error)
}

func NewAvailabilityServer(svc availabilityService, log *slog.Logger) *AvailabilityServer {
	if log == nil {
		log = slog.Default()
	}
	return &AvailabilityServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.availability")),
	}
}

func (s *AvailabilityServer) IsAvailableOnDate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", MethodIsAvailableOnDate))

	id, err := uuidField(req, "calendar_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	date, err := dateField(req, "date")
	if err != nil {
		return nil, invalidRequest(log, err)
	}

	ok, err := s.svc.IsAvailableOnDate(ctx, id, date)
	if err != nil {
		return nil, toStatus(log, "availability check failed", err, slog.String("calendar_id", id.String()))
	}

	log.Debug("availability checked", slog.String("calendar_id", id.String()), slog.String("date", date.Format(dateLayout)), slog.Bool("available", ok))
	return fields(map[string]*structpb.Value{
		"available": structpb.NewBoolValue(ok),
	}), nil
}

func (s *AvailabilityServer) ListSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", MethodListSlots))

	id, err := uuidField(req, "calendar_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	date, err := dateField(req, "date")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	duration, err := minutesField(req, "duration_minutes")
	if err != nil {
		return nil, invalidRequest(log, err)
	}

	slots, err := s.svc.ListSlots(ctx, id, date, duration)
	if err != nil {
		return nil, toStatus(log, "slot listing failed", err, slog.String("calendar_id", id.String()))
	}

	log.Debug("slots listed", slog.String("calendar_id", id.String()), slog.String("date", date.Format(dateLayout)), slog.Int("count", len(slots)))
	return fields(map[string]*structpb.Value{
		"slots": slotList(slots),
	}), nil
}

func (s *AvailabilityServer) ListSlotsInRange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", MethodListSlotsInRange))

	id, err := uuidField(req, "calendar_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	from, err := dateField(req, "from")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	to, err := dateField(req, "to")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	duration, err := minutesField(req, "duration_minutes")
	if err != nil {
		return nil, invalidRequest(log, err)
	}

	days, err := s.svc.ListSlotsInRange(ctx, id, from, to, duration)
	if err != nil {
		return nil, toStatus(log, "slot range listing failed", err, slog.String("calendar_id", id.String()))
	}

	log.Debug("slot range listed", slog.String("calendar_id", id.String()), slog.Int("days", len(days)))
	return fields(map[string]*structpb.Value{
		"days": daySlotsList(days),
	}), nil
}

func (s *AvailabilityServer) BookSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", MethodBookSlot))

	id, err := uuidField(req, "calendar_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	customer, err := requiredString(req, "customer_ref")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	notes, err := stringField(req, "notes")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	start, err := timeField(req, "start_time")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	duration, err := minutesField(req, "duration_minutes")
	if err != nil {
		return nil, invalidRequest(log, err)
	}

	appt, err := s.svc.BookSlot(ctx, availability.BookSlotInput{
		CalendarID:     id,
		CustomerRef:    customer,
		Notes:          notes,
		StartTime:      start,
		Duration:       duration,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, toStatus(log, "slot booking failed", err,
			slog.String("calendar_id", id.String()),
			slog.Time("start_time", start),
		)
	}

	log.Info(
		"slot booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("calendar_id", appt.CalendarID.String()),
		slog.String("status", string(appt.Status)),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)
	return fields(map[string]*structpb.Value{
		"appointment": appointmentValue(appt),
	}), nil
}

func (s *AvailabilityServer) CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", MethodCancelAppointment))

	calID, err := uuidField(req, "calendar_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	apptID, err := uuidField(req, "appointment_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}

	if err := s.svc.CancelAppointment(ctx, calID, apptID); err != nil {
		return nil, toStatus(log, "appointment cancel failed", err,
			slog.String("calendar_id", calID.String()),
			slog.String("appointment_id", apptID.String()),
		)
	}

	log.Info("appointment cancelled", slog.String("calendar_id", calID.String()), slog.String("appointment_id", apptID.String()))
	return fields(map[string]*structpb.Value{}), nil
}

func (s *AvailabilityServer) AddHoliday(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", MethodAddHoliday))

	id, err := uuidField(req, "calendar_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	date, err := dateField(req, "date")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	rec, err := recurrenceField(req, "recurrence")
	if err != nil {
		return nil, invalidRequest(log, err)
	}

	cal, err := s.svc.AddHoliday(ctx, id, availability.HolidayInput{
		Name:       name,
		Date:       date,
		Recurrence: rec,
	})
	if err != nil {
		return nil, toStatus(log, "holiday add failed", err, slog.String("calendar_id", id.String()))
	}

	log.Info("holiday added", slog.String("calendar_id", id.String()), slog.String("name", name), slog.Bool("recurring", rec != nil))
	return calendarSummary(cal), nil
}

func (s *AvailabilityServer) AddMaintenancePeriod(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", MethodAddMaintenancePeriod))

	id, err := uuidField(req, "calendar_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	start, err := dateField(req, "start_date")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	end, err := dateField(req, "end_date")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	reason, err := stringField(req, "reason")
	if err != nil {
		return nil, invalidRequest(log, err)
	}

	cal, err := s.svc.AddMaintenancePeriod(ctx, id, start, end, reason)
	if err != nil {
		return nil, toStatus(log, "maintenance add failed", err, slog.String("calendar_id", id.String()))
	}

	log.Info(
		"maintenance period added",
		slog.String("calendar_id", id.String()),
		slog.String("start_date", start.Format(dateLayout)),
		slog.String("end_date", end.Format(dateLayout)),
	)
	return calendarSummary(cal), nil
}

func (s *AvailabilityServer) SetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", MethodSetStatus))

	id, err := uuidField(req, "calendar_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	st, err := requiredString(req, "status")
	if err != nil {
		return nil, invalidRequest(log, err)
	}

	cal, err := s.svc.SetStatus(ctx, id, domain.CalendarStatus(strings.ToLower(st)))
	if err != nil {
		return nil, toStatus(log, "status change failed", err, slog.String("calendar_id", id.String()))
	}

	log.Info("calendar status changed", slog.String("calendar_id", id.String()), slog.String("status", string(cal.Status)))
	return calendarSummary(cal), nil
}

func (s *AvailabilityServer) CreateCalendar(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", MethodCreateCalendar))

	businessID, err := uuidField(req, "business_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	calType, err := requiredString(req, "type")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	name, err := stringField(req, "name")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	description, err := stringField(req, "description")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	tz, err := stringField(req, "timezone")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	var owner *uuid.UUID
	if _, ok := field(req, "owner_id"); ok {
		id, err := uuidField(req, "owner_id")
		if err != nil {
			return nil, invalidRequest(log, err)
		}
		owner = &id
	}

	cal, err := s.svc.CreateCalendar(ctx, availability.CreateCalendarInput{
		BusinessID:  businessID,
		Type:        domain.CalendarType(strings.ToLower(calType)),
		OwnerID:     owner,
		Name:        name,
		Description: description,
		Timezone:    tz,
	})
	if err != nil {
		return nil, toStatus(log, "calendar create failed", err, slog.String("business_id", businessID.String()))
	}

	log.Info(
		"calendar created",
		slog.String("calendar_id", cal.ID.String()),
		slog.String("business_id", cal.BusinessID.String()),
		slog.String("type", string(cal.Type)),
		slog.String("timezone", cal.Settings.Timezone),
	)
	return calendarSummary(cal), nil
}

func (s *AvailabilityServer) ListHolidayDates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", MethodListHolidayDates))

	id, err := uuidField(req, "calendar_id")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	from, err := dateField(req, "from")
	if err != nil {
		return nil, invalidRequest(log, err)
	}
	to, err := dateField(req, "to")
	if err != nil {
		return nil, invalidRequest(log, err)
	}

	dates, err := s.svc.ListHolidayDates(ctx, id, from, to)
	if err != nil {
		return nil, toStatus(log, "holiday listing failed", err, slog.String("calendar_id", id.String()))
	}

	log.Debug("holiday dates listed", slog.String("calendar_id", id.String()), slog.Int("count", len(dates)))
	return fields(map[string]*structpb.Value{
		"holidays": holidayDateList(dates),
	}), nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func invalidRequest(log *slog.Logger, err error) error {
	var rErr *requestError
	if errors.As(err, &rErr) {
		log.Warn("invalid request", slog.String("reason", "invalid_field"), slog.String("field", rErr.field))
	} else {
		log.Warn("invalid request", slog.Any("err", err))
	}
	return status.Error(codes.InvalidArgument, err.Error())
}

var invalidArgumentErrs = []error{
	domain.ErrCalendarValidation,
	domain.ErrInvalidInterval,
	domain.ErrSplitOutOfRange,
	domain.ErrIncompatibleMerge,
	domain.ErrInvalidTimeFormat,
	domain.ErrInvalidTimeRange,
	domain.ErrBreakOutOfRange,
	domain.ErrInvalidRecurrenceField,
	domain.ErrInvalidWeekday,
}

// toStatus maps a service error to a gRPC status and logs it at the level
// its code deserves. Internal details never reach the client.
func toStatus(log *slog.Logger, msg string, err error, attrs ...any) error {
	args := append([]any{slog.Any("err", err)}, attrs...)

	switch {
	case errors.Is(err, domain.ErrRecurrenceOverflow):
		log.Error(msg, append(args, slog.String("reason", "recurrence_overflow"))...)
		return status.Error(codes.Internal, "internal error")
	case errors.Is(err, store.ErrNotFound):
		log.Info(msg, args...)
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, store.ErrConflict), errors.Is(err, availability.ErrSlotUnavailable):
		log.Info(msg, args...)
		return status.Error(codes.FailedPrecondition, "That slot is no longer available. Pick a different time.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info(msg, args...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different booking. Try again.")
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		log.Info(msg, args...)
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(msg, args...)
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		log.Info(msg, args...)
		return status.Error(codes.Canceled, "request canceled")
	}

	var vErr *availability.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	}
	for _, target := range invalidArgumentErrs {
		if errors.Is(err, target) {
			log.Warn("invalid request", args...)
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}

	log.Error(msg, args...)
	return status.Error(codes.Internal, "internal error")
}
