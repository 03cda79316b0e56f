package grpc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"calendra/backend/internal/domain"
	"calendra/backend/internal/service/availability"
)

const dateLayout = "2006-01-02"

// requestError is a malformed request field. It maps to InvalidArgument.
type requestError struct {
	field  string
	reason string
}

func (e *requestError) Error() string {
	return e.field + " " + e.reason
}

func badField(field, reason string) error {
	return &requestError{field: field, reason: reason}
}

func field(req *structpb.Struct, name string) (*structpb.Value, bool) {
	if req == nil {
		return nil, false
	}
	v, ok := req.GetFields()[name]
	if !ok || v == nil {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := field(req, name)
	if !ok {
		return "", nil
	}
	sv, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", badField(name, "must be a string")
	}
	return strings.TrimSpace(sv.StringValue), nil
}

func requiredString(req *structpb.Struct, name string) (string, error) {
	s, err := stringField(req, name)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", badField(name, "is required")
	}
	return s, nil
}

func uuidField(req *structpb.Struct, name string) (uuid.UUID, error) {
	s, err := requiredString(req, name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, badField(name, "must be a UUID")
	}
	return id, nil
}

func parseDate(name, s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, badField(name, "must be a YYYY-MM-DD date")
	}
	return d, nil
}

// dateField parses a civil date. The result is midnight UTC.
func dateField(req *structpb.Struct, name string) (time.Time, error) {
	s, err := requiredString(req, name)
	if err != nil {
		return time.Time{}, err
	}
	return parseDate(name, s)
}

func timeField(req *structpb.Struct, name string) (time.Time, error) {
	s, err := requiredString(req, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, badField(name, "must be an RFC 3339 timestamp")
	}
	return t, nil
}

func intValue(name string, v *structpb.Value) (int, error) {
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, badField(name, "must be a number")
	}
	n := nv.NumberValue
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, badField(name, "must be an integer")
	}
	return int(n), nil
}

func optionalInt(req *structpb.Struct, name string) (int, bool, error) {
	v, ok := field(req, name)
	if !ok {
		return 0, false, nil
	}
	n, err := intValue(name, v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// minutesField reads an optional duration in whole minutes. Absent means zero.
func minutesField(req *structpb.Struct, name string) (time.Duration, error) {
	n, _, err := optionalInt(req, name)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, badField(name, "must not be negative")
	}
	return time.Duration(n) * time.Minute, nil
}

func listField(req *structpb.Struct, name string) ([]*structpb.Value, error) {
	v, ok := field(req, name)
	if !ok {
		return nil, nil
	}
	lv, isList := v.GetKind().(*structpb.Value_ListValue)
	if !isList {
		return nil, badField(name, "must be a list")
	}
	return lv.ListValue.GetValues(), nil
}

func recurrenceField(req *structpb.Struct, name string) (*domain.RecurrenceSpec, error) {
	v, ok := field(req, name)
	if !ok {
		return nil, nil
	}
	sv, isStruct := v.GetKind().(*structpb.Value_StructValue)
	if !isStruct {
		return nil, badField(name, "must be an object")
	}
	r := sv.StructValue
	sub := func(f string) string { return name + "." + f }

	pattern, err := requiredString(r, "pattern")
	if err != nil {
		return nil, badField(sub("pattern"), "is required")
	}
	spec := &domain.RecurrenceSpec{
		Pattern:  domain.RecurrencePattern(strings.ToLower(pattern)),
		Interval: 1,
	}
	if n, ok, err := optionalInt(r, "interval"); err != nil {
		return nil, badField(sub("interval"), "must be an integer")
	} else if ok {
		spec.Interval = n
	}
	if s, err := stringField(r, "end_date"); err != nil {
		return nil, badField(sub("end_date"), "must be a string")
	} else if s != "" {
		d, err := parseDate(sub("end_date"), s)
		if err != nil {
			return nil, err
		}
		spec.EndDate = &d
	}
	if n, ok, err := optionalInt(r, "occurrences"); err != nil {
		return nil, badField(sub("occurrences"), "must be an integer")
	} else if ok {
		spec.Occurrences = &n
	}
	days, err := listField(r, "days_of_week")
	if err != nil {
		return nil, badField(sub("days_of_week"), "must be a list")
	}
	for _, d := range days {
		n, err := intValue(sub("days_of_week"), d)
		if err != nil {
			return nil, err
		}
		spec.DaysOfWeek = append(spec.DaysOfWeek, time.Weekday(n))
	}
	dom, _, err := optionalInt(r, "day_of_month")
	if err != nil {
		return nil, badField(sub("day_of_month"), "must be an integer")
	}
	spec.DayOfMonth = dom
	moy, _, err := optionalInt(r, "month_of_year")
	if err != nil {
		return nil, badField(sub("month_of_year"), "must be an integer")
	}
	spec.MonthOfYear = time.Month(moy)
	exceptions, err := listField(r, "exceptions")
	if err != nil {
		return nil, badField(sub("exceptions"), "must be a list")
	}
	for i, e := range exceptions {
		s, ok := e.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, badField(fmt.Sprintf("%s[%d]", sub("exceptions"), i), "must be a YYYY-MM-DD date")
		}
		d, err := parseDate(sub("exceptions"), s.StringValue)
		if err != nil {
			return nil, err
		}
		spec.Exceptions = append(spec.Exceptions, d)
	}
	return spec, nil
}

func fields(m map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: m}
}

func stringList(values []string) *structpb.Value {
	out := make([]*structpb.Value, 0, len(values))
	for _, v := range values {
		out = append(out, structpb.NewStringValue(v))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: out})
}

func timestamp(t time.Time) *structpb.Value {
	return structpb.NewStringValue(t.UTC().Format(time.RFC3339))
}

func slotValue(s domain.Slot) *structpb.Value {
	return structpb.NewStructValue(fields(map[string]*structpb.Value{
		"start_time":                timestamp(s.Interval.Start()),
		"end_time":                  timestamp(s.Interval.End()),
		"requires_approval":         structpb.NewBoolValue(s.Evaluation.RequiresApproval),
		"adjusted_duration_minutes": structpb.NewNumberValue(float64(s.Evaluation.AdjustedDurationMinutes)),
		"message":                   structpb.NewStringValue(s.Evaluation.Message),
		"matched_rules":             stringList(s.Evaluation.MatchedRules),
	}))
}

func slotList(slots []domain.Slot) *structpb.Value {
	out := make([]*structpb.Value, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotValue(s))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: out})
}

func daySlotsList(days []availability.DaySlots) *structpb.Value {
	out := make([]*structpb.Value, 0, len(days))
	for _, d := range days {
		out = append(out, structpb.NewStructValue(fields(map[string]*structpb.Value{
			"date":  structpb.NewStringValue(d.Date.Format(dateLayout)),
			"slots": slotList(d.Slots),
		})))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: out})
}

func appointmentValue(a domain.Appointment) *structpb.Value {
	return structpb.NewStructValue(fields(map[string]*structpb.Value{
		"id":           structpb.NewStringValue(a.ID.String()),
		"calendar_id":  structpb.NewStringValue(a.CalendarID.String()),
		"customer_ref": structpb.NewStringValue(a.CustomerRef),
		"notes":        structpb.NewStringValue(a.Notes),
		"status":       structpb.NewStringValue(string(a.Status)),
		"start_time":   timestamp(a.StartTime),
		"end_time":     timestamp(a.EndTime),
		"created_at":   timestamp(a.CreatedAt),
	}))
}

func holidayDateList(dates []availability.HolidayDate) *structpb.Value {
	out := make([]*structpb.Value, 0, len(dates))
	for _, d := range dates {
		out = append(out, structpb.NewStructValue(fields(map[string]*structpb.Value{
			"name": structpb.NewStringValue(d.Name),
			"date": structpb.NewStringValue(d.Date.Format(dateLayout)),
		})))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: out})
}

func calendarSummary(c *domain.Calendar) *structpb.Struct {
	return fields(map[string]*structpb.Value{
		"calendar_id":        structpb.NewStringValue(c.ID.String()),
		"status":             structpb.NewStringValue(string(c.Status)),
		"holidays":           structpb.NewNumberValue(float64(len(c.Availability.Holidays))),
		"maintenance":        structpb.NewNumberValue(float64(len(c.Availability.Maintenance))),
		"updated_at":         timestamp(c.UpdatedAt),
		"accepting_bookings": structpb.NewBoolValue(c.CanAcceptBookings()),
	})
}
