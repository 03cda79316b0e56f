package domain

import "errors"

var (
	ErrInvalidInterval   = errors.New("invalid interval")
	ErrSplitOutOfRange   = errors.New("split point out of range")
	ErrIncompatibleMerge = errors.New("intervals cannot be merged")

	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrBreakOutOfRange   = errors.New("break out of range")

	ErrInvalidRecurrenceField = errors.New("invalid recurrence field")
	// ErrRecurrenceOverflow means date generation hit the internal step ceiling.
	// It signals a malformed rule, not bad caller input.
	ErrRecurrenceOverflow = errors.New("recurrence step ceiling exceeded")

	ErrInvalidWeekday          = errors.New("invalid weekday")
	ErrInvalidStatusTransition = errors.New("invalid calendar status transition")

	ErrCalendarValidation = errors.New("calendar validation failed")
)

// CalendarValidationError reports an invariant violation on a Calendar.
// Every value matches ErrCalendarValidation under errors.Is.
type CalendarValidationError struct {
	Field  string
	Reason string
}

func (e *CalendarValidationError) Error() string {
	return "calendar " + e.Field + ": " + e.Reason
}

func (e *CalendarValidationError) Is(target error) bool {
	return target == ErrCalendarValidation
}

func calendarValidation(field, reason string) *CalendarValidationError {
	return &CalendarValidationError{Field: field, Reason: reason}
}

var (
	ErrCalendarNameRequired       = calendarValidation("name", "is required")
	ErrCalendarBusinessRequired   = calendarValidation("business_id", "is required")
	ErrCalendarTypeInvalid        = calendarValidation("type", "is not a known calendar type")
	ErrStaffOwnerRequired         = calendarValidation("owner_id", "is required for staff calendars")
	ErrSlotDurationTooShort       = calendarValidation("settings.slot_duration", "must be at least 5 minutes")
	ErrNegativeMinimumNotice      = calendarValidation("settings.minimum_notice", "must not be negative")
	ErrNegativeMaxAdvance         = calendarValidation("settings.max_advance_booking_days", "must not be negative")
	ErrNegativeBuffer             = calendarValidation("settings.buffer_between_slots", "must not be negative")
	ErrInvalidTimezone            = calendarValidation("settings.timezone", "is not a known time zone")
	ErrWeeklyScheduleCount        = calendarValidation("availability.weekly_schedule", "must contain exactly 7 days")
	ErrWeeklyScheduleDuplicateDay = calendarValidation("availability.weekly_schedule", "must contain each weekday once")
	ErrHolidayInvalid             = calendarValidation("availability.holidays", "holiday requires a name and a date")
	ErrMaintenanceInvalid         = calendarValidation("availability.maintenance", "window end must not be before start")
	ErrSpecialDateInvalid         = calendarValidation("availability.special_dates", "special date requires a date")
	ErrBookingRuleInvalid         = calendarValidation("booking_rules", "rule requires a name and at least one effect")
)
