package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
)

type CalendarType string

const (
	CalendarTypeBusiness CalendarType = "business"
	CalendarTypeStaff    CalendarType = "staff"
	CalendarTypeResource CalendarType = "resource"
	CalendarTypeService  CalendarType = "service"
)

type CalendarStatus string

const (
	CalendarStatusActive      CalendarStatus = "active"
	CalendarStatusInactive    CalendarStatus = "inactive"
	CalendarStatusMaintenance CalendarStatus = "maintenance"
)

const DefaultTimezone = "UTC"

type CalendarSettings struct {
	Timezone              string `json:"timezone"`
	SlotDurationMinutes   int    `json:"slot_duration_minutes"`
	MinimumNoticeMinutes  int    `json:"minimum_notice_minutes"`
	MaxAdvanceBookingDays int    `json:"max_advance_booking_days"`
	// AllowMultipleBookings is informational; overlapping bookings are always rejected.
	AllowMultipleBookings bool   `json:"allow_multiple_bookings"`
	AutoConfirm           bool   `json:"auto_confirm"`
	BufferMinutes         int    `json:"buffer_minutes"`
}

// DefaultSettings: 30 minute slots, no notice, 90 days ahead, auto-confirm.
func DefaultSettings(timezone string) CalendarSettings {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	return CalendarSettings{
		Timezone:              timezone,
		SlotDurationMinutes:   30,
		MaxAdvanceBookingDays: 90,
		AutoConfirm:           true,
	}
}

func (s CalendarSettings) validate() error {
	if _, err := time.LoadLocation(s.Timezone); err != nil || s.Timezone == "" {
		return ErrInvalidTimezone
	}
	if time.Duration(s.SlotDurationMinutes)*time.Minute < MinIntervalDuration {
		return ErrSlotDurationTooShort
	}
	if s.MinimumNoticeMinutes < 0 {
		return ErrNegativeMinimumNotice
	}
	if s.MaxAdvanceBookingDays < 0 {
		return ErrNegativeMaxAdvance
	}
	if s.BufferMinutes < 0 {
		return ErrNegativeBuffer
	}
	return nil
}

// SpecialDate overrides a single date. When SpecialHours is nil the weekday
// schedule still applies.
type SpecialDate struct {
	Date         time.Time    `json:"date"`
	IsAvailable  bool         `json:"is_available"`
	SpecialHours *DaySchedule `json:"special_hours,omitempty"`
	Reason       string       `json:"reason,omitempty"`
}

type Holiday struct {
	Name       string          `json:"name"`
	Date       time.Time       `json:"date"`
	Recurrence *RecurrenceRule `json:"recurrence,omitempty"`
}

// OccursOn compares civil dates; a recurring holiday is anchored at its Date.
func (h Holiday) OccursOn(date time.Time) bool {
	if civilDate(h.Date).Equal(civilDate(date)) {
		return true
	}
	return h.Recurrence != nil && h.Recurrence.MatchesPattern(date, h.Date)
}

// MaintenanceWindow blocks bookings on every date in [Start, End], inclusive.
type MaintenanceWindow struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason,omitempty"`
}

func (m MaintenanceWindow) covers(date time.Time) bool {
	d := civilDate(date)
	return !d.Before(civilDate(m.Start)) && !d.After(civilDate(m.End))
}

type Availability struct {
	WeeklySchedule []DaySchedule       `json:"weekly_schedule"`
	SpecialDates   []SpecialDate       `json:"special_dates,omitempty"`
	Holidays       []Holiday           `json:"holidays,omitempty"`
	Maintenance    []MaintenanceWindow `json:"maintenance,omitempty"`
}

// DefaultWeeklySchedule opens Monday to Friday 09:00-17:00 with a 12:00-13:00 lunch break.
func DefaultWeeklySchedule() []DaySchedule {
	week := make([]DaySchedule, 7)
	for wd := range week {
		if wd == int(time.Sunday) || wd == int(time.Saturday) {
			week[wd] = ClosedDay(wd)
			continue
		}
		week[wd] = DaySchedule{
			Weekday:      wd,
			Start:        "09:00",
			End:          "17:00",
			IsWorkingDay: true,
			Breaks:       []Break{{Start: "12:00", End: "13:00", Name: "Lunch"}},
		}
	}
	return week
}

// Calendar is the availability aggregate. It is not safe for concurrent
// mutation; queries may run concurrently when no mutation is in flight.
type Calendar struct {
	ID           uuid.UUID        `json:"id"`
	BusinessID   uuid.UUID        `json:"business_id"`
	Type         CalendarType     `json:"type"`
	OwnerID      *uuid.UUID       `json:"owner_id,omitempty"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Settings     CalendarSettings `json:"settings"`
	Availability Availability     `json:"availability"`
	BookingRules []BookingRule    `json:"booking_rules,omitempty"`
	Status       CalendarStatus   `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`

	clock Clock
}

type NewCalendarParams struct {
	BusinessID  uuid.UUID
	Type        CalendarType
	OwnerID     *uuid.UUID
	Name        string
	Description string
	// Settings defaults to DefaultSettings(Timezone) when nil.
	Settings *CalendarSettings
	Timezone string
}

// NewCalendar builds an active calendar with the default weekly template.
func NewCalendar(p NewCalendarParams, clock Clock) (*Calendar, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	settings := DefaultSettings(p.Timezone)
	if p.Settings != nil {
		settings = *p.Settings
	}
	now := clock.Now()
	c := &Calendar{
		ID:           id,
		BusinessID:   p.BusinessID,
		Type:         p.Type,
		OwnerID:      p.OwnerID,
		Name:         strings.TrimSpace(p.Name),
		Description:  p.Description,
		Settings:     settings,
		Availability: Availability{WeeklySchedule: DefaultWeeklySchedule()},
		Status:       CalendarStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		clock:        clock,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetClock replaces the clock used for "now"; nil restores the system clock.
func (c *Calendar) SetClock(clock Clock) { c.clock = clock }

func (c *Calendar) now() time.Time {
	if c.clock == nil {
		return SystemClock{}.Now()
	}
	return c.clock.Now()
}

func (c *Calendar) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrCalendarNameRequired
	}
	if c.BusinessID == uuid.Nil {
		return ErrCalendarBusinessRequired
	}
	switch c.Type {
	case CalendarTypeBusiness, CalendarTypeResource, CalendarTypeService:
	case CalendarTypeStaff:
		if c.OwnerID == nil || *c.OwnerID == uuid.Nil {
			return ErrStaffOwnerRequired
		}
	default:
		return ErrCalendarTypeInvalid
	}
	if err := c.Settings.validate(); err != nil {
		return err
	}
	return validateWeek(c.Availability.WeeklySchedule)
}

func validateWeek(week []DaySchedule) error {
	if len(week) != 7 {
		return ErrWeeklyScheduleCount
	}
	var seen [7]bool
	for _, d := range week {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.Weekday] {
			return ErrWeeklyScheduleDuplicateDay
		}
		seen[d.Weekday] = true
	}
	return nil
}

func (c *Calendar) Location() *time.Location {
	loc, err := time.LoadLocation(c.Settings.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Calendar) CanAcceptBookings() bool {
	return c.Status == CalendarStatusActive
}

// TransitionTo moves between ACTIVE and INACTIVE or ACTIVE and MAINTENANCE.
func (c *Calendar) TransitionTo(status CalendarStatus) error {
	if status == c.Status {
		return nil
	}
	switch {
	case c.Status == CalendarStatusActive && (status == CalendarStatusInactive || status == CalendarStatusMaintenance):
	case status == CalendarStatusActive && (c.Status == CalendarStatusInactive || c.Status == CalendarStatusMaintenance):
	default:
		return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, c.Status, status)
	}
	c.Status = status
	c.touch()
	return nil
}

// ScheduleFor returns the weekday template for date's weekday in the calendar's location.
func (c *Calendar) ScheduleFor(date time.Time) DaySchedule {
	wd := int(c.LocalDate(date).Weekday())
	for _, d := range c.Availability.WeeklySchedule {
		if d.Weekday == wd {
			return d
		}
	}
	return ClosedDay(wd)
}

func (c *Calendar) specialDate(date time.Time) (SpecialDate, bool) {
	d := civilDate(c.LocalDate(date))
	for _, s := range c.Availability.SpecialDates {
		if civilDate(s.Date).Equal(d) {
			return s, true
		}
	}
	return SpecialDate{}, false
}

// LocalDate re-reads date's wall-clock Y/M/D as midnight in the calendar location.
// Instants carrying a location other than UTC are first converted.
func (c *Calendar) LocalDate(date time.Time) time.Time {
	loc := c.Location()
	if date.Location() != time.UTC {
		date = date.In(loc)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// IsAvailableOnDate applies the date-level checks: lifecycle status, then
// holidays and maintenance, which a special date may override, then the
// weekday schedule.
func (c *Calendar) IsAvailableOnDate(date time.Time) bool {
	if !c.CanAcceptBookings() {
		return false
	}
	local := c.LocalDate(date)
	if sd, ok := c.specialDate(local); ok {
		return sd.IsAvailable
	}
	for _, h := range c.Availability.Holidays {
		if h.OccursOn(local) {
			return false
		}
	}
	for _, m := range c.Availability.Maintenance {
		if m.covers(local) {
			return false
		}
	}
	return c.ScheduleFor(local).IsWorkingDay
}

// EffectiveSchedule resolves the special-hours override or the weekday template.
func (c *Calendar) EffectiveSchedule(date time.Time) DaySchedule {
	if sd, ok := c.specialDate(date); ok && sd.SpecialHours != nil {
		return *sd.SpecialHours
	}
	return c.ScheduleFor(date)
}

// Slot is an offered interval plus the booking-rule annotations for it.
type Slot struct {
	Interval   TimeInterval
	Evaluation RuleEvaluation
}

// EvaluatedSlots lists bookable slots of the given duration on date, sorted
// by start. A zero duration means the calendar's default slot duration.
// Slots overlapping any booked interval are dropped.
func (c *Calendar) EvaluatedSlots(date time.Time, duration time.Duration, booked []TimeInterval) ([]Slot, error) {
	if duration == 0 {
		duration = time.Duration(c.Settings.SlotDurationMinutes) * time.Minute
	}
	if duration < MinIntervalDuration || duration > MaxIntervalDuration {
		return nil, fmt.Errorf("%w: slot duration %s", ErrInvalidInterval, duration)
	}
	local := c.LocalDate(date)
	if !c.IsAvailableOnDate(local) {
		return nil, nil
	}
	schedule := c.EffectiveSchedule(local)
	if !schedule.IsWorkingDay {
		return nil, nil
	}

	now := c.now()
	buffer := time.Duration(c.Settings.BufferMinutes) * time.Minute
	var out []Slot
	for start := range schedule.SlotStarts(local, duration, buffer) {
		iv, err := NewTimeInterval(start, start.Add(duration), IntervalStatusAvailable)
		if err != nil {
			continue
		}
		if overlapsAny(iv, booked) {
			continue
		}
		eval, ok := c.slotBookable(iv, now)
		if !ok {
			continue
		}
		out = append(out, Slot{Interval: iv, Evaluation: eval})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Interval.Start().Before(out[j].Interval.Start()) })
	return out, nil
}

// GetAvailableTimeSlots is EvaluatedSlots without the annotations.
func (c *Calendar) GetAvailableTimeSlots(date time.Time, duration time.Duration, booked []TimeInterval) ([]TimeInterval, error) {
	slots, err := c.EvaluatedSlots(date, duration, booked)
	if err != nil {
		return nil, err
	}
	out := make([]TimeInterval, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Interval)
	}
	return out, nil
}

// IsSlotBookable checks minimum notice, the advance-booking horizon and booking rules.
func (c *Calendar) IsSlotBookable(iv TimeInterval) bool {
	_, ok := c.slotBookable(iv, c.now())
	return ok
}

func (c *Calendar) slotBookable(iv TimeInterval, now time.Time) (RuleEvaluation, bool) {
	notice := time.Duration(c.Settings.MinimumNoticeMinutes) * time.Minute
	if iv.Start().Before(now.Add(notice)) {
		return RuleEvaluation{}, false
	}
	if days := c.Settings.MaxAdvanceBookingDays; days > 0 && iv.Start().After(now.AddDate(0, 0, days)) {
		return RuleEvaluation{}, false
	}
	eval := c.ApplyBookingRules(iv)
	return eval, eval.Allowed
}

func (c *Calendar) ApplyBookingRules(iv TimeInterval) RuleEvaluation {
	return EvaluateBookingRules(c.BookingRules, iv.Start().In(c.Location()))
}

func overlapsAny(iv TimeInterval, others []TimeInterval) bool {
	for _, o := range others {
		if iv.Overlaps(o) {
			return true
		}
	}
	return false
}

func (c *Calendar) touch() {
	c.UpdatedAt = c.now()
}

// commit re-checks the aggregate invariants after a mutation and rolls back on failure.
func (c *Calendar) commit(prev Calendar) error {
	if err := c.Validate(); err != nil {
		*c = prev
		return err
	}
	c.touch()
	return nil
}

func (c *Calendar) AddHoliday(h Holiday) error {
	if strings.TrimSpace(h.Name) == "" || h.Date.IsZero() {
		return ErrHolidayInvalid
	}
	prev := *c
	c.Availability.Holidays = append(append([]Holiday(nil), c.Availability.Holidays...), h)
	return c.commit(prev)
}

// RemoveHoliday drops every holiday on date with the given name. It reports
// whether anything was removed.
func (c *Calendar) RemoveHoliday(name string, date time.Time) bool {
	d := civilDate(date)
	kept := c.Availability.Holidays[:0:0]
	for _, h := range c.Availability.Holidays {
		if h.Name == name && civilDate(h.Date).Equal(d) {
			continue
		}
		kept = append(kept, h)
	}
	if len(kept) == len(c.Availability.Holidays) {
		return false
	}
	c.Availability.Holidays = kept
	c.touch()
	return true
}

func (c *Calendar) AddMaintenancePeriod(start, end time.Time, reason string) error {
	if start.IsZero() || end.IsZero() || civilDate(end).Before(civilDate(start)) {
		return ErrMaintenanceInvalid
	}
	prev := *c
	c.Availability.Maintenance = append(append([]MaintenanceWindow(nil), c.Availability.Maintenance...), MaintenanceWindow{
		Start:  start,
		End:    end,
		Reason: reason,
	})
	return c.commit(prev)
}

func (c *Calendar) AddBookingRule(rule BookingRule) error {
	if err := rule.validate(); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	prev := *c
	c.BookingRules = append(append([]BookingRule(nil), c.BookingRules...), rule)
	return c.commit(prev)
}

// UpdateWorkingHours replaces the template for weekday (0=Sunday..6=Saturday).
func (c *Calendar) UpdateWorkingHours(weekday int, schedule DaySchedule) error {
	if weekday < 0 || weekday > 6 {
		return fmt.Errorf("%w: %d", ErrInvalidWeekday, weekday)
	}
	schedule.Weekday = weekday
	if err := schedule.Validate(); err != nil {
		return err
	}
	prev := *c
	week := append([]DaySchedule(nil), c.Availability.WeeklySchedule...)
	replaced := false
	for i := range week {
		if week[i].Weekday == weekday {
			week[i] = schedule
			replaced = true
		}
	}
	if !replaced {
		week = append(week, schedule)
	}
	c.Availability.WeeklySchedule = week
	return c.commit(prev)
}

// AddSpecialDate stores an override, replacing any existing one for the same date.
func (c *Calendar) AddSpecialDate(sd SpecialDate) error {
	if sd.Date.IsZero() {
		return ErrSpecialDateInvalid
	}
	if sd.SpecialHours != nil {
		if err := sd.SpecialHours.Validate(); err != nil {
			return err
		}
	}
	prev := *c
	d := civilDate(sd.Date)
	dates := make([]SpecialDate, 0, len(c.Availability.SpecialDates)+1)
	for _, existing := range c.Availability.SpecialDates {
		if !civilDate(existing.Date).Equal(d) {
			dates = append(dates, existing)
		}
	}
	c.Availability.SpecialDates = append(dates, sd)
	return c.commit(prev)
}

func (c *Calendar) UpdateSettings(s CalendarSettings) error {
	if err := s.validate(); err != nil {
		return err
	}
	prev := *c
	c.Settings = s
	return c.commit(prev)
}
