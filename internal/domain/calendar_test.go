package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// tickingClock advances one minute per call.
type tickingClock struct {
	t time.Time
}

func (c *tickingClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newBusinessCalendar(t *testing.T, now time.Time) *Calendar {
	t.Helper()
	c, err := NewCalendar(NewCalendarParams{
		BusinessID: uuid.New(),
		Type:       CalendarTypeBusiness,
		Name:       "Front desk",
	}, FixedClock{T: now})
	if err != nil {
		t.Fatalf("NewCalendar error: %v", err)
	}
	return c
}

func slotStarts(slots []TimeInterval) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start().Format("15:04"))
	}
	return out
}

func TestNewCalendar_StaffRequiresOwner(t *testing.T) {
	business := uuid.New()
	_, err := NewCalendar(NewCalendarParams{BusinessID: business, Type: CalendarTypeStaff, Name: "Dr. Ade"}, nil)
	if !errors.Is(err, ErrStaffOwnerRequired) {
		t.Fatalf("err = %v, want %v", err, ErrStaffOwnerRequired)
	}
	if !errors.Is(err, ErrCalendarValidation) {
		t.Fatalf("staff owner error must match ErrCalendarValidation")
	}

	c, err := NewCalendar(NewCalendarParams{BusinessID: business, Type: CalendarTypeBusiness, Name: "Dr. Ade"}, nil)
	if err != nil {
		t.Fatalf("business calendar error: %v", err)
	}
	if c.Status != CalendarStatusActive || len(c.Availability.WeeklySchedule) != 7 {
		t.Fatalf("calendar = %+v, want active with 7 day template", c)
	}
	if c.Settings.SlotDurationMinutes != 30 || c.Settings.Timezone != DefaultTimezone {
		t.Fatalf("settings = %+v, want defaults", c.Settings)
	}

	owner := uuid.New()
	if _, err := NewCalendar(NewCalendarParams{BusinessID: business, Type: CalendarTypeStaff, OwnerID: &owner, Name: "Dr. Ade"}, nil); err != nil {
		t.Fatalf("staff calendar with owner error: %v", err)
	}
}

func TestNewCalendar_Validation(t *testing.T) {
	business := uuid.New()
	short := DefaultSettings("")
	short.SlotDurationMinutes = 4
	badTZ := DefaultSettings("Mars/Olympus")

	tests := []struct {
		name    string
		params  NewCalendarParams
		wantErr error
	}{
		{name: "no name", params: NewCalendarParams{BusinessID: business, Type: CalendarTypeBusiness, Name: "  "}, wantErr: ErrCalendarNameRequired},
		{name: "no business", params: NewCalendarParams{Type: CalendarTypeBusiness, Name: "x"}, wantErr: ErrCalendarBusinessRequired},
		{name: "bad type", params: NewCalendarParams{BusinessID: business, Type: "room", Name: "x"}, wantErr: ErrCalendarTypeInvalid},
		{name: "short slot", params: NewCalendarParams{BusinessID: business, Type: CalendarTypeBusiness, Name: "x", Settings: &short}, wantErr: ErrSlotDurationTooShort},
		{name: "bad timezone", params: NewCalendarParams{BusinessID: business, Type: CalendarTypeBusiness, Name: "x", Settings: &badTZ}, wantErr: ErrInvalidTimezone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCalendar(tt.params, nil); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCalendar_WeeklyScheduleInvariant(t *testing.T) {
	c := newBusinessCalendar(t, day(2024, 6, 1))

	c.Availability.WeeklySchedule = c.Availability.WeeklySchedule[:6]
	if err := c.Validate(); !errors.Is(err, ErrWeeklyScheduleCount) {
		t.Fatalf("err = %v, want %v", err, ErrWeeklyScheduleCount)
	}

	c = newBusinessCalendar(t, day(2024, 6, 1))
	c.Availability.WeeklySchedule[6].Weekday = 5
	if err := c.Validate(); !errors.Is(err, ErrWeeklyScheduleDuplicateDay) {
		t.Fatalf("err = %v, want %v", err, ErrWeeklyScheduleDuplicateDay)
	}
}

func TestCalendar_MaintenanceBlocksDates(t *testing.T) {
	c := newBusinessCalendar(t, day(2024, 6, 1))
	if err := c.AddMaintenancePeriod(day(2024, 6, 10), day(2024, 6, 12), "floor works"); err != nil {
		t.Fatalf("AddMaintenancePeriod error: %v", err)
	}
	for _, d := range []time.Time{day(2024, 6, 10), day(2024, 6, 11), day(2024, 6, 12)} {
		if c.IsAvailableOnDate(d) {
			t.Fatalf("%s must be blocked by maintenance", d.Format(time.DateOnly))
		}
	}
	if !c.IsAvailableOnDate(day(2024, 6, 13)) {
		t.Fatalf("2024-06-13 must be available")
	}
	if err := c.AddMaintenancePeriod(day(2024, 6, 12), day(2024, 6, 10), ""); !errors.Is(err, ErrMaintenanceInvalid) {
		t.Fatalf("err = %v, want %v", err, ErrMaintenanceInvalid)
	}
}

func TestCalendar_HolidaysAndSpecialDates(t *testing.T) {
	c := newBusinessCalendar(t, day(2024, 6, 1))
	rule := mustRule(t, RecurrenceSpec{Pattern: RecurrenceYearly, Interval: 1, DayOfMonth: 25, MonthOfYear: time.December})
	if err := c.AddHoliday(Holiday{Name: "Christmas", Date: day(2023, 12, 25), Recurrence: &rule}); err != nil {
		t.Fatalf("AddHoliday error: %v", err)
	}
	if err := c.AddHoliday(Holiday{Name: "Founders", Date: day(2024, 7, 1)}); err != nil {
		t.Fatalf("AddHoliday error: %v", err)
	}
	if c.IsAvailableOnDate(day(2024, 12, 25)) {
		t.Fatalf("recurring holiday must block 2024-12-25")
	}
	if c.IsAvailableOnDate(day(2024, 7, 1)) {
		t.Fatalf("one-off holiday must block 2024-07-01")
	}
	if err := c.AddHoliday(Holiday{Date: day(2024, 7, 2)}); !errors.Is(err, ErrHolidayInvalid) {
		t.Fatalf("err = %v, want %v", err, ErrHolidayInvalid)
	}

	if err := c.AddSpecialDate(SpecialDate{Date: day(2024, 7, 1), IsAvailable: true, Reason: "open anyway"}); err != nil {
		t.Fatalf("AddSpecialDate error: %v", err)
	}
	if !c.IsAvailableOnDate(day(2024, 7, 1)) {
		t.Fatalf("special date must override the holiday")
	}

	if !c.RemoveHoliday("Founders", day(2024, 7, 1)) {
		t.Fatalf("RemoveHoliday reported nothing removed")
	}
	if c.RemoveHoliday("Founders", day(2024, 7, 1)) {
		t.Fatalf("second RemoveHoliday must report false")
	}

	// Saturday with special opening hours.
	hours, err := NewDaySchedule(6, "10:00", "12:00", true)
	if err != nil {
		t.Fatalf("NewDaySchedule error: %v", err)
	}
	if err := c.AddSpecialDate(SpecialDate{Date: day(2024, 6, 15), IsAvailable: true, SpecialHours: &hours}); err != nil {
		t.Fatalf("AddSpecialDate error: %v", err)
	}
	slots, err := c.GetAvailableTimeSlots(day(2024, 6, 15), 0, nil)
	if err != nil {
		t.Fatalf("GetAvailableTimeSlots error: %v", err)
	}
	want := []string{"10:00", "10:30", "11:00", "11:30"}
	got := slotStarts(slots)
	if len(got) != len(want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slots = %v, want %v", got, want)
		}
	}

	if err := c.AddSpecialDate(SpecialDate{Date: day(2024, 6, 15), IsAvailable: false}); err != nil {
		t.Fatalf("AddSpecialDate error: %v", err)
	}
	if len(c.Availability.SpecialDates) != 2 {
		t.Fatalf("len(special dates) = %d, want 2 after replacing the 06-15 entry", len(c.Availability.SpecialDates))
	}
	if c.IsAvailableOnDate(day(2024, 6, 15)) {
		t.Fatalf("replaced special date must close 2024-06-15")
	}
}

func TestCalendar_StatusTransitions(t *testing.T) {
	c := newBusinessCalendar(t, day(2024, 6, 1))
	if err := c.TransitionTo(CalendarStatusMaintenance); err != nil {
		t.Fatalf("active to maintenance error: %v", err)
	}
	if c.IsAvailableOnDate(day(2024, 6, 10)) {
		t.Fatalf("calendar under maintenance must not be available")
	}
	if err := c.TransitionTo(CalendarStatusInactive); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidStatusTransition)
	}
	if err := c.TransitionTo(CalendarStatusActive); err != nil {
		t.Fatalf("maintenance to active error: %v", err)
	}
	if err := c.TransitionTo(CalendarStatusInactive); err != nil {
		t.Fatalf("active to inactive error: %v", err)
	}
	slots, err := c.GetAvailableTimeSlots(day(2024, 6, 10), 0, nil)
	if err != nil || len(slots) != 0 {
		t.Fatalf("inactive slots = %v, %v; want none", slots, err)
	}
}

func TestCalendar_SlotsExcludeBookedIntervals(t *testing.T) {
	c := newBusinessCalendar(t, day(2024, 6, 1))
	booked := BusyIntervals(time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC), time.Date(2024, 6, 10, 11, 0, 0, 0, time.UTC), "b1")

	slots, err := c.GetAvailableTimeSlots(day(2024, 6, 10), 0, booked)
	if err != nil {
		t.Fatalf("GetAvailableTimeSlots error: %v", err)
	}
	if len(slots) != 12 {
		t.Fatalf("len(slots) = %d, want 12 (%v)", len(slots), slotStarts(slots))
	}
	for i, s := range slots {
		for _, b := range booked {
			if s.Overlaps(b) {
				t.Fatalf("slot %s overlaps booked %s", s, b)
			}
		}
		if i > 0 && !slots[i-1].Start().Before(s.Start()) {
			t.Fatalf("slots not sorted at %d", i)
		}
	}

	if _, err := c.GetAvailableTimeSlots(day(2024, 6, 10), 4*time.Minute, nil); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidInterval)
	}
	if slots, err := c.GetAvailableTimeSlots(day(2024, 6, 8), 0, nil); err != nil || len(slots) != 0 {
		t.Fatalf("saturday slots = %v, %v; want none", slots, err)
	}
}

func TestCalendar_NoticeAndHorizon(t *testing.T) {
	settings := DefaultSettings("")
	settings.MinimumNoticeMinutes = 60
	c, err := NewCalendar(NewCalendarParams{
		BusinessID: uuid.New(),
		Type:       CalendarTypeResource,
		Name:       "Room 1",
		Settings:   &settings,
	}, FixedClock{T: time.Date(2024, 6, 10, 10, 5, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("NewCalendar error: %v", err)
	}

	slots, err := c.GetAvailableTimeSlots(day(2024, 6, 10), 0, nil)
	if err != nil {
		t.Fatalf("GetAvailableTimeSlots error: %v", err)
	}
	got := slotStarts(slots)
	if len(got) != 9 || got[0] != "11:30" {
		t.Fatalf("slots = %v, want 9 starting at 11:30", got)
	}

	c.SetClock(FixedClock{T: day(2024, 6, 1)})
	settings.MaxAdvanceBookingDays = 5
	if err := c.UpdateSettings(settings); err != nil {
		t.Fatalf("UpdateSettings error: %v", err)
	}
	if slots, _ := c.GetAvailableTimeSlots(day(2024, 6, 10), 0, nil); len(slots) != 0 {
		t.Fatalf("slots beyond the booking horizon = %v, want none", slotStarts(slots))
	}

	settings.BufferMinutes = -1
	if err := c.UpdateSettings(settings); !errors.Is(err, ErrNegativeBuffer) {
		t.Fatalf("err = %v, want %v", err, ErrNegativeBuffer)
	}
}

func TestCalendar_BookingRulesFilterSlots(t *testing.T) {
	c := newBusinessCalendar(t, day(2024, 6, 1))
	err := c.AddBookingRule(BookingRule{
		Name:       "mornings only",
		Priority:   1,
		Conditions: RuleConditions{TimeRange: &TimeRange{Start: "13:00", End: "17:00"}},
		Effects:    []RuleEffect{BlockEffect{Message: "afternoons closed"}},
	})
	if err != nil {
		t.Fatalf("AddBookingRule error: %v", err)
	}
	if c.BookingRules[0].ID == "" {
		t.Fatalf("AddBookingRule must assign an ID")
	}
	if err := c.AddBookingRule(BookingRule{Name: "empty"}); !errors.Is(err, ErrBookingRuleInvalid) {
		t.Fatalf("err = %v, want %v", err, ErrBookingRuleInvalid)
	}

	slots, err := c.EvaluatedSlots(day(2024, 6, 10), 0, nil)
	if err != nil {
		t.Fatalf("EvaluatedSlots error: %v", err)
	}
	if len(slots) != 6 {
		t.Fatalf("len(slots) = %d, want 6 morning slots", len(slots))
	}
	afternoon, err := NewTimeInterval(time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC), time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC), IntervalStatusAvailable)
	if err != nil {
		t.Fatalf("NewTimeInterval error: %v", err)
	}
	if c.IsSlotBookable(afternoon) {
		t.Fatalf("afternoon slot must be blocked by rule")
	}
}

func TestCalendar_TimezoneSlots(t *testing.T) {
	settings := DefaultSettings("America/New_York")
	c, err := NewCalendar(NewCalendarParams{
		BusinessID: uuid.New(),
		Type:       CalendarTypeService,
		Name:       "Consults",
		Settings:   &settings,
	}, FixedClock{T: day(2024, 6, 1)})
	if err != nil {
		t.Fatalf("NewCalendar error: %v", err)
	}
	slots, err := c.GetAvailableTimeSlots(day(2024, 6, 10), time.Hour, nil)
	if err != nil {
		t.Fatalf("GetAvailableTimeSlots error: %v", err)
	}
	if len(slots) == 0 {
		t.Fatalf("expected slots")
	}
	if got := slots[0].Start().UTC().Format("15:04"); got != "13:00" {
		t.Fatalf("first slot UTC = %s, want 13:00 (09:00 EDT)", got)
	}
}

func TestCalendar_UpdateWorkingHours(t *testing.T) {
	clock := &tickingClock{t: day(2024, 6, 1)}
	c, err := NewCalendar(NewCalendarParams{BusinessID: uuid.New(), Type: CalendarTypeBusiness, Name: "Shop"}, clock)
	if err != nil {
		t.Fatalf("NewCalendar error: %v", err)
	}
	before := c.UpdatedAt

	if err := c.UpdateWorkingHours(7, ClosedDay(0)); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidWeekday)
	}
	bad := DaySchedule{Start: "18:00", End: "10:00", IsWorkingDay: true}
	if err := c.UpdateWorkingHours(6, bad); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidTimeRange)
	}
	if c.ScheduleFor(day(2024, 6, 8)).IsWorkingDay {
		t.Fatalf("failed update must leave saturday closed")
	}

	if err := c.UpdateWorkingHours(6, DaySchedule{Start: "10:00", End: "14:00", IsWorkingDay: true}); err != nil {
		t.Fatalf("UpdateWorkingHours error: %v", err)
	}
	if !c.IsAvailableOnDate(day(2024, 6, 8)) {
		t.Fatalf("saturday must now be a working day")
	}
	if !c.UpdatedAt.After(before) {
		t.Fatalf("UpdatedAt = %v, want after %v", c.UpdatedAt, before)
	}
	if len(c.Availability.WeeklySchedule) != 7 {
		t.Fatalf("weekly schedule has %d days, want 7", len(c.Availability.WeeklySchedule))
	}
}

func TestCalendar_JSONRoundTrip(t *testing.T) {
	c := newBusinessCalendar(t, day(2024, 6, 1))
	rule := mustRule(t, RecurrenceSpec{Pattern: RecurrenceYearly, Interval: 1, DayOfMonth: 1, MonthOfYear: time.January})
	if err := c.AddHoliday(Holiday{Name: "New Year", Date: day(2024, 1, 1), Recurrence: &rule}); err != nil {
		t.Fatalf("AddHoliday error: %v", err)
	}
	if err := c.AddBookingRule(BookingRule{Name: "approve", Effects: []RuleEffect{RequireApprovalEffect{}}}); err != nil {
		t.Fatalf("AddBookingRule error: %v", err)
	}
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var back Calendar
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if err := back.Validate(); err != nil {
		t.Fatalf("decoded calendar invalid: %v", err)
	}
	if back.IsAvailableOnDate(day(2025, 1, 1)) {
		t.Fatalf("decoded recurring holiday must block 2025-01-01")
	}
	if len(back.BookingRules) != 1 || len(back.BookingRules[0].Effects) != 1 {
		t.Fatalf("booking rules not decoded: %+v", back.BookingRules)
	}
}
