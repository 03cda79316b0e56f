package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxRecurrenceSteps bounds every recurrence walk.
const MaxRecurrenceSteps = 1000

// DefaultMaxDates is the GenerateDates cap used when maxDates <= 0.
const DefaultMaxDates = 100

type RecurrencePattern string

const (
	RecurrenceNone    RecurrencePattern = "none"
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
	RecurrenceYearly  RecurrencePattern = "yearly"
)

// RecurrenceSpec is the mutable input for NewRecurrenceRule and the
// persisted form of a rule.
type RecurrenceSpec struct {
	Pattern     RecurrencePattern `json:"pattern"`
	Interval    int               `json:"interval"`
	EndDate     *time.Time        `json:"end_date,omitempty"`
	Occurrences *int              `json:"occurrences,omitempty"`
	DaysOfWeek  []time.Weekday    `json:"days_of_week,omitempty"`
	DayOfMonth  int               `json:"day_of_month,omitempty"`
	MonthOfYear time.Month        `json:"month_of_year,omitempty"`
	Exceptions  []time.Time       `json:"exceptions,omitempty"`
}

// RecurrenceRule is an immutable repeating date pattern. All dates it takes
// and returns are civil dates; the time-of-day and location are ignored.
type RecurrenceRule struct {
	pattern     RecurrencePattern
	interval    int
	endDate     *time.Time
	occurrences int
	weekdays    [7]bool
	dayOfMonth  int
	month       time.Month
	exceptions  []time.Time
}

func NewRecurrenceRule(spec RecurrenceSpec) (RecurrenceRule, error) {
	r := RecurrenceRule{pattern: spec.Pattern, interval: spec.Interval}
	if r.pattern == "" {
		r.pattern = RecurrenceNone
	}
	switch r.pattern {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
	default:
		return RecurrenceRule{}, fmt.Errorf("%w: unknown pattern %q", ErrInvalidRecurrenceField, spec.Pattern)
	}
	if r.interval < 1 {
		return RecurrenceRule{}, fmt.Errorf("%w: interval must be at least 1", ErrInvalidRecurrenceField)
	}
	if spec.EndDate != nil && spec.Occurrences != nil {
		return RecurrenceRule{}, fmt.Errorf("%w: end date and occurrences are mutually exclusive", ErrInvalidRecurrenceField)
	}
	if spec.EndDate != nil {
		d := civilDate(*spec.EndDate)
		r.endDate = &d
	}
	if spec.Occurrences != nil {
		n := *spec.Occurrences
		if n < 1 || n > MaxRecurrenceSteps {
			return RecurrenceRule{}, fmt.Errorf("%w: occurrences must be between 1 and %d", ErrInvalidRecurrenceField, MaxRecurrenceSteps)
		}
		r.occurrences = n
	}

	switch r.pattern {
	case RecurrenceWeekly:
		if len(spec.DaysOfWeek) == 0 {
			return RecurrenceRule{}, fmt.Errorf("%w: weekly pattern requires days of week", ErrInvalidRecurrenceField)
		}
		for _, wd := range spec.DaysOfWeek {
			if wd < time.Sunday || wd > time.Saturday {
				return RecurrenceRule{}, fmt.Errorf("%w: weekday %d", ErrInvalidRecurrenceField, wd)
			}
			r.weekdays[wd] = true
		}
	case RecurrenceMonthly, RecurrenceYearly:
		if spec.DayOfMonth < 1 || spec.DayOfMonth > 31 {
			return RecurrenceRule{}, fmt.Errorf("%w: day of month must be between 1 and 31", ErrInvalidRecurrenceField)
		}
		r.dayOfMonth = spec.DayOfMonth
		if r.pattern == RecurrenceYearly {
			if spec.MonthOfYear < time.January || spec.MonthOfYear > time.December {
				return RecurrenceRule{}, fmt.Errorf("%w: month of year must be between 1 and 12", ErrInvalidRecurrenceField)
			}
			r.month = spec.MonthOfYear
		}
	}

	for _, ex := range spec.Exceptions {
		r.exceptions = append(r.exceptions, civilDate(ex))
	}
	return r, nil
}

func (r RecurrenceRule) Pattern() RecurrencePattern { return r.pattern }
func (r RecurrenceRule) Interval() int              { return r.interval }

// Spec returns the rule's fields in their editable form.
func (r RecurrenceRule) Spec() RecurrenceSpec {
	s := RecurrenceSpec{
		Pattern:     r.pattern,
		Interval:    r.interval,
		DayOfMonth:  r.dayOfMonth,
		MonthOfYear: r.month,
		Exceptions:  append([]time.Time(nil), r.exceptions...),
	}
	if r.endDate != nil {
		d := *r.endDate
		s.EndDate = &d
	}
	if r.occurrences > 0 {
		n := r.occurrences
		s.Occurrences = &n
	}
	for wd, ok := range r.weekdays {
		if ok {
			s.DaysOfWeek = append(s.DaysOfWeek, time.Weekday(wd))
		}
	}
	return s
}

// WithException returns a copy of the rule with date excluded.
func (r RecurrenceRule) WithException(date time.Time) RecurrenceRule {
	out := r
	out.exceptions = append(append([]time.Time(nil), r.exceptions...), civilDate(date))
	return out
}

func (r RecurrenceRule) IsException(date time.Time) bool {
	d := civilDate(date)
	for _, ex := range r.exceptions {
		if ex.Equal(d) {
			return true
		}
	}
	return false
}

// GenerateDates walks occurrences from startDate.
//
// Exception dates are dropped from the output but still count against the
// occurrence bound, so a rule with 5 occurrences and one exception yields 4
// dates. maxDates caps the number of returned dates. A walk longer than
// MaxRecurrenceSteps fails with ErrRecurrenceOverflow.
func (r RecurrenceRule) GenerateDates(startDate time.Time, maxDates int) ([]time.Time, error) {
	if maxDates <= 0 {
		maxDates = DefaultMaxDates
	}
	out := make([]time.Time, 0, min(maxDates, 16))
	cur := r.firstOccurrence(civilDate(startDate))
	consumed := 0
	for steps := 1; len(out) < maxDates; steps++ {
		if steps > MaxRecurrenceSteps {
			return out, fmt.Errorf("%w: %d steps from %s", ErrRecurrenceOverflow, MaxRecurrenceSteps, startDate.Format(time.DateOnly))
		}
		if r.endDate != nil && cur.After(*r.endDate) {
			break
		}
		if r.occurrences > 0 && consumed >= r.occurrences {
			break
		}
		consumed++
		if !r.IsException(cur) {
			out = append(out, cur)
		}
		if r.pattern == RecurrenceNone {
			break
		}
		cur = r.NextDate(cur)
	}
	return out, nil
}

// NextDate advances current by one step of the pattern.
func (r RecurrenceRule) NextDate(current time.Time) time.Time {
	cur := civilDate(current)
	switch r.pattern {
	case RecurrenceDaily:
		return cur.AddDate(0, 0, r.interval)
	case RecurrenceWeekly:
		return r.nextWeekly(cur)
	case RecurrenceMonthly:
		y, m := addMonths(cur.Year(), cur.Month(), r.interval)
		return clampedDate(y, m, r.dayOfMonth)
	case RecurrenceYearly:
		return clampedDate(cur.Year()+r.interval, r.month, r.dayOfMonth)
	default:
		return cur
	}
}

// nextWeekly scans day by day; crossing into a new week (Sunday) skips
// interval-1 further weeks before matching resumes.
func (r RecurrenceRule) nextWeekly(cur time.Time) time.Time {
	d := cur
	for i := 0; i < 7; i++ {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() == time.Sunday && r.interval > 1 {
			d = d.AddDate(0, 0, 7*(r.interval-1))
		}
		if r.weekdays[d.Weekday()] {
			return d
		}
	}
	return d
}

// firstOccurrence aligns start onto the first date the pattern produces.
func (r RecurrenceRule) firstOccurrence(start time.Time) time.Time {
	switch r.pattern {
	case RecurrenceWeekly:
		if r.weekdays[start.Weekday()] {
			return start
		}
		return r.nextWeekly(start)
	case RecurrenceMonthly:
		d := clampedDate(start.Year(), start.Month(), r.dayOfMonth)
		if d.Before(start) {
			return r.NextDate(d)
		}
		return d
	case RecurrenceYearly:
		d := clampedDate(start.Year(), r.month, r.dayOfMonth)
		if d.Before(start) {
			return r.NextDate(d)
		}
		return d
	}
	return start
}

// MatchesPattern reports whether date is an occurrence of a series anchored at referenceDate.
func (r RecurrenceRule) MatchesPattern(date, referenceDate time.Time) bool {
	d := civilDate(date)
	ref := civilDate(referenceDate)
	if d.Before(ref) || r.IsException(d) {
		return false
	}
	if r.endDate != nil && d.After(*r.endDate) {
		return false
	}
	if !r.matchesUnit(d, ref) {
		return false
	}
	if r.occurrences > 0 {
		return r.withinOccurrenceBound(d, ref)
	}
	return true
}

func (r RecurrenceRule) matchesUnit(d, ref time.Time) bool {
	switch r.pattern {
	case RecurrenceNone:
		return d.Equal(ref)
	case RecurrenceDaily:
		return daysBetween(ref, d)%r.interval == 0
	case RecurrenceWeekly:
		if !r.weekdays[d.Weekday()] {
			return false
		}
		weeks := daysBetween(weekStart(ref), weekStart(d)) / 7
		return weeks%r.interval == 0
	case RecurrenceMonthly:
		months := (d.Year()-ref.Year())*12 + int(d.Month()) - int(ref.Month())
		if months < 0 || months%r.interval != 0 {
			return false
		}
		return d.Equal(clampedDate(d.Year(), d.Month(), r.dayOfMonth))
	case RecurrenceYearly:
		years := d.Year() - ref.Year()
		if years < 0 || years%r.interval != 0 || d.Month() != r.month {
			return false
		}
		return d.Equal(clampedDate(d.Year(), r.month, r.dayOfMonth))
	}
	return false
}

// withinOccurrenceBound walks the series from ref; occurrences is capped at
// MaxRecurrenceSteps at construction so the walk always terminates.
func (r RecurrenceRule) withinOccurrenceBound(d, ref time.Time) bool {
	cur := r.firstOccurrence(ref)
	for i := 0; i < r.occurrences; i++ {
		if cur.Equal(d) {
			return true
		}
		if cur.After(d) || r.pattern == RecurrenceNone {
			return false
		}
		cur = r.NextDate(cur)
	}
	return false
}

// NextOccurrence returns the first matching date strictly after after.
func (r RecurrenceRule) NextOccurrence(after, referenceDate time.Time) (time.Time, bool) {
	d := civilDate(after)
	for i := 0; i < MaxRecurrenceSteps; i++ {
		d = d.AddDate(0, 0, 1)
		if r.MatchesPattern(d, referenceDate) {
			return d, true
		}
	}
	return time.Time{}, false
}

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Describe renders a short English summary of the rule.
func (r RecurrenceRule) Describe() string {
	var b strings.Builder
	unit := map[RecurrencePattern]string{
		RecurrenceDaily:   "day",
		RecurrenceWeekly:  "week",
		RecurrenceMonthly: "month",
		RecurrenceYearly:  "year",
	}[r.pattern]
	if r.pattern == RecurrenceNone {
		b.WriteString("Once")
	} else if r.interval == 1 {
		b.WriteString("Every " + unit)
	} else {
		fmt.Fprintf(&b, "Every %d %ss", r.interval, unit)
	}
	switch r.pattern {
	case RecurrenceWeekly:
		var days []string
		for wd, ok := range r.weekdays {
			if ok {
				days = append(days, weekdayNames[wd])
			}
		}
		b.WriteString(" on " + strings.Join(days, ", "))
	case RecurrenceMonthly:
		fmt.Fprintf(&b, " on day %d", r.dayOfMonth)
	case RecurrenceYearly:
		fmt.Fprintf(&b, " on %s %d", r.month, r.dayOfMonth)
	}
	if r.endDate != nil {
		b.WriteString(" until " + r.endDate.Format(time.DateOnly))
	}
	if r.occurrences > 0 {
		fmt.Fprintf(&b, ", %d times", r.occurrences)
	}
	if n := len(r.exceptions); n > 0 {
		fmt.Fprintf(&b, " (%d excluded)", n)
	}
	return b.String()
}

func (r RecurrenceRule) MarshalJSON() ([]byte, error) {
	s := r.Spec()
	sort.Slice(s.Exceptions, func(i, j int) bool { return s.Exceptions[i].Before(s.Exceptions[j]) })
	return json.Marshal(s)
}

func (r *RecurrenceRule) UnmarshalJSON(b []byte) error {
	var s RecurrenceSpec
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	rule, err := NewRecurrenceRule(s)
	if err != nil {
		return err
	}
	*r = rule
	return nil
}

// civilDate strips time-of-day and location, keeping the wall-clock date.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clampedDate(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	total := int(month) - 1 + n
	return year + total/12, time.Month(total%12 + 1)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

// weekStart returns the Sunday that begins d's week.
func weekStart(d time.Time) time.Time {
	return d.AddDate(0, 0, -int(d.Weekday()))
}
