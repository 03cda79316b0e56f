package domain

import (
	"fmt"
	"iter"
	"sort"
	"time"
)

// Break is a pause inside a working day, e.g. lunch.
type Break struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Name  string `json:"name,omitempty"`
}

// TimeRange is a time-of-day range in "HH:MM" form.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySchedule is one weekday's working window. Weekday uses 0=Sunday..6=Saturday.
type DaySchedule struct {
	Weekday      int     `json:"weekday"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	IsWorkingDay bool    `json:"is_working_day"`
	Breaks       []Break `json:"breaks,omitempty"`
}

func NewDaySchedule(weekday int, start, end string, isWorkingDay bool, breaks ...Break) (DaySchedule, error) {
	s := DaySchedule{
		Weekday:      weekday,
		Start:        start,
		End:          end,
		IsWorkingDay: isWorkingDay,
		Breaks:       append([]Break(nil), breaks...),
	}
	if err := s.Validate(); err != nil {
		return DaySchedule{}, err
	}
	return s, nil
}

// ClosedDay returns a non-working schedule for weekday.
func ClosedDay(weekday int) DaySchedule {
	return DaySchedule{Weekday: weekday, Start: "00:00", End: "00:00"}
}

func (s DaySchedule) Validate() error {
	if s.Weekday < 0 || s.Weekday > 6 {
		return fmt.Errorf("%w: %d", ErrInvalidWeekday, s.Weekday)
	}
	start, err := parseClock(s.Start)
	if err != nil {
		return err
	}
	end, err := parseClock(s.End)
	if err != nil {
		return err
	}
	breaks := make([][2]int, 0, len(s.Breaks))
	for _, b := range s.Breaks {
		bs, err := parseClock(b.Start)
		if err != nil {
			return err
		}
		be, err := parseClock(b.End)
		if err != nil {
			return err
		}
		breaks = append(breaks, [2]int{bs, be})
	}
	if !s.IsWorkingDay {
		return nil
	}
	if start >= end {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidTimeRange, s.Start, s.End)
	}
	for i, b := range breaks {
		if b[0] >= b[1] || b[0] < start || b[1] > end {
			return fmt.Errorf("%w: break %s-%s not within %s-%s", ErrBreakOutOfRange, s.Breaks[i].Start, s.Breaks[i].End, s.Start, s.End)
		}
	}
	return nil
}

// SlotStarts yields candidate slot start instants on date's calendar day, in
// date's location. Candidates step by slotDuration+buffer from the opening
// time; any candidate whose slot overlaps a break is dropped.
func (s DaySchedule) SlotStarts(date time.Time, slotDuration, buffer time.Duration) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if !s.IsWorkingDay || slotDuration <= 0 || buffer < 0 {
			return
		}
		start, errS := parseClock(s.Start)
		end, errE := parseClock(s.End)
		if errS != nil || errE != nil {
			return
		}
		breaks := s.breakMinutes()
		slot := int(slotDuration / time.Minute)
		step := int((slotDuration + buffer) / time.Minute)
		if slot <= 0 || step <= 0 {
			return
		}
		y, m, d := date.Date()
		loc := date.Location()
		for off := start; off+slot <= end; off += step {
			if overlapsAnyBreak(off, off+slot, breaks) {
				continue
			}
			if !yield(time.Date(y, m, d, 0, off, 0, 0, loc)) {
				return
			}
		}
	}
}

// GenerateSlotStarts collects SlotStarts into a slice.
func (s DaySchedule) GenerateSlotStarts(date time.Time, slotDuration, buffer time.Duration) []time.Time {
	var out []time.Time
	for t := range s.SlotStarts(date, slotDuration, buffer) {
		out = append(out, t)
	}
	return out
}

// AvailableRanges returns the working window minus breaks, sorted by start.
func (s DaySchedule) AvailableRanges() []TimeRange {
	if !s.IsWorkingDay {
		return nil
	}
	start, errS := parseClock(s.Start)
	end, errE := parseClock(s.End)
	if errS != nil || errE != nil || start >= end {
		return nil
	}
	var out []TimeRange
	cur := start
	for _, b := range s.breakMinutes() {
		if b[0] > cur {
			out = append(out, TimeRange{Start: formatClock(cur), End: formatClock(b[0])})
		}
		if b[1] > cur {
			cur = b[1]
		}
	}
	if cur < end {
		out = append(out, TimeRange{Start: formatClock(cur), End: formatClock(end)})
	}
	return out
}

func (s DaySchedule) TotalWorkingMinutes() int {
	if !s.IsWorkingDay {
		return 0
	}
	start, errS := parseClock(s.Start)
	end, errE := parseClock(s.End)
	if errS != nil || errE != nil {
		return 0
	}
	total := end - start
	for _, b := range s.breakMinutes() {
		total -= b[1] - b[0]
	}
	if total < 0 {
		return 0
	}
	return total
}

// IsTimeWithinWorkingHours reports whether hhmm falls in [start, end) and outside every break.
func (s DaySchedule) IsTimeWithinWorkingHours(hhmm string) bool {
	if !s.IsWorkingDay {
		return false
	}
	t, err := parseClock(hhmm)
	if err != nil {
		return false
	}
	start, errS := parseClock(s.Start)
	end, errE := parseClock(s.End)
	if errS != nil || errE != nil || t < start || t >= end {
		return false
	}
	for _, b := range s.breakMinutes() {
		if t >= b[0] && t < b[1] {
			return false
		}
	}
	return true
}

// breakMinutes returns well-formed breaks as minute offsets sorted by start.
func (s DaySchedule) breakMinutes() [][2]int {
	out := make([][2]int, 0, len(s.Breaks))
	for _, b := range s.Breaks {
		bs, err1 := parseClock(b.Start)
		be, err2 := parseClock(b.End)
		if err1 != nil || err2 != nil || bs >= be {
			continue
		}
		out = append(out, [2]int{bs, be})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func overlapsAnyBreak(start, end int, breaks [][2]int) bool {
	for _, b := range breaks {
		if start < b[1] && b[0] < end {
			return true
		}
	}
	return false
}

// parseClock parses "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	return h*60 + m, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
