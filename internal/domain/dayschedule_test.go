package domain

import (
	"errors"
	"testing"
	"time"
)

func mondayWithLunch(t *testing.T) DaySchedule {
	t.Helper()
	s, err := NewDaySchedule(1, "09:00", "17:00", true, Break{Start: "12:00", End: "13:00", Name: "Lunch"})
	if err != nil {
		t.Fatalf("NewDaySchedule error: %v", err)
	}
	return s
}

func TestNewDaySchedule_Validation(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		working bool
		breaks  []Break
		wantErr error
	}{
		{name: "bad start", start: "9:00", end: "17:00", working: true, wantErr: ErrInvalidTimeFormat},
		{name: "bad hour", start: "24:00", end: "17:00", working: true, wantErr: ErrInvalidTimeFormat},
		{name: "bad break", start: "09:00", end: "17:00", working: true, breaks: []Break{{Start: "12:xx", End: "13:00"}}, wantErr: ErrInvalidTimeFormat},
		{name: "inverted", start: "17:00", end: "09:00", working: true, wantErr: ErrInvalidTimeRange},
		{name: "break outside", start: "09:00", end: "17:00", working: true, breaks: []Break{{Start: "16:30", End: "17:30"}}, wantErr: ErrBreakOutOfRange},
		{name: "inverted break", start: "09:00", end: "17:00", working: true, breaks: []Break{{Start: "13:00", End: "12:00"}}, wantErr: ErrBreakOutOfRange},
		{name: "closed day ignores range", start: "00:00", end: "00:00", working: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDaySchedule(1, tt.start, tt.end, tt.working, tt.breaks...)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("err = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewDaySchedule(7, "09:00", "17:00", true); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("weekday 7 err = %v, want %v", err, ErrInvalidWeekday)
	}
}

func TestDaySchedule_GenerateSlotStartsSkipsLunch(t *testing.T) {
	s := mondayWithLunch(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	starts := s.GenerateSlotStarts(date, 30*time.Minute, 0)
	if len(starts) != 14 {
		t.Fatalf("len(starts) = %d, want 14", len(starts))
	}
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30"}
	for i, st := range starts {
		if got := st.Format("15:04"); got != want[i] {
			t.Fatalf("starts[%d] = %s, want %s", i, got, want[i])
		}
	}
}

func TestDaySchedule_SlotStartsWithBufferAndRestart(t *testing.T) {
	s := mondayWithLunch(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seq := s.SlotStarts(date, 45*time.Minute, 15*time.Minute)
	var first, second []time.Time
	for st := range seq {
		first = append(first, st)
	}
	for st := range seq {
		second = append(second, st)
	}
	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("sequence not restartable: %d then %d", len(first), len(second))
	}
	// Hourly steps; the 12:00 candidate runs into lunch.
	want := []string{"09:00", "10:00", "11:00", "13:00", "14:00", "15:00", "16:00"}
	if len(first) != len(want) {
		t.Fatalf("len(starts) = %d, want %d", len(first), len(want))
	}
	for i, st := range first {
		if st.Format("15:04") != want[i] {
			t.Fatalf("starts[%d] = %s, want %s", i, st.Format("15:04"), want[i])
		}
	}

	closed := ClosedDay(0)
	for range closed.SlotStarts(date, 30*time.Minute, 0) {
		t.Fatalf("closed day must not yield starts")
	}
}

func TestDaySchedule_AvailableRangesSortsBreaks(t *testing.T) {
	s, err := NewDaySchedule(2, "08:00", "18:00", true,
		Break{Start: "15:00", End: "15:30"},
		Break{Start: "10:00", End: "10:15"},
		Break{Start: "12:00", End: "13:00"},
	)
	if err != nil {
		t.Fatalf("NewDaySchedule error: %v", err)
	}
	got := s.AvailableRanges()
	want := []TimeRange{
		{Start: "08:00", End: "10:00"},
		{Start: "10:15", End: "12:00"},
		{Start: "13:00", End: "15:00"},
		{Start: "15:30", End: "18:00"},
	}
	if len(got) != len(want) {
		t.Fatalf("ranges = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ranges[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if m := s.TotalWorkingMinutes(); m != 600-15-60-30 {
		t.Fatalf("TotalWorkingMinutes = %d, want %d", m, 600-15-60-30)
	}
}

func TestDaySchedule_IsTimeWithinWorkingHours(t *testing.T) {
	s := mondayWithLunch(t)
	tests := map[string]bool{
		"08:59": false,
		"09:00": true,
		"11:59": true,
		"12:00": false,
		"12:59": false,
		"13:00": true,
		"16:59": true,
		"17:00": false,
		"bogus": false,
	}
	for in, want := range tests {
		if got := s.IsTimeWithinWorkingHours(in); got != want {
			t.Fatalf("IsTimeWithinWorkingHours(%q) = %v, want %v", in, got, want)
		}
	}
	if ClosedDay(0).TotalWorkingMinutes() != 0 {
		t.Fatalf("closed day must have no working minutes")
	}
}
