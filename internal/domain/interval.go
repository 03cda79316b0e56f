package domain

import (
	"fmt"
	"time"
)

const (
	MinIntervalDuration = 5 * time.Minute
	MaxIntervalDuration = 8 * time.Hour
)

type IntervalStatus string

const (
	IntervalStatusAvailable   IntervalStatus = "available"
	IntervalStatusBooked      IntervalStatus = "booked"
	IntervalStatusBlocked     IntervalStatus = "blocked"
	IntervalStatusMaintenance IntervalStatus = "maintenance"
)

func (s IntervalStatus) valid() bool {
	switch s {
	case IntervalStatusAvailable, IntervalStatusBooked, IntervalStatusBlocked, IntervalStatusMaintenance:
		return true
	}
	return false
}

type IntervalMetadata struct {
	BookingID string `json:"booking_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	IsBreak   bool   `json:"is_break,omitempty"`
}

// TimeInterval is an immutable half-open range [start, end) tagged with a status.
type TimeInterval struct {
	start    time.Time
	end      time.Time
	status   IntervalStatus
	metadata IntervalMetadata
}

// NewTimeInterval builds an interval. An empty status means available.
func NewTimeInterval(start, end time.Time, status IntervalStatus) (TimeInterval, error) {
	return NewTimeIntervalWithMetadata(start, end, status, IntervalMetadata{})
}

func NewTimeIntervalWithMetadata(start, end time.Time, status IntervalStatus, meta IntervalMetadata) (TimeInterval, error) {
	if status == "" {
		status = IntervalStatusAvailable
	}
	if !status.valid() {
		return TimeInterval{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInterval, status)
	}
	if !start.Before(end) {
		return TimeInterval{}, fmt.Errorf("%w: start must be before end", ErrInvalidInterval)
	}
	d := end.Sub(start)
	if d < MinIntervalDuration {
		return TimeInterval{}, fmt.Errorf("%w: duration %s is shorter than %s", ErrInvalidInterval, d, MinIntervalDuration)
	}
	if d > MaxIntervalDuration {
		return TimeInterval{}, fmt.Errorf("%w: duration %s is longer than %s", ErrInvalidInterval, d, MaxIntervalDuration)
	}
	return TimeInterval{start: start, end: end, status: status, metadata: meta}, nil
}

func (i TimeInterval) Start() time.Time           { return i.start }
func (i TimeInterval) End() time.Time             { return i.end }
func (i TimeInterval) Status() IntervalStatus     { return i.status }
func (i TimeInterval) Metadata() IntervalMetadata { return i.metadata }
func (i TimeInterval) Duration() time.Duration    { return i.end.Sub(i.start) }

// Overlaps reports strict half-open overlap. Touching endpoints do not overlap.
func (i TimeInterval) Overlaps(other TimeInterval) bool {
	return i.start.Before(other.end) && other.start.Before(i.end)
}

func (i TimeInterval) Contains(t time.Time) bool {
	return !t.Before(i.start) && t.Before(i.end)
}

func (i TimeInterval) CanFit(d time.Duration) bool {
	return i.status == IntervalStatusAvailable && i.Duration() >= d
}

func (i TimeInterval) IsAdjacent(other TimeInterval) bool {
	return i.end.Equal(other.start) || other.end.Equal(i.start)
}

// Split cuts the interval at t. Splitting at an endpoint returns the interval unchanged.
// Both halves keep the status and metadata and must satisfy the duration bounds.
func (i TimeInterval) Split(t time.Time) ([]TimeInterval, error) {
	if t.Before(i.start) || t.After(i.end) {
		return nil, fmt.Errorf("%w: %s not within [%s, %s]", ErrSplitOutOfRange, t.Format(time.RFC3339), i.start.Format(time.RFC3339), i.end.Format(time.RFC3339))
	}
	if t.Equal(i.start) || t.Equal(i.end) {
		return []TimeInterval{i}, nil
	}
	left, err := NewTimeIntervalWithMetadata(i.start, t, i.status, i.metadata)
	if err != nil {
		return nil, err
	}
	right, err := NewTimeIntervalWithMetadata(t, i.end, i.status, i.metadata)
	if err != nil {
		return nil, err
	}
	return []TimeInterval{left, right}, nil
}

// Merge joins two overlapping or adjacent intervals of the same status.
// The result keeps the receiver's metadata.
func (i TimeInterval) Merge(other TimeInterval) (TimeInterval, error) {
	if i.status != other.status {
		return TimeInterval{}, fmt.Errorf("%w: status %s differs from %s", ErrIncompatibleMerge, i.status, other.status)
	}
	if !i.Overlaps(other) && !i.IsAdjacent(other) {
		return TimeInterval{}, fmt.Errorf("%w: intervals are disjoint", ErrIncompatibleMerge)
	}
	start := i.start
	if other.start.Before(start) {
		start = other.start
	}
	end := i.end
	if other.end.After(end) {
		end = other.end
	}
	return NewTimeIntervalWithMetadata(start, end, i.status, i.metadata)
}

func (i TimeInterval) String() string {
	return fmt.Sprintf("[%s, %s) %s", i.start.Format(time.RFC3339), i.end.Format(time.RFC3339), i.status)
}

// BusyIntervals covers [start, end) with booked intervals that respect the
// duration bounds: long ranges are chunked at MaxIntervalDuration, and any
// range or tail shorter than MinIntervalDuration is widened to it.
func BusyIntervals(start, end time.Time, bookingID string) []TimeInterval {
	if !start.Before(end) {
		return nil
	}
	meta := IntervalMetadata{BookingID: bookingID}
	var out []TimeInterval
	for cur := start; cur.Before(end); {
		next := cur.Add(MaxIntervalDuration)
		if next.After(end) {
			next = end
		}
		if next.Sub(cur) < MinIntervalDuration {
			// Widen backwards onto the previous chunk when possible so the tail stays covered.
			if len(out) > 0 {
				cur = next.Add(-MinIntervalDuration)
			} else {
				next = cur.Add(MinIntervalDuration)
			}
		}
		iv, err := NewTimeIntervalWithMetadata(cur, next, IntervalStatusBooked, meta)
		if err == nil {
			out = append(out, iv)
		}
		cur = next
	}
	return out
}
