package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestEvaluateBookingRules_PriorityAndBlock(t *testing.T) {
	rules := []BookingRule{
		{ID: "note", Name: "note", Priority: 1, Effects: []RuleEffect{AnnotateEffect{Message: "low"}}},
		{ID: "friday", Name: "friday", Priority: 10,
			Conditions: RuleConditions{DaysOfWeek: []time.Weekday{time.Friday}},
			Effects:    []RuleEffect{BlockEffect{Message: "closed fridays"}},
		},
		{ID: "approval", Name: "approval", Priority: 5, Effects: []RuleEffect{RequireApprovalEffect{}, AdjustDurationEffect{Minutes: 45}}},
	}

	// 2024-01-05 is a Friday.
	blocked := EvaluateBookingRules(rules, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))
	if blocked.Allowed {
		t.Fatalf("expected friday block")
	}
	if blocked.Message != "closed fridays" {
		t.Fatalf("message = %q, want %q", blocked.Message, "closed fridays")
	}
	if len(blocked.MatchedRules) != 1 || blocked.MatchedRules[0] != "friday" {
		t.Fatalf("matched = %v, want [friday]", blocked.MatchedRules)
	}

	monday := EvaluateBookingRules(rules, time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC))
	if !monday.Allowed || !monday.RequiresApproval || monday.AdjustedDurationMinutes != 45 {
		t.Fatalf("monday evaluation = %+v", monday)
	}
	if monday.Message != "low" {
		t.Fatalf("message = %q, want %q", monday.Message, "low")
	}
	if len(monday.MatchedRules) != 2 || monday.MatchedRules[0] != "approval" || monday.MatchedRules[1] != "note" {
		t.Fatalf("matched = %v, want [approval note]", monday.MatchedRules)
	}
}

func TestEvaluateBookingRules_LastAdjustmentWins(t *testing.T) {
	rules := []BookingRule{
		{ID: "a", Name: "a", Priority: 2, Effects: []RuleEffect{AdjustDurationEffect{Minutes: 60}, AnnotateEffect{Message: "first"}}},
		{ID: "b", Name: "b", Priority: 1, Effects: []RuleEffect{AdjustDurationEffect{Minutes: 15}, AnnotateEffect{Message: "second"}}},
	}
	got := EvaluateBookingRules(rules, time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC))
	if got.AdjustedDurationMinutes != 15 || got.Message != "second" {
		t.Fatalf("evaluation = %+v, want lower priority rule to overwrite", got)
	}
}

func TestRuleConditions_TimeAndDateRange(t *testing.T) {
	c := RuleConditions{
		TimeRange: &TimeRange{Start: "09:00", End: "12:00"},
		DateRange: &DateRange{Start: day(2024, 3, 1), End: day(2024, 3, 31)},
	}
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "range start", at: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), want: true},
		{name: "before window", at: time.Date(2024, 3, 1, 8, 59, 0, 0, time.UTC), want: false},
		{name: "range end exclusive", at: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), want: false},
		{name: "last date inclusive", at: time.Date(2024, 3, 31, 11, 30, 0, 0, time.UTC), want: true},
		{name: "after date range", at: time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.appliesAt(tt.at); got != tt.want {
				t.Fatalf("appliesAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBookingRule_Validate(t *testing.T) {
	tests := []struct {
		name string
		rule BookingRule
	}{
		{name: "no name", rule: BookingRule{Effects: []RuleEffect{RequireApprovalEffect{}}}},
		{name: "no effects", rule: BookingRule{Name: "x"}},
		{name: "zero adjustment", rule: BookingRule{Name: "x", Effects: []RuleEffect{AdjustDurationEffect{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rule.validate(); !errors.Is(err, ErrBookingRuleInvalid) {
				t.Fatalf("err = %v, want %v", err, ErrBookingRuleInvalid)
			}
		})
	}

	bad := BookingRule{Name: "x", Effects: []RuleEffect{RequireApprovalEffect{}}, Conditions: RuleConditions{TimeRange: &TimeRange{Start: "9am", End: "10:00"}}}
	if err := bad.validate(); !errors.Is(err, ErrInvalidTimeFormat) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidTimeFormat)
	}
}

func TestBookingRule_JSON(t *testing.T) {
	rule := BookingRule{
		ID:       "r1",
		Name:     "mornings",
		Priority: 3,
		Conditions: RuleConditions{
			DaysOfWeek: []time.Weekday{time.Monday},
			TimeRange:  &TimeRange{Start: "08:00", End: "10:00"},
		},
		Effects: []RuleEffect{BlockEffect{Message: "no"}, RequireApprovalEffect{}, AdjustDurationEffect{Minutes: 20}, AnnotateEffect{Message: "m"}},
	}
	b, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var back BookingRule
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(back.Effects) != 4 {
		t.Fatalf("len(effects) = %d, want 4", len(back.Effects))
	}
	if e, ok := back.Effects[2].(AdjustDurationEffect); !ok || e.Minutes != 20 {
		t.Fatalf("effects[2] = %#v, want AdjustDurationEffect{20}", back.Effects[2])
	}
	if back.Conditions.TimeRange == nil || back.Conditions.TimeRange.End != "10:00" {
		t.Fatalf("time range not decoded: %+v", back.Conditions)
	}

	if _, err := ParseRuleEffect("teleport", "", 0); !errors.Is(err, ErrBookingRuleInvalid) {
		t.Fatalf("err = %v, want %v", err, ErrBookingRuleInvalid)
	}
}
