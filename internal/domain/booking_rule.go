package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// RuleEffect is one outcome of a booking rule. The concrete kinds are
// BlockEffect, RequireApprovalEffect, AdjustDurationEffect and AnnotateEffect.
type RuleEffect interface {
	effectKind() string
}

type BlockEffect struct {
	Message string
}

type RequireApprovalEffect struct{}

type AdjustDurationEffect struct {
	Minutes int
}

type AnnotateEffect struct {
	Message string
}

func (BlockEffect) effectKind() string           { return "block" }
func (RequireApprovalEffect) effectKind() string { return "require_approval" }
func (AdjustDurationEffect) effectKind() string  { return "adjust_duration" }
func (AnnotateEffect) effectKind() string        { return "annotate" }

// DateRange is an inclusive range of civil dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRange) Contains(date time.Time) bool {
	d := civilDate(date)
	return !d.Before(civilDate(r.Start)) && !d.After(civilDate(r.End))
}

// RuleConditions must all hold for a rule to apply. Empty fields match
// everything. StaffRoles and ServiceTypes are carried for callers and are not
// evaluated here.
type RuleConditions struct {
	DaysOfWeek   []time.Weekday `json:"days_of_week,omitempty"`
	TimeRange    *TimeRange     `json:"time_range,omitempty"`
	DateRange    *DateRange     `json:"date_range,omitempty"`
	StaffRoles   []string       `json:"staff_roles,omitempty"`
	ServiceTypes []string       `json:"service_types,omitempty"`
}

type BookingRule struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Priority   int            `json:"priority"`
	Conditions RuleConditions `json:"conditions"`
	Effects    []RuleEffect   `json:"-"`
}

// RuleEvaluation is the outcome of running booking rules against a slot.
// Only Allowed affects availability; the rest are annotations.
type RuleEvaluation struct {
	Allowed                 bool
	RequiresApproval        bool
	AdjustedDurationMinutes int
	Message                 string
	MatchedRules            []string
}

func (r BookingRule) validate() error {
	if r.Name == "" || len(r.Effects) == 0 {
		return ErrBookingRuleInvalid
	}
	for _, e := range r.Effects {
		if e == nil {
			return ErrBookingRuleInvalid
		}
		if adj, ok := e.(AdjustDurationEffect); ok && adj.Minutes <= 0 {
			return fmt.Errorf("%w: duration adjustment must be positive", ErrBookingRuleInvalid)
		}
	}
	if tr := r.Conditions.TimeRange; tr != nil {
		if _, err := parseClock(tr.Start); err != nil {
			return err
		}
		if _, err := parseClock(tr.End); err != nil {
			return err
		}
	}
	return nil
}

// appliesAt compares time-of-day as "HH:MM" strings, start inclusive, end exclusive.
func (c RuleConditions) appliesAt(local time.Time) bool {
	if len(c.DaysOfWeek) > 0 {
		found := false
		for _, wd := range c.DaysOfWeek {
			if wd == local.Weekday() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.TimeRange != nil {
		hhmm := local.Format("15:04")
		if hhmm < c.TimeRange.Start || hhmm >= c.TimeRange.End {
			return false
		}
	}
	if c.DateRange != nil && !c.DateRange.Contains(local) {
		return false
	}
	return true
}

// EvaluateBookingRules runs rules in descending priority against start,
// expressed in the calendar's location. The first applying block
// short-circuits; other effects accumulate and later writes win.
func EvaluateBookingRules(rules []BookingRule, start time.Time) RuleEvaluation {
	ordered := append([]BookingRule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	out := RuleEvaluation{Allowed: true}
	for _, rule := range ordered {
		if !rule.Conditions.appliesAt(start) {
			continue
		}
		out.MatchedRules = append(out.MatchedRules, rule.ID)
		for _, effect := range rule.Effects {
			switch e := effect.(type) {
			case BlockEffect:
				out.Allowed = false
				out.Message = e.Message
				return out
			case RequireApprovalEffect:
				out.RequiresApproval = true
			case AdjustDurationEffect:
				out.AdjustedDurationMinutes = e.Minutes
			case AnnotateEffect:
				out.Message = e.Message
			}
		}
	}
	return out
}

type ruleEffectJSON struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
	Minutes int    `json:"minutes,omitempty"`
}

type bookingRuleJSON struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Priority   int              `json:"priority"`
	Conditions RuleConditions   `json:"conditions"`
	Effects    []ruleEffectJSON `json:"effects"`
}

func (r BookingRule) MarshalJSON() ([]byte, error) {
	out := bookingRuleJSON{ID: r.ID, Name: r.Name, Priority: r.Priority, Conditions: r.Conditions}
	for _, effect := range r.Effects {
		ej := ruleEffectJSON{Kind: effect.effectKind()}
		switch e := effect.(type) {
		case BlockEffect:
			ej.Message = e.Message
		case AdjustDurationEffect:
			ej.Minutes = e.Minutes
		case AnnotateEffect:
			ej.Message = e.Message
		}
		out.Effects = append(out.Effects, ej)
	}
	return json.Marshal(out)
}

func (r *BookingRule) UnmarshalJSON(b []byte) error {
	var in bookingRuleJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = BookingRule{ID: in.ID, Name: in.Name, Priority: in.Priority, Conditions: in.Conditions}
	for _, ej := range in.Effects {
		effect, err := ParseRuleEffect(ej.Kind, ej.Message, ej.Minutes)
		if err != nil {
			return err
		}
		r.Effects = append(r.Effects, effect)
	}
	return nil
}

// ParseRuleEffect builds an effect from its wire kind.
func ParseRuleEffect(kind, message string, minutes int) (RuleEffect, error) {
	switch kind {
	case "block":
		return BlockEffect{Message: message}, nil
	case "require_approval":
		return RequireApprovalEffect{}, nil
	case "adjust_duration":
		return AdjustDurationEffect{Minutes: minutes}, nil
	case "annotate":
		return AnnotateEffect{Message: message}, nil
	}
	return nil, fmt.Errorf("%w: unknown effect kind %q", ErrBookingRuleInvalid, kind)
}
