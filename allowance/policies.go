/*
policies.go - Leave type x weekday payment policy

PURPOSE:
  Decides, for a leave registered on a given weekday, whether the day
  still earns the meal allowance and how much of a workday it counts for.
  The rules are data, not conditionals: every (leave type, weekday) pair
  can be listed with Rules() and asserted on.

CURRENT RULES (DefaultPolicyTable):
  Saturday:  any leave -> non-payable, 0
  Sunday:    never looked up (rest day), 0
  Weekday:
    afternoon_half, afternoon_annual_half          -> payable, 1 (morning worked)
    morning_half, morning_annual_half,
    morning_afternoon_half                         -> non-payable, 0
    day_off, annual, sick, absence                 -> non-payable, 0
    unknown "*half*" / "*반차*"                      -> payable, 0.5
    any other unknown type                         -> non-payable, 0 (logged)

CUSTOMIZATION:
  Revisions ship as JSON (see factory/policy.go) so a rule change does not
  need a code change:

    table, rate, err := factory.NewPolicyFactory().ParsePolicyTable(allowance.DefaultPolicyJSON())

SEE ALSO:
  - calculator.go: Consumes Lookup per day
  - factory/policy.go: JSON to PolicyTable
*/
package allowance

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OUTCOME
// =============================================================================

// RuleSource tells which branch of the table produced an Outcome.
type RuleSource string

const (
	SourceExplicit        RuleSource = "explicit"
	SourceSaturday        RuleSource = "saturday"
	SourceSunday          RuleSource = "sunday"
	SourceHalfDayFallback RuleSource = "half_day_fallback"
	SourceUnknown         RuleSource = "unknown"
)

// Outcome is the payment decision for one leave day.
type Outcome struct {
	Payable      bool
	Contribution decimal.Decimal // 0, 0.5 or 1 workday-equivalent
	HalfDay      bool            // counted in MonthlyResult.HalfDays
	Source       RuleSource
}

var (
	zeroDays = decimal.Zero
	halfDay  = decimal.NewFromFloat(0.5)
	fullDay  = decimal.NewFromInt(1)
)

func paid(contribution decimal.Decimal, half bool) Outcome {
	return Outcome{Payable: true, Contribution: contribution, HalfDay: half, Source: SourceExplicit}
}

func unpaid(half bool) Outcome {
	return Outcome{Payable: false, Contribution: zeroDays, HalfDay: half, Source: SourceExplicit}
}

// IsFractional reports whether the contribution is strictly between 0 and 1.
func (o Outcome) IsFractional() bool {
	return o.Contribution.IsPositive() && o.Contribution.LessThan(fullDay)
}

// ValidContribution reports whether c is one of 0, 0.5, 1.
func ValidContribution(c decimal.Decimal) bool {
	return c.Equal(zeroDays) || c.Equal(halfDay) || c.Equal(fullDay)
}

// =============================================================================
// POLICY TABLE
// =============================================================================

// PolicyTable maps (LeaveType, weekday) to an Outcome.
type PolicyTable struct {
	ID   string
	Name string

	weekday  map[LeaveType]Outcome
	saturday Outcome
	fallback Outcome
}

// NewPolicyTable builds a table from weekday rules plus the uniform Saturday
// outcome and the half-day fallback for unlisted "*half*" types.
// Contributions must be 0, 0.5 or 1 and payable iff positive.
func NewPolicyTable(id, name string, weekday map[LeaveType]Outcome, saturday, fallback Outcome) (*PolicyTable, error) {
	check := func(what string, o Outcome) error {
		if !ValidContribution(o.Contribution) {
			return fmt.Errorf("policy %s: %s: contribution %s must be 0, 0.5 or 1", id, what, o.Contribution)
		}
		if o.Payable != o.Contribution.IsPositive() {
			return fmt.Errorf("policy %s: %s: payable must be true exactly when contribution > 0", id, what)
		}
		return nil
	}

	rules := make(map[LeaveType]Outcome, len(weekday))
	for lt, o := range weekday {
		if lt == "" {
			return nil, fmt.Errorf("policy %s: empty leave type", id)
		}
		if err := check(string(lt), o); err != nil {
			return nil, err
		}
		o.Source = SourceExplicit
		rules[lt] = o
	}
	if err := check("saturday", saturday); err != nil {
		return nil, err
	}
	if err := check("half_day_fallback", fallback); err != nil {
		return nil, err
	}
	saturday.Source = SourceSaturday
	saturday.HalfDay = false
	fallback.Source = SourceHalfDayFallback
	fallback.HalfDay = true

	return &PolicyTable{ID: id, Name: name, weekday: rules, saturday: saturday, fallback: fallback}, nil
}

// DefaultPolicyTable returns the current meal-allowance rules.
func DefaultPolicyTable() *PolicyTable {
	t, err := NewPolicyTable("meal-allowance", "Meal Allowance", map[LeaveType]Outcome{
		LeaveAfternoonHalf:        paid(fullDay, true),
		LeaveAfternoonAnnualHalf:  paid(fullDay, true),
		LeaveMorningHalf:          unpaid(true),
		LeaveMorningAnnualHalf:    unpaid(true),
		LeaveMorningAfternoonHalf: unpaid(true),
		LeaveDayOff:               unpaid(false),
		LeaveAnnual:               unpaid(false),
		LeaveSick:                 unpaid(false),
		LeaveAbsence:              unpaid(false),
	}, unpaid(false), paid(halfDay, true))
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the outcome of a leave of type lt on weekday wd.
// It never fails: unknown types fall back to the half-day rule when their
// name says half-day, otherwise to non-payable with SourceUnknown.
func (t *PolicyTable) Lookup(lt LeaveType, wd time.Weekday) Outcome {
	switch wd {
	case time.Sunday:
		return Outcome{Contribution: zeroDays, Source: SourceSunday}
	case time.Saturday:
		return t.saturday
	}
	if o, ok := t.weekday[lt]; ok {
		return o
	}
	if lt.IsHalfDayVariant() {
		return t.fallback
	}
	return Outcome{Contribution: zeroDays, Source: SourceUnknown}
}

// Saturday is the outcome of any leave registered on a Saturday.
func (t *PolicyTable) Saturday() Outcome { return t.saturday }

// HalfDayFallback is the outcome of unlisted half-day leave types.
func (t *PolicyTable) HalfDayFallback() Outcome { return t.fallback }

// Worked is the outcome of a day with no leave registered.
func (t *PolicyTable) Worked() Outcome {
	return Outcome{Payable: true, Contribution: fullDay, Source: SourceExplicit}
}

// LeaveTypes lists the leave types with an explicit weekday rule, sorted.
func (t *PolicyTable) LeaveTypes() []LeaveType {
	out := make([]LeaveType, 0, len(t.weekday))
	for lt := range t.weekday {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Rule is one row of the expanded table.
type Rule struct {
	LeaveType LeaveType
	Weekday   time.Weekday
	Outcome   Outcome
}

// Rules expands the table to every (explicit leave type x weekday) pair,
// ordered by leave type then Sunday..Saturday.
func (t *PolicyTable) Rules() []Rule {
	var rules []Rule
	for _, lt := range t.LeaveTypes() {
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			rules = append(rules, Rule{LeaveType: lt, Weekday: wd, Outcome: t.Lookup(lt, wd)})
		}
	}
	return rules
}
