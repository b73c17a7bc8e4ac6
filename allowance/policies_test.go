package allowance_test

import (
	"testing"
	"time"

	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy_WeekdayRules(t *testing.T) {
	table := allowance.DefaultPolicyTable()

	cases := []struct {
		leave        allowance.LeaveType
		payable      bool
		contribution string
		halfDay      bool
	}{
		{allowance.LeaveAfternoonHalf, true, "1", true},
		{allowance.LeaveAfternoonAnnualHalf, true, "1", true},
		{allowance.LeaveMorningHalf, false, "0", true},
		{allowance.LeaveMorningAnnualHalf, false, "0", true},
		{allowance.LeaveMorningAfternoonHalf, false, "0", true},
		{allowance.LeaveDayOff, false, "0", false},
		{allowance.LeaveAnnual, false, "0", false},
		{allowance.LeaveSick, false, "0", false},
		{allowance.LeaveAbsence, false, "0", false},
	}
	for _, tc := range cases {
		t.Run(string(tc.leave), func(t *testing.T) {
			for wd := time.Monday; wd <= time.Friday; wd++ {
				o := table.Lookup(tc.leave, wd)
				assert.Equal(t, tc.payable, o.Payable, wd.String())
				assert.Equal(t, tc.contribution, o.Contribution.String(), wd.String())
				assert.Equal(t, tc.halfDay, o.HalfDay, wd.String())
				assert.Equal(t, allowance.SourceExplicit, o.Source)
			}
		})
	}
}

func TestDefaultPolicy_SaturdayNeverPays(t *testing.T) {
	table := allowance.DefaultPolicyTable()

	for _, lt := range append(allowance.LeaveTypes(), "custom_half", "vacation") {
		o := table.Lookup(lt, time.Saturday)
		assert.False(t, o.Payable, lt)
		assert.True(t, o.Contribution.IsZero(), lt)
		assert.False(t, o.HalfDay, "saturday leave is not a half day: %s", lt)
		assert.Equal(t, allowance.SourceSaturday, o.Source)
	}
}

func TestDefaultPolicy_SundayIsRest(t *testing.T) {
	o := allowance.DefaultPolicyTable().Lookup(allowance.LeaveAfternoonHalf, time.Sunday)
	assert.Equal(t, allowance.SourceSunday, o.Source)
	assert.True(t, o.Contribution.IsZero())
}

func TestDefaultPolicy_UnknownTypes(t *testing.T) {
	table := allowance.DefaultPolicyTable()

	// GIVEN: half-day names the table does not list
	for _, lt := range []allowance.LeaveType{"custom_half", "특별반차", "HALF_day"} {
		o := table.Lookup(lt, time.Wednesday)
		if lt == "HALF_day" {
			// matching is case sensitive
			assert.Equal(t, allowance.SourceUnknown, o.Source)
			continue
		}
		// THEN: they fall back to half a day
		assert.True(t, o.Payable, lt)
		assert.Equal(t, "0.5", o.Contribution.String(), lt)
		assert.True(t, o.HalfDay, lt)
		assert.True(t, o.IsFractional(), lt)
		assert.Equal(t, allowance.SourceHalfDayFallback, o.Source)
	}

	// Anything else is non-payable.
	o := table.Lookup("vacation", time.Wednesday)
	assert.False(t, o.Payable)
	assert.True(t, o.Contribution.IsZero())
	assert.Equal(t, allowance.SourceUnknown, o.Source)
}

func TestPolicyTable_Rules(t *testing.T) {
	table := allowance.DefaultPolicyTable()
	rules := table.Rules()

	require.Len(t, rules, 9*7)
	assert.Len(t, table.LeaveTypes(), 9)
	for _, r := range rules {
		assert.True(t, allowance.ValidContribution(r.Outcome.Contribution), "%s %s", r.LeaveType, r.Weekday)
		assert.Equal(t, r.Outcome.Payable, r.Outcome.Contribution.IsPositive(), "%s %s", r.LeaveType, r.Weekday)
		if r.Weekday == time.Saturday || r.Weekday == time.Sunday {
			assert.False(t, r.Outcome.Payable, "%s %s", r.LeaveType, r.Weekday)
		}
	}

	// sorted by leave type, then Sunday..Saturday
	assert.Equal(t, allowance.LeaveAbsence, rules[0].LeaveType)
	assert.Equal(t, time.Sunday, rules[0].Weekday)
	assert.Equal(t, time.Saturday, rules[6].Weekday)
}

func TestNewPolicyTable_RejectsBadOutcomes(t *testing.T) {
	zero := allowance.Outcome{Contribution: decimal.Zero}
	half := allowance.Outcome{Payable: true, Contribution: decimal.NewFromFloat(0.5)}

	_, err := allowance.NewPolicyTable("p", "P", map[allowance.LeaveType]allowance.Outcome{
		allowance.LeaveAnnual: {Payable: true, Contribution: decimal.NewFromFloat(0.3)},
	}, zero, half)
	assert.ErrorContains(t, err, "must be 0, 0.5 or 1")

	_, err = allowance.NewPolicyTable("p", "P", map[allowance.LeaveType]allowance.Outcome{
		allowance.LeaveAnnual: {Payable: true, Contribution: decimal.Zero},
	}, zero, half)
	assert.ErrorContains(t, err, "payable must be true exactly when contribution > 0")

	_, err = allowance.NewPolicyTable("p", "P", map[allowance.LeaveType]allowance.Outcome{"": zero}, zero, half)
	assert.ErrorContains(t, err, "empty leave type")

	_, err = allowance.NewPolicyTable("p", "P", nil, allowance.Outcome{Payable: true, Contribution: decimal.Zero}, half)
	assert.ErrorContains(t, err, "saturday")
}

func TestParseLeaveType(t *testing.T) {
	assert.Equal(t, allowance.LeaveAfternoonHalf, allowance.ParseLeaveType("오후반차"))
	assert.Equal(t, allowance.LeaveAnnual, allowance.ParseLeaveType(" annual "))
	assert.Equal(t, allowance.LeaveType("경조사"), allowance.ParseLeaveType("경조사"))
	assert.Equal(t, "경조사", allowance.LeaveType("경조사").Label())
	assert.Equal(t, "오전+오후반차", allowance.LeaveMorningAfternoonHalf.Label())

	assert.True(t, allowance.LeaveMorningHalf.IsHalfDayVariant())
	assert.True(t, allowance.LeaveType("반차").IsHalfDayVariant())
	assert.False(t, allowance.LeaveSick.IsHalfDayVariant())
}
