/*
factory.go - JSON presets for the policy table

These functions build JSON policy definitions that PolicyFactory.ParsePolicyTable
turns back into a PolicyTable. They construct JSON directly to avoid an
import cycle with the factory package.

USAGE:
  jsonStr := allowance.DefaultPolicyJSON()
  table, rate, err := factory.NewPolicyFactory().ParsePolicyTable(jsonStr)
*/
package allowance

import (
	"encoding/json"
)

// DefaultPolicyJSON returns the JSON form of DefaultPolicyTable at the
// default daily rate.
func DefaultPolicyJSON() string {
	return PolicyJSON("meal-allowance", "Meal Allowance", DefaultDailyRate)
}

// PolicyJSON returns the current rule set under a custom id, name and rate.
func PolicyJSON(id, name string, dailyRate int64) string {
	rule := func(lt LeaveType, payable bool, contribution float64, half bool) map[string]interface{} {
		return map[string]interface{}{
			"leave_type":   string(lt),
			"payable":      payable,
			"contribution": contribution,
			"half_day":     half,
		}
	}
	pj := map[string]interface{}{
		"id":         id,
		"name":       name,
		"daily_rate": dailyRate,
		"saturday": map[string]interface{}{
			"payable":      false,
			"contribution": 0,
		},
		"half_day_fallback": map[string]interface{}{
			"payable":      true,
			"contribution": 0.5,
		},
		"rules": []map[string]interface{}{
			rule(LeaveAfternoonHalf, true, 1, true),
			rule(LeaveAfternoonAnnualHalf, true, 1, true),
			rule(LeaveMorningHalf, false, 0, true),
			rule(LeaveMorningAnnualHalf, false, 0, true),
			rule(LeaveMorningAfternoonHalf, false, 0, true),
			rule(LeaveDayOff, false, 0, false),
			rule(LeaveAnnual, false, 0, false),
			rule(LeaveSick, false, 0, false),
			rule(LeaveAbsence, false, 0, false),
		},
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
