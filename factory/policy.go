/*
Package factory provides JSON to Go policy conversion.

PURPOSE:
  Converts a JSON policy definition into an allowance.PolicyTable and the
  daily rate, so a rule or rate revision ships as a file instead of a code
  change.

JSON SCHEMA:
  {
    "id": "meal-allowance",
    "name": "Meal Allowance",
    "daily_rate": 8000,
    "saturday": {"payable": false, "contribution": 0},
    "half_day_fallback": {"payable": true, "contribution": 0.5},
    "rules": [
      {"leave_type": "afternoon_half", "payable": true, "contribution": 1, "half_day": true},
      {"leave_type": "연차", "payable": false, "contribution": 0}
    ]
  }

  leave_type accepts a code or a stored label. Rules apply Monday to
  Friday; Saturday and Sunday are fixed by the table itself.

USAGE:
  pf := NewPolicyFactory()
  table, rate, err := pf.ParsePolicyTable(allowance.DefaultPolicyJSON())

SEE ALSO:
  - allowance/policies.go: PolicyTable
  - allowance/factory.go: JSON presets
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/shopspring/decimal"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyTableJSON is the JSON representation of a policy table.
type PolicyTableJSON struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	DailyRate       int64       `json:"daily_rate,omitempty"`
	Saturday        OutcomeJSON `json:"saturday"`
	HalfDayFallback OutcomeJSON `json:"half_day_fallback"`
	Rules           []RuleJSON  `json:"rules"`
}

// OutcomeJSON is a payment decision.
type OutcomeJSON struct {
	Payable      bool    `json:"payable"`
	Contribution float64 `json:"contribution"`
}

// RuleJSON is the weekday outcome of one leave type.
type RuleJSON struct {
	LeaveType    string  `json:"leave_type"`
	Payable      bool    `json:"payable"`
	Contribution float64 `json:"contribution"`
	HalfDay      bool    `json:"half_day,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to policy tables.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicyTable parses a JSON string into a PolicyTable and daily rate.
// A missing daily_rate yields allowance.DefaultDailyRate.
func (f *PolicyFactory) ParsePolicyTable(jsonStr string) (*allowance.PolicyTable, decimal.Decimal, error) {
	var pj PolicyTableJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to parse policy JSON: %w", err)
	}

	return f.FromJSON(pj)
}

// LoadPolicyFile reads and parses a policy JSON file.
func (f *PolicyFactory) LoadPolicyFile(path string) (*allowance.PolicyTable, decimal.Decimal, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	return f.ParsePolicyTable(string(b))
}

// FromJSON converts PolicyTableJSON to a PolicyTable.
func (f *PolicyFactory) FromJSON(pj PolicyTableJSON) (*allowance.PolicyTable, decimal.Decimal, error) {
	if pj.ID == "" {
		return nil, decimal.Zero, fmt.Errorf("policy id is required")
	}
	if pj.DailyRate < 0 {
		return nil, decimal.Zero, fmt.Errorf("policy %s: daily_rate must not be negative", pj.ID)
	}

	rules := make(map[allowance.LeaveType]allowance.Outcome, len(pj.Rules))
	for _, rj := range pj.Rules {
		lt := allowance.ParseLeaveType(rj.LeaveType)
		if lt == "" {
			return nil, decimal.Zero, fmt.Errorf("policy %s: rule without leave_type", pj.ID)
		}
		if _, dup := rules[lt]; dup {
			return nil, decimal.Zero, fmt.Errorf("policy %s: duplicate rule for %s", pj.ID, lt)
		}
		rules[lt] = allowance.Outcome{
			Payable:      rj.Payable,
			Contribution: decimal.NewFromFloat(rj.Contribution),
			HalfDay:      rj.HalfDay,
		}
	}

	table, err := allowance.NewPolicyTable(pj.ID, pj.Name, rules,
		parseOutcome(pj.Saturday), parseOutcome(pj.HalfDayFallback))
	if err != nil {
		return nil, decimal.Zero, err
	}

	rate := decimal.NewFromInt(allowance.DefaultDailyRate)
	if pj.DailyRate > 0 {
		rate = decimal.NewFromInt(pj.DailyRate)
	}
	return table, rate, nil
}

// ToJSON converts a PolicyTable back to its JSON form.
func (f *PolicyFactory) ToJSON(table *allowance.PolicyTable, dailyRate decimal.Decimal) PolicyTableJSON {
	pj := PolicyTableJSON{
		ID:              table.ID,
		Name:            table.Name,
		DailyRate:       dailyRate.IntPart(),
		Saturday:        toOutcomeJSON(table.Saturday()),
		HalfDayFallback: toOutcomeJSON(table.HalfDayFallback()),
	}
	for _, lt := range table.LeaveTypes() {
		o := table.Lookup(lt, time.Monday)
		pj.Rules = append(pj.Rules, RuleJSON{
			LeaveType:    string(lt),
			Payable:      o.Payable,
			Contribution: o.Contribution.InexactFloat64(),
			HalfDay:      o.HalfDay,
		})
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseOutcome(oj OutcomeJSON) allowance.Outcome {
	return allowance.Outcome{
		Payable:      oj.Payable,
		Contribution: decimal.NewFromFloat(oj.Contribution),
	}
}

func toOutcomeJSON(o allowance.Outcome) OutcomeJSON {
	return OutcomeJSON{Payable: o.Payable, Contribution: o.Contribution.InexactFloat64()}
}
