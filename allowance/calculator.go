/*
calculator.go - Per-employee monthly allowance calculation

PURPOSE:
  Walks every day of a month for one employee, classifies it and derives
  workdays, off days, half days, Sundays and the allowance.

CLASSIFICATION ORDER (first match wins):
  1. Outside [JoinDate, LeaveDate]  -> not_employed, counts nothing
  2. Sunday                         -> sunday_rest, Sundays++
  3. Leave record on that date      -> PolicyTable.Lookup(type, weekday)
  4. Otherwise                      -> worked, WorkDays++

  TotalAllowance = floor(WorkDays x DailyRate)

PURITY:
  No clock reads and no I/O. The same inputs always produce the same
  result, which is what lets the service recalculate after every write
  instead of patching results incrementally.

SEE ALSO:
  - policies.go: Leave outcome per weekday
  - aggregator.go: Runs the calculator over a roster
*/
package allowance

import (
	"log"

	"github.com/kimmokhwa/meals-management-app/generic"
	"github.com/shopspring/decimal"
)

// Calculator holds the policy and rate used for every calculation.
type Calculator struct {
	Policy    *PolicyTable
	DailyRate decimal.Decimal
	Logger    *log.Logger
}

// NewCalculator returns a calculator. A nil policy means DefaultPolicyTable,
// a non-positive rate means DefaultDailyRate.
func NewCalculator(policy *PolicyTable, dailyRate decimal.Decimal, logger *log.Logger) *Calculator {
	if policy == nil {
		policy = DefaultPolicyTable()
	}
	if !dailyRate.IsPositive() {
		dailyRate = decimal.NewFromInt(DefaultDailyRate)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Calculator{Policy: policy, DailyRate: dailyRate, Logger: logger}
}

// dayLeaves maps "YYYY-MM-DD" to the leave registered that day.
type dayLeaves map[string]LeaveRecord

// CalculateMonth computes the result of emp for month m.
//
// leaves should hold emp's records for m; records of other employees or
// other months are ignored. When two records share a date the first one
// in slice order is used.
func (c *Calculator) CalculateMonth(emp Employee, leaves []LeaveRecord, m generic.Month) (MonthlyResult, error) {
	if err := m.Validate(); err != nil {
		return MonthlyResult{}, err
	}
	if err := emp.Validate(); err != nil {
		return MonthlyResult{}, err
	}

	byDay := make(dayLeaves)
	for _, lr := range leaves {
		if lr.EmployeeID != emp.ID || !m.Contains(lr.Date) {
			continue
		}
		c.addLeave(byDay, lr)
	}
	return c.calculate(emp, byDay, m), nil
}

// addLeave keeps the first record per day and reports duplicates.
func (c *Calculator) addLeave(byDay dayLeaves, lr LeaveRecord) {
	key := lr.Date.String()
	if existing, dup := byDay[key]; dup {
		c.Logger.Printf("[Calculator] WARN duplicate leave for employee %s on %s: keeping %q (id %s), ignoring %q (id %s)",
			lr.EmployeeID, key, existing.Type, existing.ID, lr.Type, lr.ID)
		return
	}
	byDay[key] = lr
}

func (c *Calculator) calculate(emp Employee, byDay dayLeaves, m generic.Month) MonthlyResult {
	period := m.Period()
	res := MonthlyResult{
		EmployeeID:   emp.ID,
		EmployeeName: emp.Name,
		Team:         emp.Team,
		Month:        m,
		TotalDays:    m.Days(),
		WorkDays:     decimal.Zero,
		Ledger:       make([]DayClassification, 0, m.Days()),
	}

	// Months wholly outside tenure: same result as iterating, without lookups.
	if _, employed := emp.Tenure(period); !employed {
		for _, day := range period.Days() {
			res.Ledger = append(res.Ledger, notEmployed(day))
		}
		return res
	}

	rate := c.DailyRate.IntPart()
	for _, day := range period.Days() {
		line := DayClassification{Date: day, Weekday: day.Weekday(), Contribution: decimal.Zero}

		switch {
		case !emp.EmployedOn(day):
			line.Status = StatusNotEmployed

		case day.IsSunday():
			line.Status = StatusSundayRest
			res.Sundays++

		default:
			lr, hasLeave := byDay[day.String()]
			if !hasLeave {
				worked := c.Policy.Worked()
				line.Status = StatusWorked
				line.Contribution = worked.Contribution
				line.PayableAmount = rate
				res.WorkDays = res.WorkDays.Add(worked.Contribution)
				break
			}

			outcome := c.Policy.Lookup(lr.Type, day.Weekday())
			if outcome.Source == SourceUnknown {
				c.Logger.Printf("[Calculator] WARN unknown leave type %q for employee %s on %s, treated as non-payable",
					lr.Type, emp.ID, day)
			}

			line.Status = StatusLeave
			if day.IsSaturday() {
				line.Status = StatusSaturdayLeave
			}
			line.Leave = lr.Type
			line.Contribution = outcome.Contribution
			res.WorkDays = res.WorkDays.Add(outcome.Contribution)

			if outcome.HalfDay || outcome.IsFractional() {
				res.HalfDays++
				if outcome.Payable && outcome.Contribution.Equal(fullDay) {
					res.AfternoonHalfDays++
				}
			}
			if outcome.Contribution.IsZero() {
				res.OffDays++
			} else {
				line.PayableAmount = rate
			}
		}

		res.Ledger = append(res.Ledger, line)
	}

	res.TotalAllowance = res.WorkDays.Mul(c.DailyRate).Floor().IntPart()
	return res
}

func notEmployed(day generic.Date) DayClassification {
	return DayClassification{
		Date:         day,
		Weekday:      day.Weekday(),
		Status:       StatusNotEmployed,
		Contribution: decimal.Zero,
	}
}
