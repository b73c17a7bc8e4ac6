package allowance

import (
	"github.com/kimmokhwa/meals-management-app/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROSTER AGGREGATION
// =============================================================================

// CalculateForRoster runs CalculateMonth for every employee, in roster order,
// and rolls the results up by team and for the whole organization.
//
// Leave records are indexed once by employee and day. Employees that fail
// validation are reported in Skipped and left out of every total; the rest
// of the roster is still calculated.
func (c *Calculator) CalculateForRoster(employees []Employee, leaves []LeaveRecord, m generic.Month) RosterReport {
	report := RosterReport{
		Month:  m,
		Totals: RosterTotals{WorkDays: decimal.Zero},
	}
	if err := m.Validate(); err != nil {
		for _, emp := range employees {
			report.Skipped = append(report.Skipped, skipped(emp, err))
		}
		return report
	}

	index := c.indexLeaves(leaves, m)

	for _, emp := range employees {
		if err := emp.Validate(); err != nil {
			c.Logger.Printf("[Aggregator] WARN skipping employee %s (%s): %v", emp.ID, emp.Name, err)
			report.Skipped = append(report.Skipped, skipped(emp, err))
			continue
		}
		byDay := index[emp.ID]
		if byDay == nil {
			byDay = dayLeaves{}
		}
		report.PerEmployee = append(report.PerEmployee, c.calculate(emp, byDay, m))
	}

	report.ByTeam = SummarizeByTeam(report.PerEmployee)
	for _, ts := range report.ByTeam {
		report.Totals.EmployeeCount += ts.EmployeeCount
		report.Totals.WorkDays = report.Totals.WorkDays.Add(ts.TotalWorkDays)
		report.Totals.TotalAllowance += ts.TotalAllowance
	}
	return report
}

// indexLeaves partitions leaves of month m by employee, then by day.
func (c *Calculator) indexLeaves(leaves []LeaveRecord, m generic.Month) map[string]dayLeaves {
	index := make(map[string]dayLeaves)
	for _, lr := range leaves {
		if !m.Contains(lr.Date) {
			continue
		}
		byDay := index[lr.EmployeeID]
		if byDay == nil {
			byDay = make(dayLeaves)
			index[lr.EmployeeID] = byDay
		}
		c.addLeave(byDay, lr)
	}
	return index
}

// SummarizeByTeam groups results by team. Known teams come first in their
// fixed order, unknown teams follow in first-seen order. Within a team the
// input order is kept.
func SummarizeByTeam(results []MonthlyResult) []TeamSummary {
	groups := make(map[Team]*TeamSummary)
	var unknown []Team

	for _, res := range results {
		ts, ok := groups[res.Team]
		if !ok {
			ts = &TeamSummary{Team: res.Team, TotalWorkDays: decimal.Zero}
			groups[res.Team] = ts
			if !res.Team.IsKnown() {
				unknown = append(unknown, res.Team)
			}
		}
		ts.EmployeeCount++
		ts.TotalWorkDays = ts.TotalWorkDays.Add(res.WorkDays)
		ts.TotalAllowance += res.TotalAllowance
		ts.Employees = append(ts.Employees, res)
	}

	summaries := make([]TeamSummary, 0, len(groups))
	for _, team := range append(Teams(), unknown...) {
		if ts, ok := groups[team]; ok {
			summaries = append(summaries, *ts)
		}
	}
	return summaries
}

func skipped(emp Employee, err error) SkippedEmployee {
	return SkippedEmployee{EmployeeID: emp.ID, EmployeeName: emp.Name, Team: emp.Team, Err: err}
}
