// Package allowance implements the meal-allowance domain: the leave policy
// table, the per-employee monthly calculator, the roster aggregator and the
// service boundary that feeds them from a Repository.
package allowance

import (
	"strings"
	"time"

	"github.com/kimmokhwa/meals-management-app/generic"
	"github.com/shopspring/decimal"
)

// DefaultDailyRate is the allowance paid per workday-equivalent.
const DefaultDailyRate int64 = 8000

// =============================================================================
// TEAMS
// =============================================================================

// Team is the organizational unit an employee belongs to.
type Team string

const (
	TeamMedical     Team = "의국팀"
	TeamCounseling  Team = "상담팀"
	TeamCoordinator Team = "코디팀"
	TeamNursing     Team = "간호팀"
	TeamSkinCare    Team = "피부팀"
	TeamManagement  Team = "경영지원팀"
)

var teamOrder = []Team{
	TeamMedical,
	TeamCounseling,
	TeamCoordinator,
	TeamNursing,
	TeamSkinCare,
	TeamManagement,
}

// Teams returns the fixed team enumeration in display order.
func Teams() []Team {
	out := make([]Team, len(teamOrder))
	copy(out, teamOrder)
	return out
}

// IsKnown reports whether t is one of the fixed teams.
func (t Team) IsKnown() bool {
	return teamRank(t) >= 0
}

func teamRank(t Team) int {
	for i, known := range teamOrder {
		if known == t {
			return i
		}
	}
	return -1
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

// LeaveType identifies the kind of leave registered on a day.
// Unknown values are preserved as-is and handled by the policy fallback.
type LeaveType string

const (
	LeaveDayOff               LeaveType = "day_off"
	LeaveAnnual               LeaveType = "annual"
	LeaveMorningHalf          LeaveType = "morning_half"
	LeaveAfternoonHalf        LeaveType = "afternoon_half"
	LeaveMorningAnnualHalf    LeaveType = "morning_annual_half"
	LeaveAfternoonAnnualHalf  LeaveType = "afternoon_annual_half"
	LeaveMorningAfternoonHalf LeaveType = "morning_afternoon_half"
	LeaveSick                 LeaveType = "sick"
	LeaveAbsence              LeaveType = "absence"
)

// leaveLabels are the labels the calendar UI has always written to the store.
var leaveLabels = map[LeaveType]string{
	LeaveDayOff:               "휴무",
	LeaveAnnual:               "연차",
	LeaveMorningHalf:          "오전반차",
	LeaveAfternoonHalf:        "오후반차",
	LeaveMorningAnnualHalf:    "오전연차",
	LeaveAfternoonAnnualHalf:  "오후연차",
	LeaveMorningAfternoonHalf: "오전+오후반차",
	LeaveSick:                 "병가",
	LeaveAbsence:              "결근",
}

var leaveTypeOrder = []LeaveType{
	LeaveDayOff,
	LeaveAnnual,
	LeaveMorningHalf,
	LeaveAfternoonHalf,
	LeaveMorningAnnualHalf,
	LeaveAfternoonAnnualHalf,
	LeaveMorningAfternoonHalf,
	LeaveSick,
	LeaveAbsence,
}

// LeaveTypes returns every known leave type in display order.
func LeaveTypes() []LeaveType {
	out := make([]LeaveType, len(leaveTypeOrder))
	copy(out, leaveTypeOrder)
	return out
}

// ParseLeaveType maps a code or a stored label to a LeaveType.
// Unrecognized input is returned verbatim (trimmed), never rejected.
func ParseLeaveType(s string) LeaveType {
	s = strings.TrimSpace(s)
	if _, ok := leaveLabels[LeaveType(s)]; ok {
		return LeaveType(s)
	}
	for lt, label := range leaveLabels {
		if label == s {
			return lt
		}
	}
	return LeaveType(s)
}

// Label returns the display label, or the raw value for unknown types.
func (lt LeaveType) Label() string {
	if label, ok := leaveLabels[lt]; ok {
		return label
	}
	return string(lt)
}

// IsKnown reports whether lt is one of the enumerated types.
func (lt LeaveType) IsKnown() bool {
	_, ok := leaveLabels[lt]
	return ok
}

// IsHalfDayVariant reports whether lt names a partial-day leave, either by
// code ("..._half") or by its stored label ("...반차").
func (lt LeaveType) IsHalfDayVariant() bool {
	s := string(lt)
	return strings.Contains(s, "half") || strings.Contains(s, "반차") ||
		strings.Contains(lt.Label(), "반차")
}

// =============================================================================
// EMPLOYEES & LEAVE RECORDS
// =============================================================================

// Employee is a roster entry. LeaveDate is the last employed day, inclusive.
type Employee struct {
	ID        string
	Name      string
	Team      Team
	JoinDate  generic.Date
	LeaveDate *generic.Date
}

// Validate checks the invariants the calculator relies on.
func (e Employee) Validate() error {
	if e.JoinDate.IsZero() {
		return &InvalidEmployeeError{EmployeeID: e.ID, Reason: "join date is missing"}
	}
	if e.LeaveDate != nil && !e.LeaveDate.IsZero() && e.LeaveDate.Before(e.JoinDate) {
		return &InvalidEmployeeError{EmployeeID: e.ID, Reason: "leave date is before join date"}
	}
	return nil
}

// Tenure returns the employed range clipped to within.
// ok is false when the employee is not employed on any day of within.
func (e Employee) Tenure(within generic.Period) (generic.Period, bool) {
	start, end := within.Start, within.End
	if e.JoinDate.After(start) {
		start = e.JoinDate
	}
	if e.LeaveDate != nil && !e.LeaveDate.IsZero() && e.LeaveDate.Before(end) {
		end = *e.LeaveDate
	}
	if end.Before(start) {
		return generic.Period{}, false
	}
	return generic.Period{Start: start, End: end}, true
}

// EmployedOn reports whether d is within [JoinDate, LeaveDate].
func (e Employee) EmployedOn(d generic.Date) bool {
	if d.Before(e.JoinDate) {
		return false
	}
	return e.LeaveDate == nil || e.LeaveDate.IsZero() || !d.After(*e.LeaveDate)
}

// IsActive reports whether the employee has no leave date, or one on or after asOf.
func (e Employee) IsActive(asOf generic.Date) bool {
	return e.LeaveDate == nil || e.LeaveDate.IsZero() || !e.LeaveDate.Before(asOf)
}

// LeaveRecord is one employee's registered leave on one day.
type LeaveRecord struct {
	ID         string
	EmployeeID string
	Date       generic.Date
	Type       LeaveType
}

// =============================================================================
// CALCULATION RESULTS
// =============================================================================

// DayStatus classifies one day of the ledger.
type DayStatus string

const (
	StatusNotEmployed   DayStatus = "not_employed"
	StatusSundayRest    DayStatus = "sunday_rest"
	StatusSaturdayLeave DayStatus = "saturday_leave"
	StatusLeave         DayStatus = "leave"
	StatusWorked        DayStatus = "worked"
)

// DayClassification is one ledger line.
type DayClassification struct {
	Date          generic.Date
	Weekday       time.Weekday
	Status        DayStatus
	Leave         LeaveType // empty unless a leave record applied
	Contribution  decimal.Decimal
	PayableAmount int64
}

// MonthlyResult is the calculation for one employee and one month.
type MonthlyResult struct {
	EmployeeID        string
	EmployeeName      string
	Team              Team
	Month             generic.Month
	TotalDays         int
	WorkDays          decimal.Decimal
	OffDays           int
	HalfDays          int
	AfternoonHalfDays int // half days paid as a full workday (오후반차)
	Sundays           int
	TotalAllowance    int64
	Ledger            []DayClassification

	// Degraded is set when the result was computed without leave data.
	Degraded bool
}

// TeamSummary rolls up the results of one team.
type TeamSummary struct {
	Team           Team
	EmployeeCount  int
	TotalWorkDays  decimal.Decimal
	TotalAllowance int64
	Employees      []MonthlyResult
}

// RosterTotals are the organization-wide sums.
type RosterTotals struct {
	EmployeeCount  int
	WorkDays       decimal.Decimal
	TotalAllowance int64
}

// SkippedEmployee is an employee the aggregator could not calculate.
type SkippedEmployee struct {
	EmployeeID   string
	EmployeeName string
	Team         Team
	Err          error
}

// RosterReport is the output of the aggregator for one month.
type RosterReport struct {
	Month       generic.Month
	PerEmployee []MonthlyResult
	ByTeam      []TeamSummary
	Totals      RosterTotals
	Skipped     []SkippedEmployee

	Degraded       bool
	DegradedReason string
}

// MarkDegraded flags the report and every result as computed on partial data.
func (r *RosterReport) MarkDegraded(reason string) {
	r.Degraded = true
	r.DegradedReason = reason
	for i := range r.PerEmployee {
		r.PerEmployee[i].Degraded = true
	}
	for i := range r.ByTeam {
		for j := range r.ByTeam[i].Employees {
			r.ByTeam[i].Employees[j].Degraded = true
		}
	}
}

// Result returns the result for employeeID, if calculated.
func (r *RosterReport) Result(employeeID string) (MonthlyResult, bool) {
	for _, res := range r.PerEmployee {
		if res.EmployeeID == employeeID {
			return res, true
		}
	}
	return MonthlyResult{}, false
}
