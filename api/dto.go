/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags; handlers call
  h.validate.Struct before touching the service. Dates travel as
  "YYYY-MM-DD", months as "YYYY-MM", work days as numbers (0.5 steps).

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyTableJSON
*/
package api

import (
	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/generic"
)

// =============================================================================
// ROSTER
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Team      string  `json:"team"`
	JoinDate  string  `json:"join_date"`
	LeaveDate *string `json:"leave_date"`
	Active    bool    `json:"active"`
}

// SaveEmployeeRequest creates (POST) or replaces (PUT) an employee.
// An empty leave_date clears it.
type SaveEmployeeRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name" validate:"required,max=100"`
	Team      string `json:"team" validate:"required,max=50"`
	JoinDate  string `json:"join_date" validate:"required,datetime=2006-01-02"`
	LeaveDate string `json:"leave_date" validate:"omitempty,datetime=2006-01-02"`
}

// ImportResultDTO summarizes a roster CSV import.
type ImportResultDTO struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
}

// TeamDTO is one entry of the fixed team list.
type TeamDTO struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// =============================================================================
// LEAVES
// =============================================================================

// LeaveDTO represents a leave record.
type LeaveDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	LeaveType  string `json:"leave_type"`
	Label      string `json:"label"`
}

// LeaveTypeDTO describes a selectable leave type.
type LeaveTypeDTO struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	HalfDay bool   `json:"half_day"`
}

// SetLeaveRequest sets the leave type of one employee on one day.
type SetLeaveRequest struct {
	LeaveType string `json:"leave_type" validate:"required"`
}

// TeamLeaveRequest assigns a leave to every member of a team on one day.
type TeamLeaveRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	LeaveType string `json:"leave_type" validate:"required"`
}

// TeamLeaveResultDTO lists the records written by a team-wide assignment.
type TeamLeaveResultDTO struct {
	Team     string     `json:"team"`
	Date     string     `json:"date"`
	Assigned int        `json:"assigned"`
	Records  []LeaveDTO `json:"records"`
}

// MonthLockDTO is the finalization flag of a month.
type MonthLockDTO struct {
	Month  string `json:"month"`
	Locked bool   `json:"locked"`
}

// SetMonthLockRequest sets the flag. Locked is a pointer so that an
// explicit false is distinguishable from a missing field.
type SetMonthLockRequest struct {
	Locked *bool `json:"locked" validate:"required"`
}

// =============================================================================
// ALLOWANCES
// =============================================================================

// DayDTO is one ledger line.
type DayDTO struct {
	Date          string  `json:"date"`
	Weekday       string  `json:"weekday"`
	Status        string  `json:"status"`
	LeaveType     string  `json:"leave_type,omitempty"`
	LeaveLabel    string  `json:"leave_label,omitempty"`
	Contribution  float64 `json:"contribution"`
	PayableAmount int64   `json:"payable_amount"`
}

// MonthlyResultDTO is one employee's calculation.
type MonthlyResultDTO struct {
	EmployeeID        string   `json:"employee_id"`
	EmployeeName      string   `json:"employee_name"`
	Team              string   `json:"team"`
	Month             string   `json:"month"`
	TotalDays         int      `json:"total_days"`
	WorkDays          float64  `json:"work_days"`
	OffDays           int      `json:"off_days"`
	HalfDays          int      `json:"half_days"`
	AfternoonHalfDays int      `json:"afternoon_half_days"`
	Sundays           int      `json:"sundays"`
	TotalAllowance    int64    `json:"total_allowance"`
	Degraded          bool     `json:"degraded,omitempty"`
	Ledger            []DayDTO `json:"ledger,omitempty"`
}

// TeamSummaryDTO rolls up one team.
type TeamSummaryDTO struct {
	Team           string             `json:"team"`
	EmployeeCount  int                `json:"employee_count"`
	TotalWorkDays  float64            `json:"total_work_days"`
	TotalAllowance int64              `json:"total_allowance"`
	Employees      []MonthlyResultDTO `json:"employees"`
}

// TotalsDTO are organization-wide sums.
type TotalsDTO struct {
	EmployeeCount  int     `json:"employee_count"`
	WorkDays       float64 `json:"work_days"`
	TotalAllowance int64   `json:"total_allowance"`
}

// SkippedDTO is an employee left out of the calculation.
type SkippedDTO struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Team         string `json:"team"`
	Error        string `json:"error"`
}

// RosterReportDTO is the monthly report.
type RosterReportDTO struct {
	Month          string           `json:"month"`
	Teams          []TeamSummaryDTO `json:"teams"`
	Totals         TotalsDTO        `json:"totals"`
	Skipped        []SkippedDTO     `json:"skipped,omitempty"`
	Degraded       bool             `json:"degraded"`
	DegradedReason string           `json:"degraded_reason,omitempty"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e allowance.Employee, today generic.Date) EmployeeDTO {
	dto := EmployeeDTO{
		ID:       e.ID,
		Name:     e.Name,
		Team:     string(e.Team),
		JoinDate: e.JoinDate.String(),
		Active:   e.IsActive(today),
	}
	if e.LeaveDate != nil && !e.LeaveDate.IsZero() {
		s := e.LeaveDate.String()
		dto.LeaveDate = &s
	}
	return dto
}

func toLeaveDTO(lr allowance.LeaveRecord) LeaveDTO {
	return LeaveDTO{
		ID:         lr.ID,
		EmployeeID: lr.EmployeeID,
		Date:       lr.Date.String(),
		LeaveType:  string(lr.Type),
		Label:      lr.Type.Label(),
	}
}

func toMonthlyResultDTO(res allowance.MonthlyResult, withLedger bool) MonthlyResultDTO {
	dto := MonthlyResultDTO{
		EmployeeID:        res.EmployeeID,
		EmployeeName:      res.EmployeeName,
		Team:              string(res.Team),
		Month:             res.Month.String(),
		TotalDays:         res.TotalDays,
		WorkDays:          res.WorkDays.InexactFloat64(),
		OffDays:           res.OffDays,
		HalfDays:          res.HalfDays,
		AfternoonHalfDays: res.AfternoonHalfDays,
		Sundays:           res.Sundays,
		TotalAllowance:    res.TotalAllowance,
		Degraded:          res.Degraded,
	}
	if withLedger {
		dto.Ledger = make([]DayDTO, len(res.Ledger))
		for i, line := range res.Ledger {
			dto.Ledger[i] = DayDTO{
				Date:          line.Date.String(),
				Weekday:       line.Weekday.String(),
				Status:        string(line.Status),
				LeaveType:     string(line.Leave),
				Contribution:  line.Contribution.InexactFloat64(),
				PayableAmount: line.PayableAmount,
			}
			if line.Leave != "" {
				dto.Ledger[i].LeaveLabel = line.Leave.Label()
			}
		}
	}
	return dto
}

func toRosterReportDTO(r *allowance.RosterReport, withLedger bool) RosterReportDTO {
	dto := RosterReportDTO{
		Month: r.Month.String(),
		Teams: make([]TeamSummaryDTO, 0, len(r.ByTeam)),
		Totals: TotalsDTO{
			EmployeeCount:  r.Totals.EmployeeCount,
			WorkDays:       r.Totals.WorkDays.InexactFloat64(),
			TotalAllowance: r.Totals.TotalAllowance,
		},
		Degraded:       r.Degraded,
		DegradedReason: r.DegradedReason,
	}
	for _, ts := range r.ByTeam {
		tdto := TeamSummaryDTO{
			Team:           string(ts.Team),
			EmployeeCount:  ts.EmployeeCount,
			TotalWorkDays:  ts.TotalWorkDays.InexactFloat64(),
			TotalAllowance: ts.TotalAllowance,
			Employees:      make([]MonthlyResultDTO, len(ts.Employees)),
		}
		for i, res := range ts.Employees {
			tdto.Employees[i] = toMonthlyResultDTO(res, withLedger)
		}
		dto.Teams = append(dto.Teams, tdto)
	}
	for _, sk := range r.Skipped {
		dto.Skipped = append(dto.Skipped, SkippedDTO{
			EmployeeID:   sk.EmployeeID,
			EmployeeName: sk.EmployeeName,
			Team:         string(sk.Team),
			Error:        sk.Err.Error(),
		})
	}
	return dto
}
