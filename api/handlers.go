/*
handlers.go - HTTP API handlers for the meal allowance service

PURPOSE:
  Exposes the allowance service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to allowance.Service.

ENDPOINTS:
  Reference:
    GET    /api/teams                           Fixed team order
    GET    /api/leave-types                     Leave type codes and labels
    GET    /api/policy                          Active policy table and rate

  Roster:
    GET    /api/employees[?active=true]         List employees
    POST   /api/employees                       Create employee
    GET    /api/employees/{id}                  Get employee
    PUT    /api/employees/{id}                  Replace employee
    DELETE /api/employees/{id}                  Delete employee and leaves
    GET    /api/employees/export.csv            Roster CSV
    POST   /api/employees/import                Roster CSV import

  Leave calendar:
    GET    /api/leaves?month=YYYY-MM            Leave records of a month
    PUT    /api/employees/{id}/leaves/{date}    Set the leave of a day
    DELETE /api/employees/{id}/leaves/{date}    Clear the leave of a day
    DELETE /api/leaves/{id}                     Delete a leave record
    POST   /api/teams/{team}/leaves             Team-wide leave for a day
    GET    /api/months/{month}/lock             Month lock flag
    PUT    /api/months/{month}/lock             Set month lock flag

  Allowances:
    GET    /api/allowances/{month}              Monthly report
    GET    /api/allowances/{month}/employees/{id}  One employee with ledger
    GET    /api/allowances/{month}/export.csv   Report CSV
    GET    /api/allowances/{month}/export.xlsx  Report workbook

READ QUERY PARAMETERS:
  force=true   bypass the service cache
  ledger=true  include day-by-day ledgers in the monthly report

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 423: Month is locked
  - 502: Data store failure
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - export.go: CSV and XLSX rendering
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/factory"
	"github.com/kimmokhwa/meals-management-app/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter is implemented by stores that can wipe their data (demo use).
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service       *allowance.Service
	PolicyFactory *factory.PolicyFactory

	// Store is nil when the backing store cannot be reset; scenario
	// loading is then refused.
	Store Resetter

	validate *validator.Validate
	today    func() generic.Date

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler on top of svc.
func NewHandler(svc *allowance.Service, store Resetter) *Handler {
	return &Handler{
		Service:       svc,
		PolicyFactory: factory.NewPolicyFactory(),
		Store:         store,
		validate:      validator.New(),
		today:         generic.Today,
	}
}

// =============================================================================
// REFERENCE HANDLERS
// =============================================================================

// ListTeams returns the fixed team enumeration in display order.
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams := allowance.Teams()
	dtos := make([]TeamDTO, len(teams))
	for i, t := range teams {
		dtos[i] = TeamDTO{Name: string(t), Order: i}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListLeaveTypes returns the selectable leave types.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	policy := h.Service.Calculator().Policy
	types := allowance.LeaveTypes()
	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = LeaveTypeDTO{
			Code:    string(lt),
			Label:   lt.Label(),
			HalfDay: policy.Lookup(lt, time.Monday).HalfDay,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPolicy returns the active policy in its JSON file form.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	calc := h.Service.Calculator()
	writeJSON(w, http.StatusOK, h.PolicyFactory.ToJSON(calc.Policy, calc.DailyRate))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns the roster ordered by team then name.
// ?active=true keeps only employees without a past leave date.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.ListEmployees(r.Context(), queryBool(r, "force"))
	if err != nil {
		writeServiceError(w, "Failed to list employees", err)
		return
	}

	today := h.today()
	activeOnly := queryBool(r, "active")
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		if activeOnly && !e.IsActive(today) {
			continue
		}
		dtos = append(dtos, toEmployeeDTO(e, today))
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp, h.today()))
}

// CreateEmployee creates a new employee. The ID is generated when omitted.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req SaveEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.saveEmployee(w, r, req, http.StatusCreated)
}

// UpdateEmployee replaces an existing employee.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Service.GetEmployee(r.Context(), id); err != nil {
		writeServiceError(w, "Failed to get employee", err)
		return
	}

	var req SaveEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ID = id
	h.saveEmployee(w, r, req, http.StatusOK)
}

func (h *Handler) saveEmployee(w http.ResponseWriter, r *http.Request, req SaveEmployeeRequest, status int) {
	emp, err := employeeFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid employee", err)
		return
	}

	saved, err := h.Service.SaveEmployee(r.Context(), emp)
	if err != nil {
		writeServiceError(w, "Failed to save employee", err)
		return
	}
	writeJSON(w, status, toEmployeeDTO(saved, h.today()))
}

// DeleteEmployee removes an employee together with their leave records.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteEmployee(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "Failed to delete employee", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func employeeFromRequest(req SaveEmployeeRequest) (allowance.Employee, error) {
	emp := allowance.Employee{
		ID:   strings.TrimSpace(req.ID),
		Name: strings.TrimSpace(req.Name),
		Team: allowance.Team(strings.TrimSpace(req.Team)),
	}
	if !emp.Team.IsKnown() {
		return emp, &allowance.InvalidEmployeeError{EmployeeID: emp.ID, Reason: "unknown team " + string(emp.Team)}
	}

	join, err := generic.ParseDate(req.JoinDate)
	if err != nil {
		return emp, err
	}
	emp.JoinDate = join

	if req.LeaveDate != "" {
		left, err := generic.ParseDate(req.LeaveDate)
		if err != nil {
			return emp, err
		}
		emp.LeaveDate = &left
	}
	return emp, nil
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ListLeaves returns the leave records of ?month=YYYY-MM.
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	m, err := generic.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	records, err := h.Service.ListLeaves(r.Context(), m, queryBool(r, "force"))
	if err != nil {
		writeServiceError(w, "Failed to list leaves", err)
		return
	}

	dtos := make([]LeaveDTO, len(records))
	for i, lr := range records {
		dtos[i] = toLeaveDTO(lr)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetLeave sets the leave type of an employee on a day, replacing any
// existing record for that day.
func (h *Handler) SetLeave(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	var req SetLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}

	lr, err := h.Service.SetLeave(r.Context(), chi.URLParam(r, "id"), date, allowance.ParseLeaveType(req.LeaveType))
	if err != nil {
		writeServiceError(w, "Failed to set leave", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(lr))
}

// RemoveLeave clears the leave of an employee on a day.
func (h *Handler) RemoveLeave(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.RemoveLeave(r.Context(), chi.URLParam(r, "id"), date); err != nil {
		writeServiceError(w, "Failed to remove leave", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// DeleteLeave deletes a leave record by ID.
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteLeave(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "Failed to delete leave", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AssignTeamLeave registers the same leave for every team member employed
// on the given day.
func (h *Handler) AssignTeamLeave(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "team"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid team", err)
		return
	}
	team := allowance.Team(raw)
	if !team.IsKnown() {
		writeError(w, http.StatusBadRequest, "Unknown team", nil)
		return
	}

	var req TeamLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	records, err := h.Service.AssignTeamLeave(r.Context(), team, date, allowance.ParseLeaveType(req.LeaveType))
	if err != nil {
		writeServiceError(w, "Failed to assign team leave", err)
		return
	}

	resp := TeamLeaveResultDTO{
		Team:     string(team),
		Date:     date.String(),
		Assigned: len(records),
		Records:  make([]LeaveDTO, len(records)),
	}
	for i, lr := range records {
		resp.Records[i] = toLeaveDTO(lr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// MONTH LOCK HANDLERS
// =============================================================================

// GetMonthLock returns the finalization flag of a month.
func (h *Handler) GetMonthLock(w http.ResponseWriter, r *http.Request) {
	m, ok := monthParam(w, r)
	if !ok {
		return
	}
	locked, err := h.Service.MonthLocked(r.Context(), m)
	if err != nil {
		writeServiceError(w, "Failed to read month lock", err)
		return
	}
	writeJSON(w, http.StatusOK, MonthLockDTO{Month: m.String(), Locked: locked})
}

// SetMonthLock locks or unlocks a month.
func (h *Handler) SetMonthLock(w http.ResponseWriter, r *http.Request) {
	m, ok := monthParam(w, r)
	if !ok {
		return
	}
	var req SetMonthLockRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Service.SetMonthLock(r.Context(), m, *req.Locked); err != nil {
		writeServiceError(w, "Failed to set month lock", err)
		return
	}
	writeJSON(w, http.StatusOK, MonthLockDTO{Month: m.String(), Locked: *req.Locked})
}

// =============================================================================
// ALLOWANCE HANDLERS
// =============================================================================

// GetAllowances returns the monthly report of the whole roster.
func (h *Handler) GetAllowances(w http.ResponseWriter, r *http.Request) {
	m, ok := monthParam(w, r)
	if !ok {
		return
	}
	report, err := h.Service.Calculate(r.Context(), m, queryBool(r, "force"))
	if err != nil {
		writeServiceError(w, "Failed to calculate allowances", err)
		return
	}
	writeJSON(w, http.StatusOK, toRosterReportDTO(report, queryBool(r, "ledger")))
}

// GetEmployeeAllowance returns one employee's result with the day ledger.
func (h *Handler) GetEmployeeAllowance(w http.ResponseWriter, r *http.Request) {
	m, ok := monthParam(w, r)
	if !ok {
		return
	}
	res, err := h.Service.CalculateEmployee(r.Context(), m, chi.URLParam(r, "id"), queryBool(r, "force"))
	if err != nil {
		writeServiceError(w, "Failed to calculate allowance", err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyResultDTO(res, true))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a service error to its HTTP status.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrMonthLocked):
		return http.StatusLocked
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrRepository):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func monthParam(w http.ResponseWriter, r *http.Request) (generic.Month, bool) {
	m, err := generic.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return generic.Month{}, false
	}
	return m, true
}

func dateParam(w http.ResponseWriter, r *http.Request) (generic.Date, bool) {
	d, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return generic.Date{}, false
	}
	return d, true
}
