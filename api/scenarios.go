/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a roster and
	a leave calendar for January 2024, so the calendar UI and the
	allowance report have something to show.

AVAILABLE SCENARIOS:

	sample-roster:  Three employees, one annual leave, one morning half day
	full-clinic:    Every team staffed, mid-month hire, departure, Saturday
	                leave, team-wide day off
	locked-month:   sample-roster with January 2024 finalized

HOW SCENARIOS WORK:
 1. Reset the store and clear the service cache
 2. Create employees through the service
 3. Register leaves (single and team-wide)
 4. Optionally lock the month

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "full-clinic"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler, writeJSON
  - allowance/service.go: the operations the loaders call
*/
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sample-roster",
		Name:        "Sample Roster",
		Description: "Three employees in January 2024 with an annual leave and a morning half day",
	},
	{
		ID:          "full-clinic",
		Name:        "Full Clinic",
		Description: "Every team staffed: mid-month hire, departure, Saturday leave, team-wide day off",
	},
	{
		ID:          "locked-month",
		Name:        "Locked Month",
		Description: "Sample roster with January 2024 finalized; leave edits are refused",
	},
}

var scenarioLoaders = map[string]func(*Handler, context.Context) error{
	"sample-roster": (*Handler).loadSampleRosterScenario,
	"full-clinic":   (*Handler).loadFullClinicScenario,
	"locked-month":  (*Handler).loadLockedMonthScenario,
}

// ScenarioMonth is the month every scenario populates.
var ScenarioMonth = generic.Month{Year: 2024, Month: time.January}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario resets the store and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if !h.resetLocked(w, ctx) {
		return
	}
	if err := load(h, ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID
	log.Printf("[Scenario] loaded %s", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"scenario": req.ScenarioID,
		"month":    ScenarioMonth.String(),
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.resetLocked(w, r.Context()) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resetLocked wipes the store and the service cache. h.mu must be held.
func (h *Handler) resetLocked(w http.ResponseWriter, ctx context.Context) bool {
	if h.Store == nil {
		writeError(w, http.StatusNotImplemented, "Reset is not supported by the configured store", nil)
		return false
	}
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return false
	}
	h.Service.ClearCache()
	h.currentScenario = ""
	return true
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadSampleRosterScenario seeds the three-person roster:
// emp1 works all of January with one annual leave, emp2 takes a morning
// half day, emp3 left at the end of 2023.
func (h *Handler) loadSampleRosterScenario(ctx context.Context) error {
	if err := h.seedEmployees(ctx, sampleEmployees()); err != nil {
		return err
	}
	return h.seedLeaves(ctx, []seedLeave{
		{"emp1", "2024-01-15", allowance.LeaveAnnual},
		{"emp2", "2024-01-16", allowance.LeaveMorningHalf},
	})
}

// loadFullClinicScenario staffs every team.
func (h *Handler) loadFullClinicScenario(ctx context.Context) error {
	employees := append(sampleEmployees(),
		employee("emp4", "최지우", allowance.TeamNursing, "2022-03-02", ""),
		employee("emp5", "정하늘", allowance.TeamNursing, "2024-01-15", ""),
		employee("emp6", "한소라", allowance.TeamSkinCare, "2021-07-01", ""),
		employee("emp7", "오민준", allowance.TeamManagement, "2020-05-11", "2024-01-19"),
		employee("emp8", "윤서연", allowance.TeamCounseling, "2023-09-01", ""),
	)
	if err := h.seedEmployees(ctx, employees); err != nil {
		return err
	}

	if err := h.seedLeaves(ctx, []seedLeave{
		{"emp1", "2024-01-15", allowance.LeaveAnnual},
		{"emp2", "2024-01-16", allowance.LeaveMorningHalf},
		{"emp2", "2024-01-23", allowance.LeaveAfternoonHalf},
		{"emp6", "2024-01-06", allowance.LeaveAnnual}, // Saturday
		{"emp6", "2024-01-10", allowance.LeaveSick},
		{"emp8", "2024-01-12", allowance.LeaveMorningAfternoonHalf},
		{"emp8", "2024-01-26", allowance.LeaveAbsence},
	}); err != nil {
		return err
	}

	// Clinic-wide training day for nursing; emp5 has not joined yet.
	_, err := h.Service.AssignTeamLeave(ctx, allowance.TeamNursing,
		generic.MustParseDate("2024-01-08"), allowance.LeaveDayOff)
	return err
}

// loadLockedMonthScenario is sample-roster with January finalized.
func (h *Handler) loadLockedMonthScenario(ctx context.Context) error {
	if err := h.loadSampleRosterScenario(ctx); err != nil {
		return err
	}
	return h.Service.SetMonthLock(ctx, ScenarioMonth, true)
}

// =============================================================================
// SEED HELPERS
// =============================================================================

type seedLeave struct {
	employeeID string
	date       string
	leaveType  allowance.LeaveType
}

func sampleEmployees() []allowance.Employee {
	return []allowance.Employee{
		employee("emp1", "김철수", allowance.TeamMedical, "2023-01-01", ""),
		employee("emp2", "이영희", allowance.TeamCounseling, "2023-02-01", ""),
		employee("emp3", "박민수", allowance.TeamCoordinator, "2023-01-15", "2023-12-31"),
	}
}

func employee(id, name string, team allowance.Team, joined, left string) allowance.Employee {
	emp := allowance.Employee{ID: id, Name: name, Team: team, JoinDate: generic.MustParseDate(joined)}
	if left != "" {
		d := generic.MustParseDate(left)
		emp.LeaveDate = &d
	}
	return emp
}

func (h *Handler) seedEmployees(ctx context.Context, employees []allowance.Employee) error {
	for _, emp := range employees {
		if _, err := h.Service.SaveEmployee(ctx, emp); err != nil {
			return fmt.Errorf("employee %s: %w", emp.ID, err)
		}
	}
	return nil
}

func (h *Handler) seedLeaves(ctx context.Context, leaves []seedLeave) error {
	for _, l := range leaves {
		if _, err := h.Service.SetLeave(ctx, l.employeeID, generic.MustParseDate(l.date), l.leaveType); err != nil {
			return fmt.Errorf("leave %s/%s: %w", l.employeeID, l.date, err)
		}
	}
	return nil
}
