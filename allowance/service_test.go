package allowance_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/generic"
	"github.com/kimmokhwa/meals-management-app/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// countingRepo counts reads and writes and injects failures on demand.
type countingRepo struct {
	*memory.Store

	mu            sync.Mutex
	employeeReads int
	leaveReads    int
	saves         int
	employeesErr  error
	leavesErr     error
	failSave      int // 1-based SaveLeaveRecords call that fails, 0 for none
}

func newCountingRepo() *countingRepo {
	return &countingRepo{Store: memory.New()}
}

func (r *countingRepo) ListEmployees(ctx context.Context) ([]allowance.Employee, error) {
	r.mu.Lock()
	r.employeeReads++
	err := r.employeesErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Store.ListEmployees(ctx)
}

func (r *countingRepo) ListLeaveRecords(ctx context.Context, period generic.Period) ([]allowance.LeaveRecord, error) {
	r.mu.Lock()
	r.leaveReads++
	err := r.leavesErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Store.ListLeaveRecords(ctx, period)
}

func (r *countingRepo) SaveLeaveRecords(ctx context.Context, records []allowance.LeaveRecord) error {
	r.mu.Lock()
	r.saves++
	fail := r.failSave != 0 && r.saves == r.failSave
	r.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return r.Store.SaveLeaveRecords(ctx, records)
}

func (r *countingRepo) reads() (employees, leaves int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.employeeReads, r.leaveReads
}

func newTestService(t *testing.T, opts ...allowance.ServiceOption) (*allowance.Service, *countingRepo) {
	t.Helper()
	repo := newCountingRepo()
	ctx := context.Background()
	for _, emp := range []allowance.Employee{
		employee("emp1", allowance.TeamMedical, "2023-01-01"),
		employee("emp2", allowance.TeamCounseling, "2023-02-01"),
	} {
		require.NoError(t, repo.Store.SaveEmployee(ctx, emp))
	}
	opts = append([]allowance.ServiceOption{allowance.WithLogger(quietLogger())}, opts...)
	return allowance.NewService(repo, newCalculator(), opts...), repo
}

// =============================================================================
// READS
// =============================================================================

func TestService_CalculateUsesCache(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Calculate(ctx, jan2024, false)
	require.NoError(t, err)
	_, err = svc.Calculate(ctx, jan2024, false)
	require.NoError(t, err)
	employees, leaves := repo.reads()
	assert.Equal(t, 1, employees)
	assert.Equal(t, 1, leaves)

	// force bypasses the cache
	_, err = svc.Calculate(ctx, jan2024, true)
	require.NoError(t, err)
	employees, leaves = repo.reads()
	assert.Equal(t, 2, employees)
	assert.Equal(t, 2, leaves)

	svc.ClearCache()
	_, err = svc.Calculate(ctx, jan2024, false)
	require.NoError(t, err)
	employees, _ = repo.reads()
	assert.Equal(t, 3, employees)
}

func TestService_CalculateWithoutCache(t *testing.T) {
	svc, repo := newTestService(t, allowance.WithCache(generic.NopCache{}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Calculate(ctx, jan2024, false)
		require.NoError(t, err)
	}
	employees, _ := repo.reads()
	assert.Equal(t, 3, employees)
}

func TestService_DegradedWhenLeavesUnavailable(t *testing.T) {
	// GIVEN: a leave on record but a failing leave read
	svc, repo := newTestService(t)
	ctx := context.Background()
	_, err := svc.SetLeave(ctx, "emp1", date("2024-01-15"), allowance.LeaveAnnual)
	require.NoError(t, err)
	repo.leavesErr = errors.New("timeout")

	// WHEN
	report, err := svc.Calculate(ctx, jan2024, true)

	// THEN: the report is produced and flagged
	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.Contains(t, report.DegradedReason, "leave records unavailable")
	res, ok := report.Result("emp1")
	require.True(t, ok)
	assert.True(t, res.Degraded)
	assert.Equal(t, "27", res.WorkDays.String(), "computed as if no leave was taken")
}

func TestService_RosterFailureIsFatal(t *testing.T) {
	svc, repo := newTestService(t)
	repo.employeesErr = errors.New("connection refused")

	_, err := svc.Calculate(context.Background(), jan2024, true)

	assert.ErrorIs(t, err, generic.ErrRepository)
	assert.True(t, generic.IsRetryable(err))
}

func TestService_CalculateEmployee(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	require.NoError(t, repo.Store.SaveEmployee(ctx, allowance.Employee{ID: "emp3", Name: "박민수", Team: allowance.TeamCoordinator}))

	res, err := svc.CalculateEmployee(ctx, jan2024, "emp2", false)
	require.NoError(t, err)
	assert.Equal(t, int64(216000), res.TotalAllowance)

	_, err = svc.CalculateEmployee(ctx, jan2024, "emp3", false)
	assert.ErrorIs(t, err, generic.ErrInvalidEmployeeData, "skipped employee reports why")

	_, err = svc.CalculateEmployee(ctx, jan2024, "ghost", false)
	assert.ErrorIs(t, err, generic.ErrEntityNotFound)
}

// =============================================================================
// LEAVE MUTATIONS
// =============================================================================

func TestService_SetLeaveRecalculates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	before, err := svc.CalculateEmployee(ctx, jan2024, "emp1", false)
	require.NoError(t, err)

	_, err = svc.SetLeave(ctx, "emp1", date("2024-01-16"), allowance.LeaveMorningHalf)
	require.NoError(t, err)

	after, err := svc.CalculateEmployee(ctx, jan2024, "emp1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(216000), before.TotalAllowance)
	assert.Equal(t, int64(208000), after.TotalAllowance, "cached leaves invalidated by the write")
}

func TestService_SetLeaveUpdatesSameDay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.SetLeave(ctx, "emp1", date("2024-01-16"), allowance.LeaveAnnual)
	require.NoError(t, err)
	second, err := svc.SetLeave(ctx, "emp1", date("2024-01-16"), "오후반차")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, allowance.LeaveAfternoonHalf, second.Type, "labels are stored as codes")

	leaves, err := svc.ListLeaves(ctx, jan2024, true)
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, allowance.LeaveAfternoonHalf, leaves[0].Type)
}

func TestService_SetLeaveRejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetLeave(ctx, "emp1", date("2024-01-16"), " ")
	assert.ErrorIs(t, err, generic.ErrInvalidLeaveType)

	_, err = svc.SetLeave(ctx, "emp1", generic.Date{}, allowance.LeaveAnnual)
	assert.ErrorIs(t, err, generic.ErrInvalidDate)

	_, err = svc.SetLeave(ctx, "ghost", date("2024-01-16"), allowance.LeaveAnnual)
	assert.ErrorIs(t, err, generic.ErrEntityNotFound)
}

func TestService_LockedMonthRefusesWrites(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	rec, err := svc.SetLeave(ctx, "emp1", date("2024-01-16"), allowance.LeaveAnnual)
	require.NoError(t, err)

	// GIVEN: the month is locked directly in the store
	require.NoError(t, repo.Store.SetMonthLock(ctx, jan2024, true))

	// THEN: every leave write is refused
	_, err = svc.SetLeave(ctx, "emp1", date("2024-01-17"), allowance.LeaveAnnual)
	assert.ErrorIs(t, err, generic.ErrMonthLocked)
	err = svc.RemoveLeave(ctx, "emp1", date("2024-01-16"))
	assert.ErrorIs(t, err, generic.ErrMonthLocked)
	err = svc.DeleteLeave(ctx, rec.ID)
	assert.ErrorIs(t, err, generic.ErrMonthLocked)
	_, err = svc.AssignTeamLeave(ctx, allowance.TeamMedical, date("2024-01-18"), allowance.LeaveDayOff)
	assert.ErrorIs(t, err, generic.ErrMonthLocked)

	// AND: other months stay writable
	_, err = svc.SetLeave(ctx, "emp1", date("2024-02-01"), allowance.LeaveAnnual)
	assert.NoError(t, err)

	// AND: unlocking through the service reopens the month
	require.NoError(t, svc.SetMonthLock(ctx, jan2024, false))
	locked, err := svc.MonthLocked(ctx, jan2024)
	require.NoError(t, err)
	assert.False(t, locked)
	assert.NoError(t, svc.RemoveLeave(ctx, "emp1", date("2024-01-16")))
}

func TestService_RemoveAndDeleteLeave(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.RemoveLeave(ctx, "emp1", date("2024-01-16"))
	assert.ErrorIs(t, err, generic.ErrEntityNotFound)
	assert.ErrorIs(t, svc.DeleteLeave(ctx, "missing"), generic.ErrEntityNotFound)

	rec, err := svc.SetLeave(ctx, "emp1", date("2024-01-16"), allowance.LeaveAnnual)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteLeave(ctx, rec.ID))

	leaves, err := svc.ListLeaves(ctx, jan2024, false)
	require.NoError(t, err)
	assert.Empty(t, leaves)
}

func TestService_AssignTeamLeaveInBatches(t *testing.T) {
	// GIVEN: five nurses, one of whom joins after the date
	svc, repo := newTestService(t, allowance.WithBatchSize(2))
	ctx := context.Background()
	for _, emp := range []allowance.Employee{
		employee("n1", allowance.TeamNursing, "2023-01-01"),
		employee("n2", allowance.TeamNursing, "2023-01-01"),
		employee("n3", allowance.TeamNursing, "2023-01-01"),
		employee("n4", allowance.TeamNursing, "2023-01-01"),
		employee("n5", allowance.TeamNursing, "2024-01-20"),
	} {
		require.NoError(t, repo.Store.SaveEmployee(ctx, emp))
	}
	existing, err := svc.SetLeave(ctx, "n2", date("2024-01-08"), allowance.LeaveAnnual)
	require.NoError(t, err)

	// WHEN
	records, err := svc.AssignTeamLeave(ctx, allowance.TeamNursing, date("2024-01-08"), allowance.LeaveDayOff)

	// THEN: four records in two batches, the existing one updated in place
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, 3, repo.saves, "one SetLeave plus two batches")
	for _, rec := range records {
		assert.NotEqual(t, "n5", rec.EmployeeID)
		if rec.EmployeeID == "n2" {
			assert.Equal(t, existing.ID, rec.ID)
		}
	}

	leaves, err := svc.ListLeaves(ctx, jan2024, false)
	require.NoError(t, err)
	require.Len(t, leaves, 4)
	for _, lr := range leaves {
		assert.Equal(t, allowance.LeaveDayOff, lr.Type)
	}
}

func TestService_AssignTeamLeaveStopsOnFailedBatch(t *testing.T) {
	svc, repo := newTestService(t, allowance.WithBatchSize(2))
	ctx := context.Background()
	for _, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, repo.Store.SaveEmployee(ctx, employee(id, allowance.TeamNursing, "2023-01-01")))
	}
	repo.failSave = 2

	written, err := svc.AssignTeamLeave(ctx, allowance.TeamNursing, date("2024-01-08"), allowance.LeaveDayOff)

	assert.ErrorIs(t, err, generic.ErrRepository)
	assert.Len(t, written, 2, "first batch stays written")
	leaves, err := svc.ListLeaves(ctx, jan2024, true)
	require.NoError(t, err)
	assert.Len(t, leaves, 2)
}

// =============================================================================
// ROSTER MUTATIONS
// =============================================================================

func TestService_SaveAndDeleteEmployee(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SaveEmployee(ctx, allowance.Employee{Team: allowance.TeamNursing, JoinDate: date("2024-01-01")})
	assert.ErrorIs(t, err, generic.ErrInvalidEmployeeData)

	zero := generic.Date{}
	saved, err := svc.SaveEmployee(ctx, allowance.Employee{
		Name: "정하늘", Team: allowance.TeamNursing, JoinDate: date("2024-01-15"), LeaveDate: &zero,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Nil(t, saved.LeaveDate, "empty leave date means still employed")

	employees, err := svc.ListEmployees(ctx, false)
	require.NoError(t, err)
	assert.Len(t, employees, 3, "roster cache invalidated by the write")

	_, err = svc.SetLeave(ctx, saved.ID, date("2024-01-16"), allowance.LeaveAnnual)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteEmployee(ctx, saved.ID))

	_, err = svc.GetEmployee(ctx, saved.ID)
	assert.ErrorIs(t, err, generic.ErrEntityNotFound)
	leaves, err := svc.ListLeaves(ctx, jan2024, false)
	require.NoError(t, err)
	assert.Empty(t, leaves, "leaves go with the employee")
}
