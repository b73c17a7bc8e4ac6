package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/generic"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func day(s string) time.Time { return generic.MustParseDate(s).Time() }

func TestRepository_ListEmployees(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	rows := pgxmock.NewRows([]string{"id", "name", "team", "join_date", "leave_date"}).
		AddRow("emp1", "김철수", "의국팀", day("2023-01-01"), nil).
		AddRow("emp3", "박민수", "코디팀", day("2023-01-15"), day("2023-12-31"))
	mock.ExpectQuery(regexp.QuoteMeta(listEmployeesSQL)).WillReturnRows(rows)

	employees, err := repo.ListEmployees(context.Background())
	require.NoError(t, err)
	require.Len(t, employees, 2)

	assert.Equal(t, allowance.TeamMedical, employees[0].Team)
	assert.Equal(t, "2023-01-01", employees[0].JoinDate.String())
	assert.Nil(t, employees[0].LeaveDate)
	require.NotNil(t, employees[1].LeaveDate)
	assert.Equal(t, "2023-12-31", employees[1].LeaveDate.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetEmployee_NoRows(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta(getEmployeeSQL)).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	emp, err := repo.GetEmployee(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, emp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveEmployee_CheckViolation(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	left := generic.MustParseDate("2022-12-31")
	emp := allowance.Employee{ID: "e", Name: "A", Team: allowance.TeamNursing,
		JoinDate: generic.MustParseDate("2023-01-01"), LeaveDate: &left}

	mock.ExpectExec(regexp.QuoteMeta(saveEmployeeSQL)).
		WithArgs("e", "A", "간호팀", day("2023-01-01"), day("2022-12-31")).
		WillReturnError(&pgconn.PgError{Code: checkViolationCode, Message: "employees_dates_check"})

	err := repo.SaveEmployee(context.Background(), emp)
	assert.ErrorIs(t, err, generic.ErrInvalidEmployeeData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteEmployee_NotFound(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteEmployeeSQL)).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.DeleteEmployee(context.Background(), "ghost")
	assert.ErrorIs(t, err, generic.ErrEntityNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListLeaveRecords_NormalizesLabels(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	jan, err := generic.NewMonth(2024, time.January)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"id", "employee_id", "leave_date", "leave_type"}).
		AddRow("l1", "emp1", day("2024-01-15"), "연차").
		AddRow("l2", "emp2", day("2024-01-16"), "morning_half")
	mock.ExpectQuery(regexp.QuoteMeta(listLeavesSQL)).
		WithArgs(day("2024-01-01"), day("2024-01-31")).
		WillReturnRows(rows)

	records, err := repo.ListLeaveRecords(context.Background(), jan.Period())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, allowance.LeaveAnnual, records[0].Type)
	assert.Equal(t, allowance.LeaveMorningHalf, records[1].Type)
	assert.Equal(t, "2024-01-16", records[1].Date.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveLeaveRecords_CommitsBatch(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	records := []allowance.LeaveRecord{
		{ID: "l1", EmployeeID: "emp1", Date: generic.MustParseDate("2024-01-15"), Type: allowance.LeaveAnnual},
		{ID: "l2", EmployeeID: "emp2", Date: generic.MustParseDate("2024-01-15"), Type: allowance.LeaveAnnual},
	}

	mock.ExpectBegin()
	for _, lr := range records {
		mock.ExpectExec(regexp.QuoteMeta(upsertLeaveSQL)).
			WithArgs(lr.ID, lr.EmployeeID, lr.Date.Time(), string(lr.Type)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.SaveLeaveRecords(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveLeaveRecords_RollsBackOnUnknownEmployee(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	lr := allowance.LeaveRecord{ID: "l1", EmployeeID: "ghost", Date: generic.MustParseDate("2024-01-15"), Type: allowance.LeaveSick}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(upsertLeaveSQL)).
		WithArgs(lr.ID, lr.EmployeeID, lr.Date.Time(), string(lr.Type)).
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode})
	mock.ExpectRollback()

	err := repo.SaveLeaveRecords(context.Background(), []allowance.LeaveRecord{lr})
	assert.ErrorIs(t, err, generic.ErrEntityNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MonthLock(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	feb, err := generic.NewMonth(2024, time.February)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(getLockSQL)).
		WithArgs(2024, 2).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(setLockSQL)).
		WithArgs(2024, 2, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(regexp.QuoteMeta(getLockSQL)).
		WithArgs(2024, 2).
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(true))

	ctx := context.Background()
	locked, err := repo.GetMonthLock(ctx, feb)
	require.NoError(t, err)
	assert.False(t, locked, "absent row means unlocked")

	require.NoError(t, repo.SetMonthLock(ctx, feb, true))

	locked, err = repo.GetMonthLock(ctx, feb)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslatePgError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, translatePgError(nil))

	checkErr := &pgconn.PgError{Code: checkViolationCode}
	assert.ErrorIs(t, translatePgError(checkErr), generic.ErrInvalidEmployeeData)

	other := errors.New("other")
	assert.Same(t, other, translatePgError(other))
}
