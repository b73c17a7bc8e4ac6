/*
Package postgres provides a PostgreSQL-backed allowance.Repository on pgx.

The schema lives in assets/migrations and is applied with cmd/migrate.
Dates are DATE columns; leave_records carries UNIQUE(employee_id,
leave_date), so SaveLeaveRecords upserts on that pair inside a single
transaction.
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/generic"
)

const (
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
)

// Queryer is the query surface shared by pgxpool.Pool and pgx.Tx.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DB is a Queryer that can open transactions.
type DB interface {
	Queryer
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SQL statements. Tests match them verbatim.
const (
	listEmployeesSQL = `SELECT id, name, team, join_date, leave_date FROM employees ORDER BY team, name, id`
	getEmployeeSQL   = `SELECT id, name, team, join_date, leave_date FROM employees WHERE id = $1`
	saveEmployeeSQL  = `INSERT INTO employees (id, name, team, join_date, leave_date)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    team = EXCLUDED.team,
    join_date = EXCLUDED.join_date,
    leave_date = EXCLUDED.leave_date`
	deleteEmployeeSQL = `DELETE FROM employees WHERE id = $1`

	listLeavesSQL = `SELECT id, employee_id, leave_date, leave_type FROM leave_records
WHERE leave_date BETWEEN $1 AND $2
ORDER BY leave_date, created_at, id`
	getLeaveSQL  = `SELECT id, employee_id, leave_date, leave_type FROM leave_records WHERE id = $1`
	findLeaveSQL = `SELECT id, employee_id, leave_date, leave_type FROM leave_records WHERE employee_id = $1 AND leave_date = $2`
	upsertLeaveSQL = `INSERT INTO leave_records (id, employee_id, leave_date, leave_type)
VALUES ($1, $2, $3, $4)
ON CONFLICT (employee_id, leave_date) DO UPDATE SET leave_type = EXCLUDED.leave_type`
	deleteLeaveSQL = `DELETE FROM leave_records WHERE id = $1`

	getLockSQL = `SELECT locked FROM month_locks WHERE year = $1 AND month = $2`
	setLockSQL = `INSERT INTO month_locks (year, month, locked, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (year, month) DO UPDATE SET locked = EXCLUDED.locked, updated_at = now()`
)

// Repository implements allowance.Repository.
type Repository struct {
	db DB
}

// NewRepository wraps a pool (or a mock of one).
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// =============================================================================
// ROSTER STORE
// =============================================================================

func (r *Repository) ListEmployees(ctx context.Context) ([]allowance.Employee, error) {
	rows, err := r.db.Query(ctx, listEmployeesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []allowance.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func (r *Repository) GetEmployee(ctx context.Context, id string) (*allowance.Employee, error) {
	emp, err := scanEmployee(r.db.QueryRow(ctx, getEmployeeSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *Repository) SaveEmployee(ctx context.Context, emp allowance.Employee) error {
	_, err := r.db.Exec(ctx, saveEmployeeSQL,
		emp.ID, emp.Name, string(emp.Team), emp.JoinDate.Time(), nullableDate(emp.LeaveDate))
	return translatePgError(err)
}

func (r *Repository) DeleteEmployee(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteEmployeeSQL, id)
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("employee %s: %w", id, generic.ErrEntityNotFound)
	}
	return nil
}

// =============================================================================
// LEAVE STORE
// =============================================================================

func (r *Repository) ListLeaveRecords(ctx context.Context, period generic.Period) ([]allowance.LeaveRecord, error) {
	rows, err := r.db.Query(ctx, listLeavesSQL, period.Start.Time(), period.End.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []allowance.LeaveRecord
	for rows.Next() {
		lr, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, lr)
	}
	return records, rows.Err()
}

func (r *Repository) GetLeaveRecord(ctx context.Context, id string) (*allowance.LeaveRecord, error) {
	return r.queryLeave(ctx, getLeaveSQL, id)
}

func (r *Repository) FindLeaveRecord(ctx context.Context, employeeID string, date generic.Date) (*allowance.LeaveRecord, error) {
	return r.queryLeave(ctx, findLeaveSQL, employeeID, date.Time())
}

func (r *Repository) queryLeave(ctx context.Context, query string, args ...any) (*allowance.LeaveRecord, error) {
	lr, err := scanLeave(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lr, nil
}

// SaveLeaveRecords upserts every record in one transaction.
func (r *Repository) SaveLeaveRecords(ctx context.Context, records []allowance.LeaveRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, lr := range records {
		if lr.Date.IsZero() {
			return fmt.Errorf("%w: leave %s has no date", generic.ErrInvalidDate, lr.ID)
		}
		if _, err := tx.Exec(ctx, upsertLeaveSQL, lr.ID, lr.EmployeeID, lr.Date.Time(), string(lr.Type)); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("employee %s: %w", lr.EmployeeID, generic.ErrEntityNotFound)
			}
			return translatePgError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	committed = true
	return nil
}

func (r *Repository) DeleteLeaveRecord(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteLeaveSQL, id)
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("leave %s: %w", id, generic.ErrEntityNotFound)
	}
	return nil
}

// =============================================================================
// LOCK STORE
// =============================================================================

func (r *Repository) GetMonthLock(ctx context.Context, m generic.Month) (bool, error) {
	var locked bool
	err := r.db.QueryRow(ctx, getLockSQL, m.Year, int(m.Month)).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return locked, err
}

func (r *Repository) SetMonthLock(ctx context.Context, m generic.Month, locked bool) error {
	_, err := r.db.Exec(ctx, setLockSQL, m.Year, int(m.Month), locked)
	return translatePgError(err)
}

// =============================================================================
// SCANNING & ERRORS
// =============================================================================

func scanEmployee(row pgx.Row) (allowance.Employee, error) {
	var (
		emp       allowance.Employee
		team      string
		joinDate  time.Time
		leaveDate sql.NullTime
	)
	if err := row.Scan(&emp.ID, &emp.Name, &team, &joinDate, &leaveDate); err != nil {
		return allowance.Employee{}, err
	}
	emp.Team = allowance.Team(team)
	emp.JoinDate = dateOf(joinDate)
	if leaveDate.Valid {
		d := dateOf(leaveDate.Time)
		emp.LeaveDate = &d
	}
	return emp, nil
}

func scanLeave(row pgx.Row) (allowance.LeaveRecord, error) {
	var (
		lr        allowance.LeaveRecord
		date      time.Time
		leaveType string
	)
	if err := row.Scan(&lr.ID, &lr.EmployeeID, &date, &leaveType); err != nil {
		return allowance.LeaveRecord{}, err
	}
	lr.Date = dateOf(date)
	lr.Type = allowance.ParseLeaveType(leaveType)
	return lr, nil
}

// dateOf reads a DATE column, which pgx returns at UTC midnight.
func dateOf(t time.Time) generic.Date {
	return generic.DateOf(t.UTC())
}

func nullableDate(d *generic.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time()
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode
}

func translatePgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == checkViolationCode {
		return fmt.Errorf("%w: %s", generic.ErrInvalidEmployeeData, pgErr.Message)
	}
	return err
}

var _ allowance.Repository = (*Repository)(nil)
