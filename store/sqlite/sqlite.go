/*
Package sqlite provides a SQLite-backed allowance.Repository.

PURPOSE:
  The embedded default store. The Postgres store (store/postgres) holds
  the same three tables with the same constraints.

KEY TABLES:
  employees:     Roster entries (join_date / leave_date as YYYY-MM-DD)
  leave_records: One row per employee per day
  month_locks:   Finalization flag per (year, month)

CONSTRAINTS:
  - UNIQUE(employee_id, leave_date) on leave_records: a second leave on
    the same day updates the existing row (ON CONFLICT DO UPDATE)
  - leave_records.employee_id REFERENCES employees ON DELETE CASCADE

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases are shared by every caller.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/meals.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). The Postgres schema is versioned under
  assets/migrations and applied with cmd/migrate.

SEE ALSO:
  - allowance/repository.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/generic"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements allowance.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		team TEXT NOT NULL,
		join_date TEXT NOT NULL,
		leave_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_team_name
		ON employees(team, name);

	CREATE TABLE IF NOT EXISTS leave_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		leave_date TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, leave_date)
	);

	-- Month calculation reads by date range (hot path)
	CREATE INDEX IF NOT EXISTS idx_leave_records_date
		ON leave_records(leave_date);

	CREATE TABLE IF NOT EXISTS month_locks (
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		locked INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (year, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROSTER STORE
// =============================================================================

const employeeColumns = "id, name, team, join_date, leave_date"

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp allowance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, team, join_date, leave_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			team = excluded.team,
			join_date = excluded.join_date,
			leave_date = excluded.leave_date
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, string(emp.Team),
		emp.JoinDate.String(),
		nullDate(emp.LeaveDate),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id string) (*allowance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployees returns all employees ordered by team, then name.
func (s *Store) ListEmployees(ctx context.Context) ([]allowance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees ORDER BY team, name, id",
	)
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

// DeleteEmployee removes an employee; their leave records cascade.
func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "employee "+id)
}

// =============================================================================
// LEAVE STORE
// =============================================================================

const leaveColumns = "id, employee_id, leave_date, leave_type"

// ListLeaveRecords returns the records dated within period, ordered by date.
func (s *Store) ListLeaveRecords(ctx context.Context, period generic.Period) ([]allowance.LeaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leaveColumns+` FROM leave_records
		WHERE leave_date BETWEEN ? AND ?
		ORDER BY leave_date, rowid`,
		period.Start.String(), period.End.String(),
	)
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

// GetLeaveRecord retrieves a leave record by ID.
func (s *Store) GetLeaveRecord(ctx context.Context, id string) (*allowance.LeaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeave(ctx, "SELECT "+leaveColumns+" FROM leave_records WHERE id = ?", id)
}

// FindLeaveRecord returns the employee's record on date, if any.
func (s *Store) FindLeaveRecord(ctx context.Context, employeeID string, date generic.Date) (*allowance.LeaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeave(ctx,
		"SELECT "+leaveColumns+" FROM leave_records WHERE employee_id = ? AND leave_date = ?",
		employeeID, date.String())
}

func (s *Store) queryLeave(ctx context.Context, query string, args ...any) (*allowance.LeaveRecord, error) {
	lr, err := scanLeave(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lr, nil
}

// SaveLeaveRecords upserts records on (employee_id, leave_date) in one
// transaction.
func (s *Store) SaveLeaveRecords(ctx context.Context, records []allowance.LeaveRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leave_records (id, employee_id, leave_date, leave_type, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, leave_date) DO UPDATE SET
			leave_type = excluded.leave_type
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, lr := range records {
		if lr.Date.IsZero() {
			return fmt.Errorf("%w: leave %s has no date", generic.ErrInvalidDate, lr.ID)
		}
		if _, err := stmt.ExecContext(ctx, lr.ID, lr.EmployeeID, lr.Date.String(), string(lr.Type), now); err != nil {
			if isForeignKeyError(err) {
				return fmt.Errorf("employee %s: %w", lr.EmployeeID, generic.ErrEntityNotFound)
			}
			return err
		}
	}
	return tx.Commit()
}

// DeleteLeaveRecord removes a leave record by ID.
func (s *Store) DeleteLeaveRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM leave_records WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "leave "+id)
}

// =============================================================================
// LOCK STORE
// =============================================================================

// GetMonthLock returns the stored flag, false when none was stored.
func (s *Store) GetMonthLock(ctx context.Context, m generic.Month) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var locked bool
	err := s.db.QueryRowContext(ctx,
		"SELECT locked FROM month_locks WHERE year = ? AND month = ?",
		m.Year, int(m.Month),
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return locked, err
}

// SetMonthLock stores the flag for m.
func (s *Store) SetMonthLock(ctx context.Context, m generic.Month, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO month_locks (year, month, locked, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(year, month) DO UPDATE SET
			locked = excluded.locked,
			updated_at = excluded.updated_at`,
		m.Year, int(m.Month), locked, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"leave_records", "employees", "month_locks"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (allowance.Employee, error) {
	var emp allowance.Employee
	var team, joinDate string
	var leaveDate sql.NullString
	if err := row.Scan(&emp.ID, &emp.Name, &team, &joinDate, &leaveDate); err != nil {
		return allowance.Employee{}, err
	}
	emp.Team = allowance.Team(team)

	// Unparseable dates leave JoinDate unset; the calculator skips the employee.
	join, err := generic.ParseDate(joinDate)
	if err != nil {
		log.Printf("[SQLite] WARN employee %s join_date: %v", emp.ID, err)
		return emp, nil
	}
	emp.JoinDate = join
	if leaveDate.Valid && leaveDate.String != "" {
		d, err := generic.ParseDate(leaveDate.String)
		if err != nil {
			log.Printf("[SQLite] WARN employee %s leave_date: %v", emp.ID, err)
			emp.JoinDate = generic.Date{}
			return emp, nil
		}
		emp.LeaveDate = &d
	}
	return emp, nil
}

func scanLeave(row scanner) (allowance.LeaveRecord, error) {
	var lr allowance.LeaveRecord
	var date, leaveType string
	if err := row.Scan(&lr.ID, &lr.EmployeeID, &date, &leaveType); err != nil {
		return allowance.LeaveRecord{}, err
	}
	d, err := generic.ParseDate(date)
	if err != nil {
		return allowance.LeaveRecord{}, fmt.Errorf("leave %s leave_date: %w", lr.ID, err)
	}
	lr.Date = d
	lr.Type = allowance.ParseLeaveType(leaveType)
	return lr, nil
}

func nullDate(d *generic.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, generic.ErrEntityNotFound)
	}
	return nil
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var _ allowance.Repository = (*Store)(nil)
