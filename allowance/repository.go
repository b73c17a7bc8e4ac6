/*
repository.go - Persistence contract required by the service

PURPOSE:
  Defines the interface between the allowance domain and the data store.
  The calculator never touches it; only Service does, so every network
  failure surfaces in one place.

KEY INTERFACES:
  RosterStore: Employees
  LeaveStore:  Leave records (one per employee per day)
  LockStore:   Month finalization flags
  Repository:  All three

CONTRACT:
  - ListEmployees orders by team, then name.
  - Get/Find return (nil, nil) when nothing matches.
  - Delete returns generic.ErrEntityNotFound when nothing was deleted.
  - SaveLeaveRecords upserts on (EmployeeID, Date) and is all-or-nothing,
    which is what keeps the one-leave-per-day invariant at the write side.
  - GetMonthLock returns false when no flag was ever stored.

IMPLEMENTATIONS:
  - store/memory:   In-memory, for tests and demos
  - store/sqlite:   Embedded default
  - store/postgres: Hosted Postgres via pgx
*/
package allowance

import (
	"context"

	"github.com/kimmokhwa/meals-management-app/generic"
)

// RosterStore persists employees.
type RosterStore interface {
	ListEmployees(ctx context.Context) ([]Employee, error)
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	SaveEmployee(ctx context.Context, emp Employee) error
	DeleteEmployee(ctx context.Context, id string) error
}

// LeaveStore persists leave records.
type LeaveStore interface {
	// ListLeaveRecords returns records whose date is within period, ordered by date.
	ListLeaveRecords(ctx context.Context, period generic.Period) ([]LeaveRecord, error)
	GetLeaveRecord(ctx context.Context, id string) (*LeaveRecord, error)
	FindLeaveRecord(ctx context.Context, employeeID string, date generic.Date) (*LeaveRecord, error)
	SaveLeaveRecords(ctx context.Context, records []LeaveRecord) error
	DeleteLeaveRecord(ctx context.Context, id string) error
}

// LockStore persists month locks.
type LockStore interface {
	GetMonthLock(ctx context.Context, m generic.Month) (bool, error)
	SetMonthLock(ctx context.Context, m generic.Month, locked bool) error
}

// Repository is everything the service needs from the data store.
type Repository interface {
	RosterStore
	LeaveStore
	LockStore
}
