// Package memory provides an in-memory allowance.Repository.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	employees map[string]allowance.Employee
	leaves    []allowance.LeaveRecord // sorted by date, then insertion
	locks     map[generic.Month]bool
}

func New() *Store {
	return &Store{
		employees: make(map[string]allowance.Employee),
		locks:     make(map[generic.Month]bool),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) ListEmployees(_ context.Context) ([]allowance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]allowance.Employee, 0, len(s.employees))
	for _, emp := range s.employees {
		result = append(result, emp)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Team != result[j].Team {
			return result[i].Team < result[j].Team
		}
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (*allowance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emp, ok := s.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (s *Store) SaveEmployee(_ context.Context, emp allowance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if emp.LeaveDate != nil {
		d := *emp.LeaveDate
		emp.LeaveDate = &d
	}
	s.employees[emp.ID] = emp
	return nil
}

// DeleteEmployee removes the employee and every leave record they own.
func (s *Store) DeleteEmployee(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[id]; !ok {
		return fmt.Errorf("employee %s: %w", id, generic.ErrEntityNotFound)
	}
	delete(s.employees, id)

	kept := s.leaves[:0]
	for _, lr := range s.leaves {
		if lr.EmployeeID != id {
			kept = append(kept, lr)
		}
	}
	s.leaves = kept
	return nil
}

// =============================================================================
// LEAVE RECORDS
// =============================================================================

func (s *Store) ListLeaveRecords(_ context.Context, period generic.Period) ([]allowance.LeaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []allowance.LeaveRecord
	for _, lr := range s.leaves {
		if period.Contains(lr.Date) {
			result = append(result, lr)
		}
	}
	return result, nil
}

func (s *Store) GetLeaveRecord(_ context.Context, id string) (*allowance.LeaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, lr := range s.leaves {
		if lr.ID == id {
			found := lr
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) FindLeaveRecord(_ context.Context, employeeID string, date generic.Date) (*allowance.LeaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.slotLocked(employeeID, date); i >= 0 {
		found := s.leaves[i]
		return &found, nil
	}
	return nil, nil
}

// SaveLeaveRecords upserts on (employee, date). Either every record is
// written or none is.
func (s *Store) SaveLeaveRecords(_ context.Context, records []allowance.LeaveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything first (atomic check)
	for _, lr := range records {
		if _, ok := s.employees[lr.EmployeeID]; !ok {
			return fmt.Errorf("employee %s: %w", lr.EmployeeID, generic.ErrEntityNotFound)
		}
		if lr.Date.IsZero() {
			return fmt.Errorf("%w: leave %s has no date", generic.ErrInvalidDate, lr.ID)
		}
	}

	for _, lr := range records {
		if i := s.slotLocked(lr.EmployeeID, lr.Date); i >= 0 {
			s.leaves[i].Type = lr.Type
			continue
		}
		s.insertLocked(lr)
	}
	return nil
}

// slotLocked returns the index of the employee's record on date, or -1.
func (s *Store) slotLocked(employeeID string, date generic.Date) int {
	for i, lr := range s.leaves {
		if lr.EmployeeID == employeeID && lr.Date.Equal(date) {
			return i
		}
	}
	return -1
}

func (s *Store) insertLocked(lr allowance.LeaveRecord) {
	// Binary search for insertion point, keeping date order
	i := sort.Search(len(s.leaves), func(i int) bool {
		return s.leaves[i].Date.After(lr.Date)
	})
	s.leaves = append(s.leaves, allowance.LeaveRecord{})
	copy(s.leaves[i+1:], s.leaves[i:])
	s.leaves[i] = lr
}

func (s *Store) DeleteLeaveRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, lr := range s.leaves {
		if lr.ID == id {
			s.leaves = append(s.leaves[:i], s.leaves[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("leave %s: %w", id, generic.ErrEntityNotFound)
}

// =============================================================================
// MONTH LOCKS
// =============================================================================

func (s *Store) GetMonthLock(_ context.Context, m generic.Month) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locks[m], nil
}

func (s *Store) SetMonthLock(_ context.Context, m generic.Month, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[m] = locked
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = make(map[string]allowance.Employee)
	s.leaves = nil
	s.locks = make(map[generic.Month]bool)
	return nil
}

var _ allowance.Repository = (*Store)(nil)
