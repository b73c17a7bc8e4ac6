/*
service.go - Boundary between the pure calculator and the data store

PURPOSE:
  Fetches what a calculation needs, runs the aggregator, and performs the
  roster/leave/lock mutations the calendar and roster views trigger.

READ PATH:
  Employees and the month's leave records are fetched concurrently and
  joined before aggregation. Both reads go through an expiring cache
  ("employees", "leaves:YYYY-MM"); force=true bypasses it.
  If the roster read fails the calculation fails. If only the leave read
  fails, the report is computed with no leave data and flagged Degraded,
  so nobody mistakes it for a complete month.

WRITE PATH:
  Every leave mutation re-reads the month lock from the repository right
  before writing (never from cache) and is refused with MonthLockedError
  when the month is finalized. Writes are single calls, confirmed and
  then followed by cache invalidation; callers recalculate afterwards.
  Setting a leave on a day that already has one updates that record,
  which keeps at most one leave per employee per day.

SEE ALSO:
  - repository.go: The store contract
  - aggregator.go: CalculateForRoster
*/
package allowance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kimmokhwa/meals-management-app/generic"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Default cache lifetimes and bulk insert size.
const (
	DefaultEmployeesTTL = 10 * time.Minute
	DefaultLeavesTTL    = 5 * time.Minute
	DefaultBatchSize    = 100
)

const employeesCacheKey = "employees"

func leavesCacheKey(m generic.Month) string { return "leaves:" + m.String() }

// Service serves calculations and mutations over a Repository.
type Service struct {
	repo    Repository
	calc    *Calculator
	cache   generic.Cache
	observe generic.Observer
	logger  *log.Logger

	employeesTTL time.Duration
	leavesTTL    time.Duration
	batchSize    int
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithCache replaces the default in-memory cache.
func WithCache(c generic.Cache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithObserver reports the duration of every repository call.
func WithObserver(o generic.Observer) ServiceOption {
	return func(s *Service) { s.observe = o }
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithCacheTTL sets how long employees and leave records stay cached.
func WithCacheTTL(employees, leaves time.Duration) ServiceOption {
	return func(s *Service) {
		s.employeesTTL = employees
		s.leavesTTL = leaves
	}
}

// WithBatchSize sets the chunk size of team-wide leave writes.
func WithBatchSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewService wires a repository to a calculator.
func NewService(repo Repository, calc *Calculator, opts ...ServiceOption) *Service {
	s := &Service{
		repo:         repo,
		calc:         calc,
		cache:        generic.NewMemoryCache(),
		logger:       log.Default(),
		employeesTTL: DefaultEmployeesTTL,
		leavesTTL:    DefaultLeavesTTL,
		batchSize:    DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.calc == nil {
		s.calc = NewCalculator(nil, decimal.Zero, s.logger)
	}
	return s
}

// Calculator returns the calculator used by the service.
func (s *Service) Calculator() *Calculator { return s.calc }

// ClearCache drops every cached read, for use after the store was changed
// behind the service's back (demo resets, imports).
func (s *Service) ClearCache() { s.cache.Clear() }

// call runs a repository operation with instrumentation and error wrapping.
func (s *Service) call(ctx context.Context, op string, fn func(context.Context) error) error {
	return generic.WrapRepository(op, generic.Measure(ctx, s.observe, op, fn))
}

// =============================================================================
// READS
// =============================================================================

// MonthData is the joined input of one month's calculation.
type MonthData struct {
	Month     generic.Month
	Employees []Employee
	Leaves    []LeaveRecord

	// LeavesErr is set when the leave read failed; Leaves is then empty.
	LeavesErr error
}

// LoadMonth fetches the roster and the month's leave records concurrently.
// Only a roster failure is returned as an error.
func (s *Service) LoadMonth(ctx context.Context, m generic.Month, force bool) (*MonthData, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	data := &MonthData{Month: m}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		employees, err := s.ListEmployees(gctx, force)
		data.Employees = employees
		return err
	})
	g.Go(func() error {
		data.Leaves, data.LeavesErr = s.ListLeaves(gctx, m, force)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if data.LeavesErr != nil {
		data.Leaves = nil
	}
	return data, nil
}

// Calculate returns the roster report of month m.
func (s *Service) Calculate(ctx context.Context, m generic.Month, force bool) (*RosterReport, error) {
	data, err := s.LoadMonth(ctx, m, force)
	if err != nil {
		return nil, err
	}

	report := s.calc.CalculateForRoster(data.Employees, data.Leaves, m)
	if data.LeavesErr != nil {
		s.logger.Printf("[Service] WARN %s calculated without leave records: %v", m, data.LeavesErr)
		report.MarkDegraded(fmt.Sprintf("leave records unavailable: %v", data.LeavesErr))
	}
	return &report, nil
}

// CalculateEmployee returns one employee's result for month m.
func (s *Service) CalculateEmployee(ctx context.Context, m generic.Month, employeeID string, force bool) (MonthlyResult, error) {
	report, err := s.Calculate(ctx, m, force)
	if err != nil {
		return MonthlyResult{}, err
	}
	if res, ok := report.Result(employeeID); ok {
		return res, nil
	}
	for _, sk := range report.Skipped {
		if sk.EmployeeID == employeeID {
			return MonthlyResult{}, sk.Err
		}
	}
	return MonthlyResult{}, fmt.Errorf("employee %s: %w", employeeID, generic.ErrEntityNotFound)
}

// ListEmployees returns the roster, ordered by team then name.
// The returned slice is shared with the cache and must not be modified.
func (s *Service) ListEmployees(ctx context.Context, force bool) ([]Employee, error) {
	if !force {
		if v, ok := s.cache.Get(employeesCacheKey); ok {
			return v.([]Employee), nil
		}
	}

	var employees []Employee
	err := s.call(ctx, "ListEmployees", func(ctx context.Context) error {
		var err error
		employees, err = s.repo.ListEmployees(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(employeesCacheKey, employees, s.employeesTTL)
	return employees, nil
}

// ListLeaves returns the leave records of month m, ordered by date.
// The returned slice is shared with the cache and must not be modified.
func (s *Service) ListLeaves(ctx context.Context, m generic.Month, force bool) ([]LeaveRecord, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	key := leavesCacheKey(m)
	if !force {
		if v, ok := s.cache.Get(key); ok {
			return v.([]LeaveRecord), nil
		}
	}

	var leaves []LeaveRecord
	err := s.call(ctx, "ListLeaveRecords", func(ctx context.Context) error {
		var err error
		leaves, err = s.repo.ListLeaveRecords(ctx, m.Period())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, leaves, s.leavesTTL)
	return leaves, nil
}

// GetEmployee returns one employee or an ErrEntityNotFound error.
func (s *Service) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	var emp *Employee
	err := s.call(ctx, "GetEmployee", func(ctx context.Context) error {
		var err error
		emp, err = s.repo.GetEmployee(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, fmt.Errorf("employee %s: %w", id, generic.ErrEntityNotFound)
	}
	return emp, nil
}

// =============================================================================
// ROSTER MUTATIONS
// =============================================================================

// SaveEmployee creates (empty ID) or replaces an employee.
func (s *Service) SaveEmployee(ctx context.Context, emp Employee) (Employee, error) {
	if emp.Name == "" {
		return Employee{}, &InvalidEmployeeError{EmployeeID: emp.ID, Reason: "name is required"}
	}
	if emp.Team == "" {
		return Employee{}, &InvalidEmployeeError{EmployeeID: emp.ID, Reason: "team is required"}
	}
	if err := emp.Validate(); err != nil {
		return Employee{}, err
	}
	if emp.LeaveDate != nil && emp.LeaveDate.IsZero() {
		emp.LeaveDate = nil
	}
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}

	err := s.call(ctx, "SaveEmployee", func(ctx context.Context) error {
		return s.repo.SaveEmployee(ctx, emp)
	})
	if err != nil {
		return Employee{}, err
	}
	s.cache.InvalidatePrefix(employeesCacheKey)
	return emp, nil
}

// DeleteEmployee removes an employee and, through the store, their leaves.
func (s *Service) DeleteEmployee(ctx context.Context, id string) error {
	err := s.call(ctx, "DeleteEmployee", func(ctx context.Context) error {
		return s.repo.DeleteEmployee(ctx, id)
	})
	if err != nil {
		return err
	}
	s.cache.InvalidatePrefix(employeesCacheKey)
	s.cache.InvalidatePrefix("leaves:")
	return nil
}

// =============================================================================
// LEAVE MUTATIONS
// =============================================================================

// SetLeave registers leave type lt for an employee on date, replacing the
// type of an existing record for that day.
func (s *Service) SetLeave(ctx context.Context, employeeID string, date generic.Date, lt LeaveType) (LeaveRecord, error) {
	lt = ParseLeaveType(string(lt))
	if lt == "" {
		return LeaveRecord{}, generic.ErrInvalidLeaveType
	}
	if date.IsZero() {
		return LeaveRecord{}, fmt.Errorf("%w: leave date is required", generic.ErrInvalidDate)
	}
	if _, err := s.GetEmployee(ctx, employeeID); err != nil {
		return LeaveRecord{}, err
	}
	if err := s.ensureUnlocked(ctx, date.MonthOf()); err != nil {
		return LeaveRecord{}, err
	}

	var existing *LeaveRecord
	err := s.call(ctx, "FindLeaveRecord", func(ctx context.Context) error {
		var err error
		existing, err = s.repo.FindLeaveRecord(ctx, employeeID, date)
		return err
	})
	if err != nil {
		return LeaveRecord{}, err
	}

	rec := LeaveRecord{ID: uuid.NewString(), EmployeeID: employeeID, Date: date, Type: lt}
	if existing != nil {
		rec.ID = existing.ID
	}
	if err := s.saveLeaves(ctx, date.MonthOf(), []LeaveRecord{rec}); err != nil {
		return LeaveRecord{}, err
	}
	return rec, nil
}

// RemoveLeave deletes the leave of an employee on date, if any.
func (s *Service) RemoveLeave(ctx context.Context, employeeID string, date generic.Date) error {
	if date.IsZero() {
		return fmt.Errorf("%w: leave date is required", generic.ErrInvalidDate)
	}
	if err := s.ensureUnlocked(ctx, date.MonthOf()); err != nil {
		return err
	}

	var existing *LeaveRecord
	err := s.call(ctx, "FindLeaveRecord", func(ctx context.Context) error {
		var err error
		existing, err = s.repo.FindLeaveRecord(ctx, employeeID, date)
		return err
	})
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("leave of %s on %s: %w", employeeID, date, generic.ErrEntityNotFound)
	}
	return s.deleteLeave(ctx, *existing)
}

// DeleteLeave deletes a leave record by id.
func (s *Service) DeleteLeave(ctx context.Context, id string) error {
	var existing *LeaveRecord
	err := s.call(ctx, "GetLeaveRecord", func(ctx context.Context) error {
		var err error
		existing, err = s.repo.GetLeaveRecord(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("leave %s: %w", id, generic.ErrEntityNotFound)
	}
	if err := s.ensureUnlocked(ctx, existing.Date.MonthOf()); err != nil {
		return err
	}
	return s.deleteLeave(ctx, *existing)
}

// AssignTeamLeave registers lt on date for every member of team employed
// that day. Existing records of that day are updated, not duplicated.
// Records are written in chunks of the configured batch size; a failing
// chunk stops the operation and earlier chunks stay written.
func (s *Service) AssignTeamLeave(ctx context.Context, team Team, date generic.Date, lt LeaveType) ([]LeaveRecord, error) {
	lt = ParseLeaveType(string(lt))
	if lt == "" {
		return nil, generic.ErrInvalidLeaveType
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: leave date is required", generic.ErrInvalidDate)
	}
	m := date.MonthOf()
	if err := s.ensureUnlocked(ctx, m); err != nil {
		return nil, err
	}

	employees, err := s.ListEmployees(ctx, true)
	if err != nil {
		return nil, err
	}
	existing, err := s.ListLeaves(ctx, m, true)
	if err != nil {
		return nil, err
	}
	idByEmployee := make(map[string]string)
	for _, lr := range existing {
		if lr.Date.Equal(date) {
			if _, seen := idByEmployee[lr.EmployeeID]; !seen {
				idByEmployee[lr.EmployeeID] = lr.ID
			}
		}
	}

	var records []LeaveRecord
	for _, emp := range employees {
		if emp.Team != team || !emp.EmployedOn(date) {
			continue
		}
		id, ok := idByEmployee[emp.ID]
		if !ok {
			id = uuid.NewString()
		}
		records = append(records, LeaveRecord{ID: id, EmployeeID: emp.ID, Date: date, Type: lt})
	}

	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.saveLeaves(ctx, m, records[start:end]); err != nil {
			return records[:start], fmt.Errorf("team leave batch %d-%d: %w", start, end, err)
		}
	}
	return records, nil
}

func (s *Service) saveLeaves(ctx context.Context, m generic.Month, records []LeaveRecord) error {
	err := s.call(ctx, "SaveLeaveRecords", func(ctx context.Context) error {
		return s.repo.SaveLeaveRecords(ctx, records)
	})
	if err != nil {
		return err
	}
	s.cache.InvalidatePrefix(leavesCacheKey(m))
	return nil
}

func (s *Service) deleteLeave(ctx context.Context, lr LeaveRecord) error {
	err := s.call(ctx, "DeleteLeaveRecord", func(ctx context.Context) error {
		return s.repo.DeleteLeaveRecord(ctx, lr.ID)
	})
	if err != nil {
		return err
	}
	s.cache.InvalidatePrefix(leavesCacheKey(lr.Date.MonthOf()))
	return nil
}

// =============================================================================
// MONTH LOCKS
// =============================================================================

// MonthLocked reads the lock flag of m from the repository.
func (s *Service) MonthLocked(ctx context.Context, m generic.Month) (bool, error) {
	if err := m.Validate(); err != nil {
		return false, err
	}
	var locked bool
	err := s.call(ctx, "GetMonthLock", func(ctx context.Context) error {
		var err error
		locked, err = s.repo.GetMonthLock(ctx, m)
		return err
	})
	return locked, err
}

// SetMonthLock persists the lock flag of m. Who may call it is decided by
// the caller; the service does not check credentials.
func (s *Service) SetMonthLock(ctx context.Context, m generic.Month, locked bool) error {
	if err := m.Validate(); err != nil {
		return err
	}
	err := s.call(ctx, "SetMonthLock", func(ctx context.Context) error {
		return s.repo.SetMonthLock(ctx, m, locked)
	})
	if err != nil {
		return err
	}
	if locked {
		s.logger.Printf("[Service] month %s locked", m)
	} else {
		s.logger.Printf("[Service] month %s unlocked", m)
	}
	return nil
}

func (s *Service) ensureUnlocked(ctx context.Context, m generic.Month) error {
	locked, err := s.MonthLocked(ctx, m)
	if err != nil {
		return err
	}
	if locked {
		return &generic.MonthLockedError{Month: m}
	}
	return nil
}
