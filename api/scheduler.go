/*
scheduler.go - Automated month close

PURPOSE:
  Periodically checks whether the previous month is due to be finalized
  and locks it, so late leave edits cannot change an allowance that has
  already been paid out.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The previous month is due AfterDays days after its last day
  - Months that are already locked are skipped
  - The month is recalculated (bypassing the cache) and its totals logged
    right before locking, as a record of what was finalized

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - AfterDays:     scheduler.auto_lock_after_days; 0 disables the scheduler

USAGE:
  scheduler := NewMonthCloseScheduler(svc, 5)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: SetMonthLock endpoint (manual lock/unlock)
  - allowance/service.go: MonthLocked, SetMonthLock
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/generic"
)

// MonthCloseScheduler locks finished months automatically.
type MonthCloseScheduler struct {
	Service       *allowance.Service
	AfterDays     int
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMonthCloseScheduler creates a scheduler. It is disabled when
// afterDays is zero or negative.
func NewMonthCloseScheduler(svc *allowance.Service, afterDays int) *MonthCloseScheduler {
	return &MonthCloseScheduler{
		Service:       svc,
		AfterDays:     afterDays,
		CheckInterval: 1 * time.Hour,
		Enabled:       afterDays > 0,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (ms *MonthCloseScheduler) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if ms.ticker != nil {
		return
	}

	ms.ticker = time.NewTicker(ms.CheckInterval)
	ms.stop = make(chan struct{})
	ms.wg.Add(1)

	go ms.run(ms.ticker.C, ms.stop)

	log.Printf("[Scheduler] Started with check interval: %v, locking months %d days after they end",
		ms.CheckInterval, ms.AfterDays)
}

// Stop stops the scheduler, cancelling a running check, and waits for it
// to return.
func (ms *MonthCloseScheduler) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ticker != nil {
		ms.ticker.Stop()
		close(ms.stop)
		ms.wg.Wait()
		ms.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (ms *MonthCloseScheduler) run(ticks <-chan time.Time, stop <-chan struct{}) {
	defer ms.wg.Done()

	// Stop cancels a check that is still running.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run immediately on start
	ms.checkAndProcess(ctx)

	for {
		select {
		case <-ticks:
			ms.checkAndProcess(ctx)
		case <-stop:
			return
		}
	}
}

func (ms *MonthCloseScheduler) checkAndProcess(ctx context.Context) {
	if _, _, err := ms.RunNow(ctx); err != nil {
		log.Printf("[Scheduler] Error closing month: %v", err)
	}
}

// DueMonth returns the month that should be locked as of today, if any.
func (ms *MonthCloseScheduler) DueMonth(today generic.Date) (generic.Month, bool) {
	if ms.AfterDays <= 0 {
		return generic.Month{}, false
	}
	prev := today.MonthOf().Prev()
	due := prev.LastDay().AddDays(ms.AfterDays)
	return prev, !today.Before(due)
}

// RunNow performs one check. It returns the month considered and whether
// this call locked it.
func (ms *MonthCloseScheduler) RunNow(ctx context.Context) (generic.Month, bool, error) {
	m, due := ms.DueMonth(generic.DateOf(ms.Now()))
	if !due {
		return m, false, nil
	}

	locked, err := ms.Service.MonthLocked(ctx, m)
	if err != nil {
		return m, false, err
	}
	if locked {
		return m, false, nil
	}

	report, err := ms.Service.Calculate(ctx, m, true)
	if err != nil {
		return m, false, err
	}
	if report.Degraded {
		// Never finalize a month computed without its leave records.
		log.Printf("[Scheduler] WARN %s not locked: %s", m, report.DegradedReason)
		return m, false, nil
	}

	if err := ms.Service.SetMonthLock(ctx, m, true); err != nil {
		return m, false, err
	}

	log.Printf("[Scheduler] Closed %s: %d employees, %s workdays, %d won",
		m, report.Totals.EmployeeCount, report.Totals.WorkDays, report.Totals.TotalAllowance)
	return m, true, nil
}
