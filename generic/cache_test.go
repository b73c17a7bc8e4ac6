package generic_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/kimmokhwa/meals-management-app/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CACHE
// =============================================================================

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	c := generic.NewMemoryCache()
	c.Now = func() time.Time { return now }

	c.Set("employees", []string{"emp1"}, 10*time.Minute)
	v, ok := c.Get("employees")
	require.True(t, ok)
	assert.Equal(t, []string{"emp1"}, v)

	now = now.Add(10 * time.Minute)
	_, ok = c.Get("employees")
	assert.False(t, ok, "entry expires at exactly its TTL")
	assert.Equal(t, 0, c.Len(), "expired entry dropped on read")
}

func TestMemoryCache_NonPositiveTTLStoresNothing(t *testing.T) {
	c := generic.NewMemoryCache()
	c.Set("leaves:2024-01", 1, 0)
	_, ok := c.Get("leaves:2024-01")
	assert.False(t, ok)
}

func TestMemoryCache_InvalidatePrefix(t *testing.T) {
	c := generic.NewMemoryCache()
	c.Set("employees", 1, time.Hour)
	c.Set("leaves:2024-01", 2, time.Hour)
	c.Set("leaves:2024-02", 3, time.Hour)

	c.InvalidatePrefix("leaves:2024-01")
	_, ok := c.Get("leaves:2024-01")
	assert.False(t, ok)
	_, ok = c.Get("leaves:2024-02")
	assert.True(t, ok)

	c.InvalidatePrefix("leaves:")
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestNopCache(t *testing.T) {
	var c generic.Cache = generic.NopCache{}
	c.Set("employees", 1, time.Hour)
	_, ok := c.Get("employees")
	assert.False(t, ok)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestWrapRepository(t *testing.T) {
	assert.NoError(t, generic.WrapRepository("op", nil))

	cause := errors.New("connection reset")
	err := generic.WrapRepository("ListEmployees", cause)
	assert.ErrorIs(t, err, generic.ErrRepository)
	assert.ErrorIs(t, err, cause)
	assert.True(t, generic.IsRetryable(err))
	assert.Contains(t, err.Error(), "ListEmployees")

	// Already classified errors keep their class.
	notFound := fmt.Errorf("employee x: %w", generic.ErrEntityNotFound)
	assert.Same(t, notFound, generic.WrapRepository("GetEmployee", notFound))
	assert.False(t, generic.IsRetryable(notFound))

	locked := &generic.MonthLockedError{Month: generic.Month{Year: 2024, Month: time.January}}
	assert.Equal(t, error(locked), generic.WrapRepository("SetLeave", locked))

	assert.Same(t, err, generic.WrapRepository("again", err), "no double wrap")
}

func TestErrorClassification(t *testing.T) {
	locked := &generic.MonthLockedError{Month: generic.Month{Year: 2024, Month: time.January}}
	assert.ErrorIs(t, locked, generic.ErrMonthLocked)
	assert.Equal(t, "month 2024-01 is locked", locked.Error())
	assert.False(t, generic.IsClientError(locked))

	assert.True(t, generic.IsClientError(fmt.Errorf("x: %w", generic.ErrInvalidDate)))
	assert.True(t, generic.IsClientError(generic.ErrInvalidLeaveType))
	assert.True(t, generic.IsNotFound(fmt.Errorf("x: %w", generic.ErrEntityNotFound)))
	assert.False(t, generic.IsNotFound(generic.ErrRepository))
}

// =============================================================================
// INSTRUMENTATION
// =============================================================================

func TestMeasure(t *testing.T) {
	var (
		gotOp  string
		gotErr error
	)
	obs := func(op string, _ time.Duration, err error) { gotOp, gotErr = op, err }

	boom := errors.New("boom")
	err := generic.Measure(context.Background(), obs, "SaveLeaveRecords", func(context.Context) error { return boom })
	assert.Same(t, boom, err)
	assert.Equal(t, "SaveLeaveRecords", gotOp)
	assert.Same(t, boom, gotErr)

	assert.NoError(t, generic.Measure(context.Background(), nil, "x", func(context.Context) error { return nil }))
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := generic.LogObserver(log.New(&buf, "", 0))

	obs("ListEmployees", 12*time.Millisecond, nil)
	obs("GetMonthLock", time.Millisecond, errors.New("timeout"))

	assert.Contains(t, buf.String(), "[Repository] ListEmployees took 12ms")
	assert.Contains(t, buf.String(), "[Repository] GetMonthLock failed after 1ms: timeout")
}
