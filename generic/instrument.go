package generic

import (
	"context"
	"log"
	"time"
)

// Observer receives the duration of every instrumented call.
// err is the call's result and may be nil.
type Observer func(op string, elapsed time.Duration, err error)

// Measure runs fn and reports its duration to obs. A nil obs just runs fn.
func Measure(ctx context.Context, obs Observer, op string, fn func(context.Context) error) error {
	if obs == nil {
		return fn(ctx)
	}
	start := time.Now()
	err := fn(ctx)
	obs(op, time.Since(start), err)
	return err
}

// LogObserver writes one line per call to logger (log.Default() when nil).
func LogObserver(logger *log.Logger) Observer {
	if logger == nil {
		logger = log.Default()
	}
	return func(op string, elapsed time.Duration, err error) {
		if err != nil {
			logger.Printf("[Repository] %s failed after %dms: %v", op, elapsed.Milliseconds(), err)
			return
		}
		logger.Printf("[Repository] %s took %dms", op, elapsed.Milliseconds())
	}
}
