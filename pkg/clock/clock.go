// Package clock provides the timestamps stamped onto measurements.
//
// The wall clock is trusted only after a successful synchronization at
// startup. Until then, or when a read fails, Now returns one of two sentinel
// strings instead of a time.
package clock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	_ "time/tzdata" // named locations on hosts without zoneinfo
)

const (
	// NotSynchronized is returned by Now before a successful Sync.
	NotSynchronized = "Zeit nicht synchronisiert"
	// Unavailable is returned by Now when the wall clock cannot be read.
	Unavailable = "Zeit nicht verfügbar"

	// Layout is the timestamp format of the log and the console.
	Layout = "2006-01-02 15:04:05"

	DefaultAttempts = 10
	DefaultDelay    = time.Second
)

var (
	// ErrSyncFailed is returned when no synchronization attempt succeeded.
	ErrSyncFailed = errors.New("time synchronization failed")
	// ErrImplausible marks a clock reading before plausibleAfter.
	ErrImplausible = errors.New("implausible clock reading")
)

// Readings before this are from an unset real time clock.
var plausibleAfter = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

// TimeSource reports how far the local clock is off from reference time.
type TimeSource interface {
	Offset(ctx context.Context) (time.Duration, error)
}

// Clock formats the synchronized wall clock.
type Clock struct {
	source TimeSource
	loc    *time.Location
	logger *slog.Logger
	read   func() (time.Time, error)

	synced atomic.Bool
	offset atomic.Int64
}

// New creates an unsynchronized clock. A nil location selects time.Local.
func New(source TimeSource, loc *time.Location, logger *slog.Logger) *Clock {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Clock{
		source: source,
		loc:    loc,
		logger: logger,
		read:   func() (time.Time, error) { return time.Now(), nil },
	}
}

// Sync polls the time source up to attempts times, waiting delay between
// polls. It is meant to run once at startup; on failure the clock stays
// unsynchronized for the lifetime of the process.
func (c *Clock) Sync(ctx context.Context, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		offset, err := c.source.Offset(ctx)
		if err == nil {
			c.offset.Store(int64(offset))
			c.synced.Store(true)
			c.logger.Info("Time synchronized", "attempt", attempt, "offset", offset)
			return nil
		}
		lastErr = err
		c.logger.Debug("Time synchronization attempt failed", "attempt", attempt, "error", err)

		if attempt == attempts {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", ErrSyncFailed, ctx.Err())
		case <-t.C:
		}
	}

	c.logger.Warn("Time synchronization failed", "attempts", attempts, "error", lastErr)
	return fmt.Errorf("%w after %d attempts: %w", ErrSyncFailed, attempts, lastErr)
}

// Synchronized reports whether Sync succeeded.
func (c *Clock) Synchronized() bool {
	return c.synced.Load()
}

// Time returns the corrected wall clock in the clock's location.
func (c *Clock) Time() (time.Time, error) {
	t, err := c.read()
	if err != nil {
		return time.Time{}, err
	}
	t = t.Add(time.Duration(c.offset.Load()))
	if t.Before(plausibleAfter) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrImplausible, t.Format(Layout))
	}
	return t.In(c.loc), nil
}

// Now returns the current time formatted with Layout, NotSynchronized before
// a successful Sync, or Unavailable when the clock cannot be read.
func (c *Clock) Now() string {
	if !c.synced.Load() {
		return NotSynchronized
	}
	t, err := c.Time()
	if err != nil {
		return Unavailable
	}
	return t.Format(Layout)
}
