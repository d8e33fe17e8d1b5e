package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultMaxAttempts is the number of climate read attempts per cycle.
	DefaultMaxAttempts = 3
	// DefaultBackoff is the delay between climate read attempts.
	DefaultBackoff = time.Second
)

// Reader samples a Device: analog channels directly, the climate sensor with
// a bounded retry.
type Reader struct {
	device  Device
	backoff time.Duration
	logger  *slog.Logger
}

// NewReader creates a Reader. A negative backoff selects DefaultBackoff.
func NewReader(device Device, backoff time.Duration, logger *slog.Logger) *Reader {
	if backoff < 0 {
		backoff = DefaultBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{device: device, backoff: backoff, logger: logger}
}

// ReadDirect takes a single sample of ch without validation.
func (r *Reader) ReadDirect(ctx context.Context, ch Channel) (int, error) {
	return r.device.Analog(ctx, ch)
}

// ReadWithRetry attempts a climate sample up to maxAttempts times, waiting the
// backoff between attempts. A sample counts only if both values are valid.
// The caller keeps its previous values when ErrClimateUnavailable is returned.
func (r *Reader) ReadWithRetry(ctx context.Context, maxAttempts int) (Climate, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c, err := r.device.Climate(ctx)
		if err == nil && c.Valid() {
			return c, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: temperature=%v humidity=%v", ErrInvalidReading, c.Temperature, c.Humidity)
		}
		lastErr = err

		r.logger.Warn("Climate read attempt failed", "attempt", attempt, "max_attempts", maxAttempts, "error", err)

		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, r.backoff); err != nil {
			return Climate{}, fmt.Errorf("%w: %w", ErrClimateUnavailable, err)
		}
	}

	return Climate{}, fmt.Errorf("%w after %d attempts: %w", ErrClimateUnavailable, maxAttempts, lastErr)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
