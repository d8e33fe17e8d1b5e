package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/gardenmeter/pkg/calibration"
	"github.com/itohio/gardenmeter/pkg/measurement"
	"github.com/itohio/gardenmeter/pkg/sensor"
)

// DefaultInterval is the time between two cycle starts.
const DefaultInterval = 2 * time.Second

// Phase is the state of the loop.
type Phase int32

const (
	Idle Phase = iota
	Sampling
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Sampling:
		return "sampling"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// Sampler reads the sensors. Implemented by *sensor.Reader.
type Sampler interface {
	ReadDirect(ctx context.Context, ch sensor.Channel) (int, error)
	ReadWithRetry(ctx context.Context, maxAttempts int) (sensor.Climate, error)
}

// Clock stamps measurements. Implemented by *clock.Clock.
type Clock interface {
	Now() string
}

// Recorder persists completed measurements.
type Recorder interface {
	Append(m measurement.Measurement) error
}

// Config contains loop parameters.
type Config struct {
	Interval      time.Duration
	SoilChannel   sensor.Channel
	LightChannel  sensor.Channel
	RetryAttempts int
}

// Loop runs the sampling cycle on a fixed interval.
type Loop struct {
	cfg       Config
	sampler   Sampler
	cal       calibration.Calibration
	clock     Clock
	state     *measurement.State
	recorders []Recorder
	logger    *slog.Logger

	phase  atomic.Int32
	cycles atomic.Uint64

	mu   sync.Mutex
	last measurement.Measurement // values kept when a read fails
}

// New creates a loop publishing into state and appending to every recorder.
func New(cfg Config, sampler Sampler, cal calibration.Calibration, clock Clock, state *measurement.State, logger *slog.Logger, recorders ...Recorder) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = sensor.DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:       cfg,
		sampler:   sampler,
		cal:       cal,
		clock:     clock,
		state:     state,
		recorders: recorders,
		logger:    logger,
		last:      state.Get(),
	}
}

// Phase returns the current state of the loop.
func (l *Loop) Phase() Phase {
	return Phase(l.phase.Load())
}

// Cycles returns the number of completed cycles.
func (l *Loop) Cycles() uint64 {
	return l.cycles.Load()
}

// Run executes a cycle immediately and then every interval until ctx is done.
// A cycle that overruns the interval delays the next one; missed ticks are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Acquisition started", "interval", l.cfg.Interval)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("Acquisition stopped", "cycles", l.Cycles())
			return err
		}

		l.Cycle(ctx)

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// Cycle performs one acquisition: sample, calibrate, stamp, publish, record.
// Failures are logged; the cycle always publishes a measurement.
func (l *Loop) Cycle(ctx context.Context) measurement.Measurement {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.phase.Store(int32(Sampling))
	defer l.phase.Store(int32(Idle))

	m := l.last

	if raw, err := l.sampler.ReadDirect(ctx, l.cfg.SoilChannel); err != nil {
		l.logger.Error("Soil read failed, keeping previous value", "channel", l.cfg.SoilChannel, "error", err)
	} else {
		m.SoilRaw = raw
	}
	m.SoilStatus = l.cal.ClassifySoil(m.SoilRaw)

	if raw, err := l.sampler.ReadDirect(ctx, l.cfg.LightChannel); err != nil {
		l.logger.Error("Light read failed, keeping previous value", "channel", l.cfg.LightChannel, "error", err)
	} else {
		m.LightRaw = raw
	}
	m.Irradiance = l.cal.ToIrradiance(m.LightRaw)

	if c, err := l.sampler.ReadWithRetry(ctx, l.cfg.RetryAttempts); errors.Is(err, context.Canceled) {
		l.logger.Debug("Climate read canceled, keeping previous values")
	} else if err != nil {
		l.logger.Error("Climate sensor unavailable, keeping previous values",
			"temperature", m.Temperature, "humidity", m.Humidity, "error", err)
	} else {
		m.Temperature = c.Temperature
		m.Humidity = c.Humidity
	}

	m.Timestamp = l.clock.Now()

	l.last = m
	l.state.Set(m)

	for _, r := range l.recorders {
		if err := r.Append(m); err != nil {
			l.logger.Error("Failed to record measurement", "error", err)
		}
	}

	l.cycles.Add(1)
	l.logger.Info("Measurement",
		"timestamp", m.Timestamp,
		"soil_raw", m.SoilRaw,
		"soil_status", m.SoilStatus,
		"light_raw", m.LightRaw,
		"irradiance", fmt.Sprintf("%.2f", m.Irradiance),
		"temperature", fmt.Sprintf("%.1f", m.Temperature),
		"humidity", fmt.Sprintf("%.1f", m.Humidity),
	)
	l.logger.Debug(m.String())

	return m
}
