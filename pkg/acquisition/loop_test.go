package acquisition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gardenmeter/pkg/calibration"
	"github.com/itohio/gardenmeter/pkg/logstore"
	"github.com/itohio/gardenmeter/pkg/measurement"
	"github.com/itohio/gardenmeter/pkg/sensor"
)

type result struct {
	raw int
	err error
}

type climateResult struct {
	c   sensor.Climate
	err error
}

// fakeSampler replays per-channel and climate results; the last one repeats.
type fakeSampler struct {
	mu      sync.Mutex
	analog  map[sensor.Channel][]result
	climate []climateResult
	visits  map[sensor.Channel]int
	cvisits int
}

func (s *fakeSampler) ReadDirect(_ context.Context, ch sensor.Channel) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visits == nil {
		s.visits = map[sensor.Channel]int{}
	}
	rs := s.analog[ch]
	i := min(s.visits[ch], len(rs)-1)
	s.visits[ch]++
	return rs[i].raw, rs[i].err
}

func (s *fakeSampler) ReadWithRetry(context.Context, int) (sensor.Climate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.cvisits, len(s.climate)-1)
	s.cvisits++
	return s.climate[i].c, s.climate[i].err
}

type fixedClock string

func (c fixedClock) Now() string { return string(c) }

type memRecorder struct {
	mu   sync.Mutex
	rows []measurement.Measurement
	err  error
}

func (r *memRecorder) Append(m measurement.Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, m)
	return nil
}

func (r *memRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		Interval:      10 * time.Millisecond,
		SoilChannel:   sensor.SoilChannel,
		LightChannel:  sensor.LightChannel,
		RetryAttempts: 3,
	}
}

func TestCycle(t *testing.T) {
	s := &fakeSampler{
		analog: map[sensor.Channel][]result{
			sensor.SoilChannel:  {{raw: 500}},
			sensor.LightChannel: {{raw: 4095}},
		},
		climate: []climateResult{{c: sensor.Climate{Temperature: 21.5, Humidity: 40}}},
	}
	state := measurement.NewState()
	rec := &memRecorder{}
	l := New(testConfig(), s, calibration.Default(), fixedClock("2025-05-01 10:00:00"), state, discardLogger(), rec)

	m := l.Cycle(t.Context())

	want := measurement.Measurement{
		Timestamp:   "2025-05-01 10:00:00",
		SoilRaw:     500,
		SoilStatus:  calibration.Moist,
		LightRaw:    4095,
		Irradiance:  0,
		Temperature: 21.5,
		Humidity:    40,
	}
	assert.Equal(t, want, m)
	assert.Equal(t, want, state.Get())
	assert.Equal(t, []measurement.Measurement{want}, rec.rows)
	assert.Equal(t, uint64(1), l.Cycles())
	assert.Equal(t, Idle, l.Phase())
}

func TestCycle_SoilScenarios(t *testing.T) {
	tests := []struct {
		raw  int
		want calibration.SoilStatus
	}{
		{150, calibration.Dry},
		{500, calibration.Moist},
		{900, calibration.Saturated},
	}
	for _, tt := range tests {
		s := &fakeSampler{
			analog: map[sensor.Channel][]result{
				sensor.SoilChannel:  {{raw: tt.raw}},
				sensor.LightChannel: {{raw: 0}},
			},
			climate: []climateResult{{c: sensor.Climate{Temperature: 20, Humidity: 50}}},
		}
		l := New(testConfig(), s, calibration.Default(), fixedClock("t"), measurement.NewState(), discardLogger())
		m := l.Cycle(t.Context())
		assert.Equal(t, tt.want, m.SoilStatus, "raw %d", tt.raw)
		assert.Equal(t, 1000.0, m.Irradiance)
	}
}

func TestCycle_ClimateFailureKeepsPrevious(t *testing.T) {
	s := &fakeSampler{
		analog: map[sensor.Channel][]result{
			sensor.SoilChannel:  {{raw: 500}, {raw: 800}},
			sensor.LightChannel: {{raw: 2047}},
		},
		climate: []climateResult{
			{c: sensor.Climate{Temperature: 19.0, Humidity: 55.0}},
			{err: sensor.ErrClimateUnavailable},
		},
	}
	state := measurement.NewState()
	l := New(testConfig(), s, calibration.Default(), fixedClock("t"), state, discardLogger())

	first := l.Cycle(t.Context())
	second := l.Cycle(t.Context())

	assert.Equal(t, first.Temperature, second.Temperature)
	assert.Equal(t, first.Humidity, second.Humidity)
	assert.Equal(t, 800, second.SoilRaw, "analog values still update")
	assert.Equal(t, calibration.Saturated, second.SoilStatus)
	assert.Equal(t, second, state.Get())
}

func TestCycle_ClimateNeverAvailable(t *testing.T) {
	s := &fakeSampler{
		analog: map[sensor.Channel][]result{
			sensor.SoilChannel:  {{raw: 100}},
			sensor.LightChannel: {{raw: 100}},
		},
		climate: []climateResult{{err: sensor.ErrClimateUnavailable}},
	}
	l := New(testConfig(), s, calibration.Default(), fixedClock("t"), measurement.NewState(), discardLogger())

	m := l.Cycle(t.Context())
	assert.Zero(t, m.Temperature)
	assert.Zero(t, m.Humidity)
}

func TestCycle_AnalogFailureKeepsPrevious(t *testing.T) {
	boom := errors.New("serial timeout")
	s := &fakeSampler{
		analog: map[sensor.Channel][]result{
			sensor.SoilChannel:  {{raw: 650}, {err: boom}},
			sensor.LightChannel: {{raw: 1000}, {err: boom}},
		},
		climate: []climateResult{{c: sensor.Climate{Temperature: 20, Humidity: 50}}},
	}
	l := New(testConfig(), s, calibration.Default(), fixedClock("t"), measurement.NewState(), discardLogger())

	first := l.Cycle(t.Context())
	second := l.Cycle(t.Context())
	assert.Equal(t, first.SoilRaw, second.SoilRaw)
	assert.Equal(t, first.LightRaw, second.LightRaw)
	assert.Equal(t, first.Irradiance, second.Irradiance)
}

func TestCycle_RecorderFailureNotFatal(t *testing.T) {
	s := &fakeSampler{
		analog: map[sensor.Channel][]result{
			sensor.SoilChannel:  {{raw: 500}},
			sensor.LightChannel: {{raw: 500}},
		},
		climate: []climateResult{{c: sensor.Climate{Temperature: 20, Humidity: 50}}},
	}
	state := measurement.NewState()
	broken := &memRecorder{err: errors.New("disk full")}
	ok := &memRecorder{}
	l := New(testConfig(), s, calibration.Default(), fixedClock("t"), state, discardLogger(), broken, ok)

	m := l.Cycle(t.Context())
	assert.Equal(t, m, state.Get())
	assert.Len(t, ok.rows, 1)
}

func TestCycle_ToLogStore(t *testing.T) {
	s := &fakeSampler{
		analog: map[sensor.Channel][]result{
			sensor.SoilChannel:  {{raw: 150}, {raw: 500}, {raw: 900}},
			sensor.LightChannel: {{raw: 4095}, {raw: 2047}, {raw: 0}},
		},
		climate: []climateResult{{c: sensor.Climate{Temperature: 22.25, Humidity: 48.5}}},
	}
	store := logstore.New(filepath.Join(t.TempDir(), "data"), "", discardLogger())
	require.NoError(t, store.Initialize())

	l := New(testConfig(), s, calibration.Default(), fixedClock("2025-05-01 10:00:00"), measurement.NewState(), discardLogger(), store)
	var produced []measurement.Measurement
	for range 3 {
		produced = append(produced, l.Cycle(t.Context()))
	}

	rc, _, err := store.Export()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, logstore.Header, lines[0])
	for i, m := range produced {
		assert.Equal(t, logstore.FormatRow(m), lines[i+1])
	}
}

func TestRun(t *testing.T) {
	s := &fakeSampler{
		analog: map[sensor.Channel][]result{
			sensor.SoilChannel:  {{raw: 500}},
			sensor.LightChannel: {{raw: 500}},
		},
		climate: []climateResult{{c: sensor.Climate{Temperature: 20, Humidity: 50}}},
	}
	rec := &memRecorder{}
	l := New(testConfig(), s, calibration.Default(), fixedClock("t"), measurement.NewState(), discardLogger(), rec)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// The first cycle runs without waiting for the ticker.
	require.Eventually(t, func() bool { return rec.len() >= 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return rec.len() >= 3 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, Idle, l.Phase())
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	s := &fakeSampler{}
	rec := &memRecorder{}
	l := New(testConfig(), s, calibration.Default(), fixedClock("t"), measurement.NewState(), discardLogger(), rec)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), l.Cycles())
	assert.Equal(t, 0, rec.len())
	assert.Empty(t, s.visits)
}

func TestCycle_ClimateCanceledNotReported(t *testing.T) {
	s := &fakeSampler{
		analog: map[sensor.Channel][]result{
			sensor.SoilChannel:  {{raw: 500}},
			sensor.LightChannel: {{raw: 500}},
		},
		climate: []climateResult{
			{c: sensor.Climate{Temperature: 22, Humidity: 48}},
			{err: fmt.Errorf("%w: %w", sensor.ErrClimateUnavailable, context.Canceled)},
		},
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	l := New(testConfig(), s, calibration.Default(), fixedClock("t"), measurement.NewState(), logger)

	l.Cycle(t.Context())
	logs.Reset()
	m := l.Cycle(t.Context())

	assert.Equal(t, 22.0, m.Temperature)
	assert.Equal(t, 48.0, m.Humidity)
	assert.NotContains(t, logs.String(), "level=ERROR")
	assert.NotContains(t, logs.String(), "Climate sensor unavailable")
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "sampling", Sampling.String())
	assert.Equal(t, "Phase(7)", Phase(7).String())
}

func TestNew_Defaults(t *testing.T) {
	l := New(Config{}, &fakeSampler{}, calibration.Default(), fixedClock("t"), measurement.NewState(), nil)
	assert.Equal(t, DefaultInterval, l.cfg.Interval)
	assert.Equal(t, sensor.DefaultMaxAttempts, l.cfg.RetryAttempts)
}
