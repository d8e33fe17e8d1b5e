package sensor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDevice returns climate samples from a script, one per call.
type scriptedDevice struct {
	analog   map[Channel]int
	climate  []Climate
	errs     []error
	calls    int
	analogFn func(Channel) (int, error)
}

func (d *scriptedDevice) Connect() error    { return nil }
func (d *scriptedDevice) Close() error      { return nil }
func (d *scriptedDevice) IsConnected() bool { return true }

func (d *scriptedDevice) Analog(_ context.Context, ch Channel) (int, error) {
	if d.analogFn != nil {
		return d.analogFn(ch)
	}
	return d.analog[ch], nil
}

func (d *scriptedDevice) Climate(context.Context) (Climate, error) {
	i := d.calls
	d.calls++
	var err error
	if i < len(d.errs) {
		err = d.errs[i]
	}
	if i >= len(d.climate) {
		return Climate{}, err
	}
	return d.climate[i], err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var nan = Climate{Temperature: math.NaN(), Humidity: math.NaN()}

func TestReadDirect(t *testing.T) {
	dev := &scriptedDevice{analog: map[Channel]int{SoilChannel: 512, LightChannel: 3000}}
	r := NewReader(dev, 0, discardLogger())

	soil, err := r.ReadDirect(t.Context(), SoilChannel)
	require.NoError(t, err)
	assert.Equal(t, 512, soil)

	light, err := r.ReadDirect(t.Context(), LightChannel)
	require.NoError(t, err)
	assert.Equal(t, 3000, light)
}

func TestReadDirect_TransportError(t *testing.T) {
	boom := errors.New("bus error")
	dev := &scriptedDevice{analogFn: func(Channel) (int, error) { return 0, boom }}
	r := NewReader(dev, 0, discardLogger())

	_, err := r.ReadDirect(t.Context(), SoilChannel)
	assert.ErrorIs(t, err, boom)
}

func TestReadWithRetry(t *testing.T) {
	good := Climate{Temperature: 21.5, Humidity: 40}

	tests := []struct {
		name      string
		climate   []Climate
		errs      []error
		max       int
		wantErr   bool
		wantCalls int
	}{
		{"first attempt valid", []Climate{good}, nil, 3, false, 1},
		{"valid after one failure", []Climate{nan, good}, nil, 3, false, 2},
		{"valid on last attempt", []Climate{nan, nan, good}, nil, 3, false, 3},
		{"temperature only missing", []Climate{{Temperature: math.NaN(), Humidity: 40}, good}, nil, 3, false, 2},
		{"infinite humidity", []Climate{{Temperature: 20, Humidity: math.Inf(1)}, good}, nil, 3, false, 2},
		{"transport error then valid", []Climate{{}, good}, []error{ErrTimeout}, 3, false, 2},
		{"all invalid", []Climate{nan, nan, nan}, nil, 3, true, 3},
		{"valid after budget", []Climate{nan, nan, nan, good}, nil, 3, true, 3},
		{"zero attempts reads once", []Climate{nan}, nil, 0, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &scriptedDevice{climate: tt.climate, errs: tt.errs}
			r := NewReader(dev, 0, discardLogger())

			c, err := r.ReadWithRetry(t.Context(), tt.max)
			assert.Equal(t, tt.wantCalls, dev.calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrClimateUnavailable)
				assert.Equal(t, Climate{}, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, good, c)
		})
	}
}

func TestReadWithRetry_WrapsLastCause(t *testing.T) {
	dev := &scriptedDevice{climate: []Climate{nan, {}}, errs: []error{nil, ErrTimeout}}
	r := NewReader(dev, 0, discardLogger())

	_, err := r.ReadWithRetry(t.Context(), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClimateUnavailable)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrInvalidReading)
}

func TestReadWithRetry_Backoff(t *testing.T) {
	dev := &scriptedDevice{climate: []Climate{nan, nan, nan}}
	r := NewReader(dev, 20*time.Millisecond, discardLogger())

	start := time.Now()
	_, err := r.ReadWithRetry(t.Context(), 3)
	elapsed := time.Since(start)

	require.Error(t, err)
	// Two waits between three attempts, none after the last.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestReadWithRetry_ContextCancel(t *testing.T) {
	dev := &scriptedDevice{climate: []Climate{nan, nan, nan}}
	r := NewReader(dev, time.Hour, discardLogger())

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := r.ReadWithRetry(ctx, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClimateUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, dev.calls)
}

func TestNewReader_Defaults(t *testing.T) {
	r := NewReader(&scriptedDevice{}, -1, nil)
	assert.Equal(t, DefaultBackoff, r.backoff)
	assert.NotNil(t, r.logger)
}
