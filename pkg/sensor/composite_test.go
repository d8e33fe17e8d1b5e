package sensor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDevice records Connect/Close calls.
type countingDevice struct {
	scriptedDevice
	connectErr error
	connects   int
	closes     int
	connected  bool
}

func (d *countingDevice) Connect() error {
	d.connects++
	if d.connectErr != nil {
		return d.connectErr
	}
	d.connected = true
	return nil
}

func (d *countingDevice) Close() error {
	d.closes++
	d.connected = false
	return nil
}

func (d *countingDevice) IsConnected() bool { return d.connected }

func TestComposite_Routes(t *testing.T) {
	analog := &countingDevice{scriptedDevice: scriptedDevice{analog: map[Channel]int{SoilChannel: 640}}}
	climate := &countingDevice{scriptedDevice: scriptedDevice{climate: []Climate{{Temperature: 19, Humidity: 60}}}}
	c := NewComposite(analog, climate)

	require.NoError(t, c.Connect())
	assert.True(t, c.IsConnected())

	raw, err := c.Analog(t.Context(), SoilChannel)
	require.NoError(t, err)
	assert.Equal(t, 640, raw)

	cl, err := c.Climate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Climate{Temperature: 19, Humidity: 60}, cl)
	assert.Equal(t, 0, analog.calls)
	assert.Equal(t, 1, climate.calls)

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
	assert.Equal(t, 1, analog.closes)
	assert.Equal(t, 1, climate.closes)
}

func TestComposite_SameDevice(t *testing.T) {
	d := &countingDevice{}
	c := NewComposite(d, d)

	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, d.connects)
	assert.Equal(t, 1, d.closes)
}

func TestComposite_ConnectRollback(t *testing.T) {
	analog := &countingDevice{}
	climate := &countingDevice{connectErr: errors.New("no such port")}
	c := NewComposite(analog, climate)

	err := c.Connect()
	require.Error(t, err)
	assert.Equal(t, 1, analog.closes)
	assert.False(t, analog.IsConnected())
}
