package sensor

import (
	"context"
	"errors"
	"math"
)

// Channel is an analog input number on the sampling device.
type Channel int

const (
	// SoilChannel is the default analog channel of the soil moisture probe.
	SoilChannel Channel = 0
	// LightChannel is the default analog channel of the photoresistor.
	LightChannel Channel = 1
)

var (
	// ErrInvalidReading marks a climate sample where at least one value is not a number.
	ErrInvalidReading = errors.New("invalid climate reading")
	// ErrClimateUnavailable is returned when all climate read attempts failed.
	ErrClimateUnavailable = errors.New("climate sensor unavailable")
	// ErrNotSupported is returned by devices lacking a capability.
	ErrNotSupported = errors.New("not supported by device")
	// ErrNotConnected is returned when a device is used before Connect.
	ErrNotConnected = errors.New("not connected")
)

// Climate is one combined temperature/humidity sample.
type Climate struct {
	Temperature float64 // °C
	Humidity    float64 // %
}

// Valid reports whether both values are finite numbers.
func (c Climate) Valid() bool {
	return isFinite(c.Temperature) && isFinite(c.Humidity)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Device defines the interface for sampling hardware (real or mocked).
type Device interface {
	Connect() error
	Close() error
	IsConnected() bool
	// Analog returns one raw sample of the channel in the device's native range.
	Analog(ctx context.Context, ch Channel) (int, error)
	// Climate returns one combined temperature/humidity sample. Values may be NaN
	// when the sensor returned garbage.
	Climate(ctx context.Context) (Climate, error)
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*Mock)(nil)
	_ Device = (*ADS1115)(nil)
	_ Device = (*Composite)(nil)
)
