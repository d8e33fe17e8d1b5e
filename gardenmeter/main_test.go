package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gardenmeter/pkg/clock"
	"github.com/itohio/gardenmeter/pkg/config"
	"github.com/itohio/gardenmeter/pkg/sensor"
)

func TestNewDevice(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		analog  string
		climate string
		check   func(t *testing.T, d sensor.Device)
	}{
		{"serial bridge", config.DeviceSerial, config.DeviceSerial, func(t *testing.T, d sensor.Device) {
			assert.IsType(t, &sensor.Serial{}, d)
		}},
		{"mock", config.DeviceMock, config.DeviceMock, func(t *testing.T, d sensor.Device) {
			assert.IsType(t, &sensor.Mock{}, d)
		}},
		{"ads1115 with serial climate", config.DeviceADS1115, config.DeviceSerial, func(t *testing.T, d sensor.Device) {
			assert.IsType(t, &sensor.Composite{}, d)
		}},
		{"serial analog with mock climate", config.DeviceSerial, config.DeviceMock, func(t *testing.T, d sensor.Device) {
			assert.IsType(t, &sensor.Composite{}, d)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Device.Analog = tt.analog
			cfg.Device.Climate = tt.climate

			d, err := newDevice(cfg, logger)
			require.NoError(t, err)
			tt.check(t, d)
		})
	}
}

func TestNewDevice_Unknown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Device.Analog = "usb"

	_, err := newDevice(cfg, logger)
	assert.Error(t, err)
}

func TestNewTimeSource(t *testing.T) {
	cfg := config.Default()
	assert.IsType(t, &clock.NTP{}, newTimeSource(cfg))

	cfg.Clock.Source = config.ClockSystem
	assert.IsType(t, &clock.System{}, newTimeSource(cfg))
}
