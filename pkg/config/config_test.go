package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, DeviceSerial, cfg.Device.Analog)
	assert.Equal(t, DeviceSerial, cfg.Device.Climate)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 0, cfg.Channels.Soil)
	assert.Equal(t, 1, cfg.Channels.Light)
	assert.Equal(t, 300, cfg.Calibration.Soil.Moist)
	assert.Equal(t, 700, cfg.Calibration.Soil.Saturated)
	assert.Equal(t, 4095, cfg.Calibration.Light.DarkRaw)
	assert.Equal(t, 0, cfg.Calibration.Light.BrightRaw)
	assert.Equal(t, float64(1000), cfg.Calibration.Light.BrightIrradiance)
	assert.Equal(t, 2*time.Second, cfg.Sampling.Interval)
	assert.Equal(t, 3, cfg.Sampling.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Sampling.RetryBackoff)
	assert.Equal(t, 10, cfg.Clock.Attempts)
	assert.Equal(t, "sensor_data.csv", cfg.Storage.File)
	assert.Empty(t, cfg.Storage.SQLite)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, Default(), cfg)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, `
device:
  analog: ads1115
  climate: mock

serial:
  port: "/dev/ttyUSB1"
  baud_rate: 57600
  timeout: 250ms

i2c:
  bus: "1"
  address: 0x49
  gain: "2/3"
  native_max: 1023

channels:
  soil: 2
  light: 3

calibration:
  soil:
    moist: 250
    saturated: 650
  light:
    dark_raw: 1023
    bright_raw: 10
    dark_irradiance: 0
    bright_irradiance: 800

sampling:
  interval: 5s
  retry_attempts: 5
  retry_backoff: 500ms

clock:
  source: system
  timezone: UTC

storage:
  dir: /var/lib/gardenmeter
  sqlite: /var/lib/gardenmeter/history.db

http:
  addr: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, DeviceADS1115, cfg.Device.Analog)
	assert.Equal(t, DeviceMock, cfg.Device.Climate)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.Equal(t, 250*time.Millisecond, cfg.Serial.Timeout)
	assert.Equal(t, uint16(0x49), cfg.I2C.Address)
	assert.Equal(t, "2/3", cfg.I2C.Gain)
	assert.Equal(t, 1023, cfg.I2C.NativeMax)
	assert.Equal(t, 2, cfg.Channels.Soil)
	assert.Equal(t, 3, cfg.Channels.Light)
	assert.Equal(t, 250, cfg.Calibration.Soil.Moist)
	assert.Equal(t, 650, cfg.Calibration.Soil.Saturated)
	assert.Equal(t, 1023, cfg.Calibration.Light.DarkRaw)
	assert.Equal(t, 10, cfg.Calibration.Light.BrightRaw)
	assert.Equal(t, float64(800), cfg.Calibration.Light.BrightIrradiance)
	assert.Equal(t, 5*time.Second, cfg.Sampling.Interval)
	assert.Equal(t, 5, cfg.Sampling.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Sampling.RetryBackoff)
	assert.Equal(t, ClockSystem, cfg.Clock.Source)
	assert.Equal(t, "UTC", cfg.Clock.Timezone)
	assert.Equal(t, "/var/lib/gardenmeter", cfg.Storage.Dir)
	assert.Equal(t, "sensor_data.csv", cfg.Storage.File) // default
	assert.Equal(t, "/var/lib/gardenmeter/history.db", cfg.Storage.SQLite)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: yaml: content: [")

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: "/dev/ttyACM1"
calibration:
  soil:
    moist: 200
    saturated: 600
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 200, cfg.Calibration.Soil.Moist)
	assert.Equal(t, 4095, cfg.Calibration.Light.DarkRaw)
	assert.Equal(t, 2*time.Second, cfg.Sampling.Interval)
}

func TestEnsureDefaults_ZeroSections(t *testing.T) {
	cfg := &Config{}
	cfg.ensureDefaults()

	wantSampling := Default().Sampling
	wantSampling.RetryBackoff = 0
	wantClock := Default().Clock
	wantClock.Delay = 0

	assert.Equal(t, Default().Calibration, cfg.Calibration)
	assert.Equal(t, wantSampling, cfg.Sampling)
	assert.Equal(t, wantClock, cfg.Clock)
	assert.Equal(t, Default().Storage, cfg.Storage)
}

func TestLoad_ZeroDelaysKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sampling:
  retry_backoff: 0s
clock:
  delay: 0s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Sampling.RetryBackoff)
	assert.Equal(t, time.Duration(0), cfg.Clock.Delay)
	// Omitted keys keep their defaults.
	assert.Equal(t, Default().Sampling.RetryAttempts, cfg.Sampling.RetryAttempts)
	assert.Equal(t, Default().Clock.Attempts, cfg.Clock.Attempts)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Sampling.Interval = 15 * time.Second
	cfg.Calibration.Soil.Moist = 320

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	// Load it back and verify
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 15*time.Second, loaded.Sampling.Interval)
	assert.Equal(t, 320, loaded.Calibration.Soil.Moist)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown analog device", func(c *Config) { c.Device.Analog = "usb" }},
		{"unknown climate device", func(c *Config) { c.Device.Climate = DeviceADS1115 }},
		{"unknown clock source", func(c *Config) { c.Clock.Source = "gps" }},
		{"zero interval", func(c *Config) { c.Sampling.Interval = 0 }},
		{"shared channel", func(c *Config) { c.Channels.Light = c.Channels.Soil }},
		{"bad timezone", func(c *Config) { c.Clock.Timezone = "Mars/Olympus" }},
		{"inverted thresholds", func(c *Config) { c.Calibration.Soil.Moist = 800 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
