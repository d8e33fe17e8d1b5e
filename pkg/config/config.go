package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // timezone names on hosts without zoneinfo

	"gopkg.in/yaml.v3"

	"github.com/itohio/gardenmeter/pkg/calibration"
)

// Device kinds.
const (
	DeviceSerial  = "serial"
	DeviceADS1115 = "ads1115"
	DeviceMock    = "mock"
)

// Time sources.
const (
	ClockNTP    = "ntp"
	ClockSystem = "system"
)

// Config represents the application configuration.
type Config struct {
	Device      DeviceConfig            `yaml:"device"`
	Serial      SerialConfig            `yaml:"serial"`
	I2C         I2CConfig               `yaml:"i2c"`
	Channels    ChannelsConfig          `yaml:"channels"`
	Calibration calibration.Calibration `yaml:"calibration"`
	Sampling    SamplingConfig          `yaml:"sampling"`
	Clock       ClockConfig             `yaml:"clock"`
	Storage     StorageConfig           `yaml:"storage"`
	HTTP        HTTPConfig              `yaml:"http"`
	Viewer      ViewerConfig            `yaml:"viewer"`
	Mock        MockConfig              `yaml:"mock"`
}

// DeviceConfig selects where analog and climate samples come from.
type DeviceConfig struct {
	Analog  string `yaml:"analog"`  // serial, ads1115 or mock
	Climate string `yaml:"climate"` // serial or mock
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	Timeout  time.Duration `yaml:"timeout"` // per request
}

// I2CConfig contains the ADS1115 configuration.
type I2CConfig struct {
	Bus       string `yaml:"bus"` // empty selects the first bus
	Address   uint16 `yaml:"address"`
	Gain      string `yaml:"gain"`       // 2/3, 1, 2, 4, 8, 16
	NativeMax int    `yaml:"native_max"` // conversions are rescaled to [0, native_max]
}

// ChannelsConfig maps sensors to analog channels.
type ChannelsConfig struct {
	Soil  int `yaml:"soil"`
	Light int `yaml:"light"`
}

// SamplingConfig contains acquisition loop parameters.
type SamplingConfig struct {
	Interval      time.Duration `yaml:"interval"`
	RetryAttempts int           `yaml:"retry_attempts"` // climate read attempts per cycle
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// ClockConfig contains time synchronization parameters.
type ClockConfig struct {
	Source   string        `yaml:"source"` // ntp or system
	Server   string        `yaml:"server"`
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	Timezone string        `yaml:"timezone"`
}

// StorageConfig contains log file locations.
type StorageConfig struct {
	Dir    string `yaml:"dir"`
	File   string `yaml:"file"`
	SQLite string `yaml:"sqlite"` // optional mirror database, empty disables it
}

// HTTPConfig contains the web server configuration.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ViewerConfig contains the desktop viewer configuration.
type ViewerConfig struct {
	URL       string        `yaml:"url"`
	Refresh   time.Duration `yaml:"refresh"`
	MaxPoints int           `yaml:"max_points"`
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	SoilPeriod         time.Duration `yaml:"soil_period"`          // time from watered to dry
	DayPeriod          time.Duration `yaml:"day_period"`           // length of a simulated day
	Temperature        float64       `yaml:"temperature"`          // mean temperature (°C)
	Humidity           float64       `yaml:"humidity"`             // mean humidity (%)
	NoiseLevel         float64       `yaml:"noise_level"`          // noise amplitude in raw counts
	ClimateFailureRate float64       `yaml:"climate_failure_rate"` // probability of a NaN climate sample
	Seed               uint64        `yaml:"seed"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Analog:  DeviceSerial,
			Climate: DeviceSerial,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0", // "COM3" on Windows
			BaudRate: 115200,
			Timeout:  500 * time.Millisecond,
		},
		I2C: I2CConfig{
			Address:   0x48,
			Gain:      "1",
			NativeMax: 4095,
		},
		Channels: ChannelsConfig{
			Soil:  0,
			Light: 1,
		},
		Calibration: calibration.Default(),
		Sampling: SamplingConfig{
			Interval:      2 * time.Second,
			RetryAttempts: 3,
			RetryBackoff:  time.Second,
		},
		Clock: ClockConfig{
			Source:   ClockNTP,
			Server:   "pool.ntp.org",
			Attempts: 10,
			Delay:    time.Second,
			Timezone: "Europe/Berlin",
		},
		Storage: StorageConfig{
			Dir:  "data",
			File: "sensor_data.csv",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Viewer: ViewerConfig{
			URL:       "http://localhost:8080",
			Refresh:   5 * time.Second,
			MaxPoints: 1000,
		},
		Mock: MockConfig{
			SoilPeriod:         10 * time.Minute,
			DayPeriod:          10 * time.Minute,
			Temperature:        21.0,
			Humidity:           45.0,
			NoiseLevel:         8,
			ClimateFailureRate: 0.2,
			Seed:               1,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports configuration errors that would prevent the daemon from running.
func (c *Config) Validate() error {
	switch c.Device.Analog {
	case DeviceSerial, DeviceADS1115, DeviceMock:
	default:
		return fmt.Errorf("unknown analog device %q", c.Device.Analog)
	}
	switch c.Device.Climate {
	case DeviceSerial, DeviceMock:
	default:
		return fmt.Errorf("unknown climate device %q", c.Device.Climate)
	}
	switch c.Clock.Source {
	case ClockNTP, ClockSystem:
	default:
		return fmt.Errorf("unknown clock source %q", c.Clock.Source)
	}
	if c.Sampling.Interval <= 0 {
		return fmt.Errorf("sampling interval must be positive, got %s", c.Sampling.Interval)
	}
	if c.Channels.Soil == c.Channels.Light {
		return fmt.Errorf("soil and light must use different channels, both are %d", c.Channels.Soil)
	}
	if _, err := time.LoadLocation(c.Clock.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Clock.Timezone, err)
	}
	return c.Calibration.Validate()
}

// ensureDefaults ensures that all required fields have default values if missing.
// Durations where zero means "no wait" (retry_backoff, clock delay) are kept as
// loaded; Load already starts from Default, so an omitted key keeps its default.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Device.Analog == "" {
		c.Device.Analog = def.Device.Analog
	}
	if c.Device.Climate == "" {
		c.Device.Climate = def.Device.Climate
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.Timeout == 0 {
		c.Serial.Timeout = def.Serial.Timeout
	}

	if c.I2C.Address == 0 {
		c.I2C.Address = def.I2C.Address
	}
	if c.I2C.Gain == "" {
		c.I2C.Gain = def.I2C.Gain
	}
	if c.I2C.NativeMax == 0 {
		c.I2C.NativeMax = def.I2C.NativeMax
	}

	// Zero is a valid anchor value, so only entirely missing sections are defaulted.
	if c.Calibration.Soil == (calibration.SoilThresholds{}) {
		c.Calibration.Soil = def.Calibration.Soil
	}
	if c.Calibration.Light == (calibration.LightCalibration{}) {
		c.Calibration.Light = def.Calibration.Light
	}

	if c.Sampling.Interval == 0 {
		c.Sampling.Interval = def.Sampling.Interval
	}
	if c.Sampling.RetryAttempts == 0 {
		c.Sampling.RetryAttempts = def.Sampling.RetryAttempts
	}

	if c.Clock.Source == "" {
		c.Clock.Source = def.Clock.Source
	}
	if c.Clock.Server == "" {
		c.Clock.Server = def.Clock.Server
	}
	if c.Clock.Attempts == 0 {
		c.Clock.Attempts = def.Clock.Attempts
	}
	if c.Clock.Timezone == "" {
		c.Clock.Timezone = def.Clock.Timezone
	}

	if c.Storage.Dir == "" {
		c.Storage.Dir = def.Storage.Dir
	}
	if c.Storage.File == "" {
		c.Storage.File = def.Storage.File
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}

	if c.Viewer.URL == "" {
		c.Viewer.URL = def.Viewer.URL
	}
	if c.Viewer.Refresh == 0 {
		c.Viewer.Refresh = def.Viewer.Refresh
	}
	if c.Viewer.MaxPoints == 0 {
		c.Viewer.MaxPoints = def.Viewer.MaxPoints
	}

	if c.Mock.SoilPeriod == 0 {
		c.Mock.SoilPeriod = def.Mock.SoilPeriod
	}
	if c.Mock.DayPeriod == 0 {
		c.Mock.DayPeriod = def.Mock.DayPeriod
	}
}
