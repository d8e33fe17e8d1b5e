package sensor

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/itohio/gardenmeter/pkg/config"
)

const (
	mockADCMax = 4095

	// Soil probe readings of a freshly watered pot and of a dried out one.
	mockSoilWet = 900
	mockSoilDry = 150
)

// Mock simulates the sensor board for testing and development.
//
// The soil probe dries linearly over SoilPeriod and is then watered again.
// Light follows a sine shaped day of DayPeriod; the photoresistor reads
// mockADCMax in the dark. Temperature and humidity swing with the day.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.Mutex
	rng       *rand.Rand
	now       func() time.Time
	startTime time.Time
	connected bool
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			SoilPeriod:         10 * time.Minute,
			DayPeriod:          10 * time.Minute,
			Temperature:        21.0,
			Humidity:           45.0,
			NoiseLevel:         8,
			ClimateFailureRate: 0.2,
			Seed:               1,
		}
	}

	return &Mock{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
}

// Connect simulates connecting to the device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = m.now()
	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Analog returns a simulated raw sample.
func (m *Mock) Analog(_ context.Context, ch Channel) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, ErrNotConnected
	}

	elapsed := m.now().Sub(m.startTime)

	var v float64
	switch ch {
	case SoilChannel:
		v = mockSoilWet - (mockSoilWet-mockSoilDry)*phase(elapsed, m.cfg.SoilPeriod)
	case LightChannel:
		v = mockADCMax * (1 - m.daylight(elapsed))
	default:
		v = mockADCMax / 2
	}
	v += (m.rng.Float64()*2 - 1) * m.cfg.NoiseLevel

	return clampADC(v), nil
}

// Climate returns a simulated DHT sample. With probability ClimateFailureRate
// both values are NaN, like a failed DHT read.
func (m *Mock) Climate(_ context.Context) (Climate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return Climate{}, ErrNotConnected
	}

	if m.rng.Float64() < m.cfg.ClimateFailureRate {
		return Climate{Temperature: math.NaN(), Humidity: math.NaN()}, nil
	}

	day := m.daylight(m.now().Sub(m.startTime))
	return Climate{
		Temperature: m.cfg.Temperature + 4*day + (m.rng.Float64()-0.5)*0.4,
		Humidity:    math.Max(0, math.Min(100, m.cfg.Humidity-10*day+(m.rng.Float64()-0.5)*2)),
	}, nil
}

// daylight returns the sun intensity in [0, 1]; the first half of a day is lit.
func (m *Mock) daylight(elapsed time.Duration) float64 {
	return math.Max(0, math.Sin(2*math.Pi*phase(elapsed, m.cfg.DayPeriod)))
}

// phase returns the position of elapsed inside a period as a fraction in [0, 1).
func phase(elapsed, period time.Duration) float64 {
	if period <= 0 {
		return 0
	}
	return float64(elapsed%period) / float64(period)
}

func clampADC(v float64) int {
	if v < 0 {
		return 0
	}
	if v > mockADCMax {
		return mockADCMax
	}
	return int(math.Round(v))
}
