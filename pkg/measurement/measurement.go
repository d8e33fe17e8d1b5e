package measurement

import (
	"fmt"
	"sync/atomic"

	"github.com/itohio/gardenmeter/pkg/calibration"
)

// Measurement is the result of one completed sampling cycle.
type Measurement struct {
	Timestamp   string                 // "2006-01-02 15:04:05" or a clock sentinel
	SoilRaw     int                    // Raw soil ADC value (0-4095)
	SoilStatus  calibration.SoilStatus // Band derived from SoilRaw
	LightRaw    int                    // Raw light ADC value (0-4095)
	Irradiance  float64                // W/m², clamped to the calibration range
	Temperature float64                // °C, last known good
	Humidity    float64                // %, last known good
}

// View is the JSON shape served to dashboard clients.
type View struct {
	SoilRaw     int                    `json:"soilRaw"`
	Status      calibration.SoilStatus `json:"status"`
	LightRaw    int                    `json:"lightRaw"`
	Irradiance  float64                `json:"irradiance"`
	Temperature float64                `json:"temperature"`
	Humidity    float64                `json:"humidity"`
}

// View returns the externally visible fields of the measurement.
func (m Measurement) View() View {
	return View{
		SoilRaw:     m.SoilRaw,
		Status:      m.SoilStatus,
		LightRaw:    m.LightRaw,
		Irradiance:  m.Irradiance,
		Temperature: m.Temperature,
		Humidity:    m.Humidity,
	}
}

// String formats the measurement for the diagnostic console.
func (m Measurement) String() string {
	return fmt.Sprintf("Zeit: %s, Bodenfeuchte-Rohwert: %d, Status: %s, Licht-Rohwert: %d, Lichtintensität: %.2f W/m², Temperatur: %.1f °C, Luftfeuchtigkeit: %.1f %%",
		m.Timestamp, m.SoilRaw, m.SoilStatus, m.LightRaw, m.Irradiance, m.Temperature, m.Humidity)
}

// State holds the single current snapshot shared between the acquisition loop
// and the HTTP handlers. Updates replace the whole snapshot, so readers never
// observe a partially written measurement.
type State struct {
	current atomic.Pointer[Measurement]
}

// NewState returns a State holding the zero Measurement.
func NewState() *State {
	return &State{}
}

// Set replaces the current snapshot.
func (s *State) Set(m Measurement) {
	s.current.Store(&m)
}

// Get returns the current snapshot, or the zero Measurement before the first cycle.
func (s *State) Get() Measurement {
	if m := s.current.Load(); m != nil {
		return *m
	}
	return Measurement{}
}
