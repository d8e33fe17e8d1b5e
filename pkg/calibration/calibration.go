package calibration

import (
	"errors"
	"fmt"
)

// SoilStatus is the moisture category derived from a raw soil reading.
type SoilStatus int

const (
	Dry SoilStatus = iota
	Moist
	Saturated
)

// Labels written to the log file and the JSON endpoint.
const (
	labelDry       = "Trockener Boden"
	labelMoist     = "Feuchter Boden"
	labelSaturated = "Sehr nasser Boden / Im Wasser"
)

var ErrUnknownStatus = errors.New("unknown soil status")

// String returns the human readable label of the status.
func (s SoilStatus) String() string {
	switch s {
	case Dry:
		return labelDry
	case Moist:
		return labelMoist
	case Saturated:
		return labelSaturated
	default:
		return fmt.Sprintf("SoilStatus(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SoilStatus) MarshalText() ([]byte, error) {
	switch s {
	case Dry, Moist, Saturated:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}
}

// UnmarshalText accepts both the labels and the enum names (DRY, MOIST, SATURATED).
func (s *SoilStatus) UnmarshalText(text []byte) error {
	v, err := ParseSoilStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSoilStatus parses a label or enum name.
func ParseSoilStatus(text string) (SoilStatus, error) {
	switch text {
	case labelDry, "DRY":
		return Dry, nil
	case labelMoist, "MOIST":
		return Moist, nil
	case labelSaturated, "SATURATED":
		return Saturated, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, text)
	}
}

// SoilThresholds partitions the raw soil range into three bands.
// Lower bounds are inclusive: [.., Moist) is dry, [Moist, Saturated) is moist,
// [Saturated, ..) is saturated.
type SoilThresholds struct {
	Moist     int `yaml:"moist"`
	Saturated int `yaml:"saturated"`
}

// LightCalibration holds the two anchor points of the light sensor.
// The photoresistor is inverted: a higher raw value means darker.
type LightCalibration struct {
	DarkRaw          int     `yaml:"dark_raw"`
	BrightRaw        int     `yaml:"bright_raw"`
	DarkIrradiance   float64 `yaml:"dark_irradiance"`
	BrightIrradiance float64 `yaml:"bright_irradiance"`
}

// Calibration bundles the soil and light conversion parameters.
type Calibration struct {
	Soil  SoilThresholds   `yaml:"soil"`
	Light LightCalibration `yaml:"light"`
}

// Default returns the calibration of the reference hardware (12-bit ADC).
func Default() Calibration {
	return Calibration{
		Soil: SoilThresholds{
			Moist:     300,
			Saturated: 700,
		},
		Light: LightCalibration{
			DarkRaw:          4095,
			BrightRaw:        0,
			DarkIrradiance:   0.0,
			BrightIrradiance: 1000.0,
		},
	}
}

// Validate checks that the bands are ordered and the irradiance range is not empty.
func (c Calibration) Validate() error {
	if c.Soil.Moist >= c.Soil.Saturated {
		return fmt.Errorf("soil thresholds must be ascending: moist=%d saturated=%d", c.Soil.Moist, c.Soil.Saturated)
	}
	if c.Light.BrightIrradiance <= c.Light.DarkIrradiance {
		return fmt.Errorf("bright irradiance %.2f must exceed dark irradiance %.2f", c.Light.BrightIrradiance, c.Light.DarkIrradiance)
	}
	return nil
}

// ClassifySoil maps a raw soil reading to its status band.
func (t SoilThresholds) ClassifySoil(raw int) SoilStatus {
	switch {
	case raw < t.Moist:
		return Dry
	case raw < t.Saturated:
		return Moist
	default:
		return Saturated
	}
}

// ToIrradiance converts a raw light reading to W/m² by linear interpolation
// between the anchors, clamped to [DarkIrradiance, BrightIrradiance].
func (l LightCalibration) ToIrradiance(raw int) float64 {
	if l.DarkRaw == l.BrightRaw {
		return l.DarkIrradiance
	}

	fraction := float64(l.DarkRaw-raw) / float64(l.DarkRaw-l.BrightRaw)
	value := l.DarkIrradiance + fraction*(l.BrightIrradiance-l.DarkIrradiance)

	if value < l.DarkIrradiance {
		return l.DarkIrradiance
	}
	if value > l.BrightIrradiance {
		return l.BrightIrradiance
	}
	return value
}

// ClassifySoil classifies using the configured thresholds.
func (c Calibration) ClassifySoil(raw int) SoilStatus {
	return c.Soil.ClassifySoil(raw)
}

// ToIrradiance converts using the configured light anchors.
func (c Calibration) ToIrradiance(raw int) float64 {
	return c.Light.ToIrradiance(raw)
}
