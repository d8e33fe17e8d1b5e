// Package sample turns logged measurements into plottable time series.
package sample

import (
	"sort"
	"time"

	"github.com/itohio/gardenmeter/pkg/calibration"
	"github.com/itohio/gardenmeter/pkg/measurement"
)

// TimestampLayout is the layout of logged timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Sample is one point of a series.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Series holds the four plotted quantities of a log, sorted by time.
type Series struct {
	Soil        []Sample // raw soil value
	Irradiance  []Sample // W/m²
	Temperature []Sample // °C
	Humidity    []Sample // %

	Skipped int // rows without a usable timestamp
}

// FromMeasurements builds series from logged measurements. Timestamps are
// interpreted in loc; rows stamped with a clock sentinel are skipped.
// Irradiance is recomputed from the raw light value with cal, so a log
// recorded with other anchors can be viewed with the current ones.
func FromMeasurements(ms []measurement.Measurement, cal calibration.Calibration, loc *time.Location) Series {
	if loc == nil {
		loc = time.Local
	}

	type row struct {
		t time.Time
		m measurement.Measurement
	}
	rows := make([]row, 0, len(ms))

	var s Series
	for _, m := range ms {
		t, err := time.ParseInLocation(TimestampLayout, m.Timestamp, loc)
		if err != nil {
			s.Skipped++
			continue
		}
		rows = append(rows, row{t: t, m: m})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].t.Before(rows[j].t) })

	s.Soil = make([]Sample, 0, len(rows))
	s.Irradiance = make([]Sample, 0, len(rows))
	s.Temperature = make([]Sample, 0, len(rows))
	s.Humidity = make([]Sample, 0, len(rows))
	for _, r := range rows {
		s.Soil = append(s.Soil, Sample{Timestamp: r.t, Value: float64(r.m.SoilRaw)})
		s.Irradiance = append(s.Irradiance, Sample{Timestamp: r.t, Value: cal.ToIrradiance(r.m.LightRaw)})
		s.Temperature = append(s.Temperature, Sample{Timestamp: r.t, Value: r.m.Temperature})
		s.Humidity = append(s.Humidity, Sample{Timestamp: r.t, Value: r.m.Humidity})
	}
	return s
}

// Len returns the number of points per series.
func (s Series) Len() int {
	return len(s.Soil)
}

// Bounds returns the first and last timestamp.
func (s Series) Bounds() (start, end time.Time, ok bool) {
	if len(s.Soil) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.Soil[0].Timestamp, s.Soil[len(s.Soil)-1].Timestamp, true
}

// Window returns the series restricted to [start, end].
func (s Series) Window(start, end time.Time) Series {
	return Series{
		Soil:        Window(s.Soil, start, end),
		Irradiance:  Window(s.Irradiance, start, end),
		Temperature: Window(s.Temperature, start, end),
		Humidity:    Window(s.Humidity, start, end),
		Skipped:     s.Skipped,
	}
}

// Window returns the sub-slice of time sorted samples within [start, end].
func Window(samples []Sample, start, end time.Time) []Sample {
	lo := sort.Search(len(samples), func(i int) bool { return !samples[i].Timestamp.Before(start) })
	hi := sort.Search(len(samples), func(i int) bool { return samples[i].Timestamp.After(end) })
	if lo >= hi {
		return samples[:0:0]
	}
	return samples[lo:hi]
}

// Range returns the minimum and maximum value.
func Range(samples []Sample) (lo, hi float64, ok bool) {
	if len(samples) == 0 {
		return 0, 0, false
	}
	lo, hi = samples[0].Value, samples[0].Value
	for _, s := range samples[1:] {
		lo = min(lo, s.Value)
		hi = max(hi, s.Value)
	}
	return lo, hi, true
}
