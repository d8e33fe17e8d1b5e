package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gardenmeter/pkg/sample"
)

// DefaultMaxPoints limits the points drawn per series.
const DefaultMaxPoints = 1000

// minWindow is the smallest time span shown on the x axis.
const minWindow = time.Minute

// ScopeWidget is a custom Fyne widget that plots one time series.
type ScopeWidget struct {
	widget.BaseWidget

	title     string
	unit      string
	lineColor color.Color

	// Data (protected by mu)
	mu        sync.RWMutex
	samples   []sample.Sample
	display   []sample.Sample // downsampled, buffer reused
	maxPoints int

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Time

	// Fixed y range, used instead of auto-scaling when fixedY is set
	fixedY         bool
	fixMin, fixMax float64
}

// New creates a new ScopeWidget instance.
func New(title, unit string, lineColor color.Color, maxPoints int) *ScopeWidget {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	s := &ScopeWidget{
		title:     title,
		unit:      unit,
		lineColor: lineColor,
		display:   make([]sample.Sample, 0, maxPoints),
		maxPoints: maxPoints,
	}
	s.ExtendBaseWidget(s)
	s.updateAutoScale()
	return s
}

// SetRange fixes the y axis to [lo, hi], e.g. 0..100 for humidity.
func (s *ScopeWidget) SetRange(lo, hi float64) {
	s.mu.Lock()
	s.fixedY, s.fixMin, s.fixMax = true, lo, hi
	s.updateAutoScale()
	s.mu.Unlock()
	s.Refresh()
}

// UpdateData replaces the plotted series.
// Call from the UI goroutine (fyne.Do) when updating from background work.
func (s *ScopeWidget) UpdateData(samples []sample.Sample) {
	s.mu.Lock()
	s.samples = samples
	s.display = sample.Downsample(s.display, samples, s.maxPoints)
	s.updateAutoScale()
	s.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	s.Refresh()
}

// Len returns the number of samples held, before downsampling.
func (s *ScopeWidget) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Bounds returns the current axis ranges.
func (s *ScopeWidget) Bounds() (xMin, xMax time.Time, yMin, yMax float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.xMin, s.xMax, s.yMin, s.yMax
}

// updateAutoScale calculates axis ranges from current data. Caller holds mu.
func (s *ScopeWidget) updateAutoScale() {
	if len(s.display) == 0 {
		s.yMin, s.yMax = 0, 1
		if s.fixedY {
			s.yMin, s.yMax = s.fixMin, s.fixMax
		}
		s.xMin = time.Now()
		s.xMax = s.xMin.Add(minWindow)
		return
	}

	s.xMin = s.display[0].Timestamp
	s.xMax = s.display[len(s.display)-1].Timestamp
	if s.xMax.Sub(s.xMin) < minWindow {
		s.xMax = s.xMin.Add(minWindow)
	}

	if s.fixedY {
		s.yMin, s.yMax = s.fixMin, s.fixMax
		return
	}

	lo, hi, _ := sample.Range(s.display)

	// Add 10% margin
	span := hi - lo
	if span == 0 {
		span = 1.0
	}
	margin := span * 0.1
	s.yMin = lo - margin
	s.yMax = hi + margin
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	background := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:      s,
		background: background,
		objects:    []fyne.CanvasObject{background},
	}
}
