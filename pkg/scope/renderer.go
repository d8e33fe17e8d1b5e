package scope

import (
	"image/color"
	"math"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/gardenmeter/pkg/sample"
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	titleColor = color.RGBA{R: 220, G: 220, B: 220, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	background *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(320, 220)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the plot.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	samples := r.scope.display
	yMin, yMax := r.scope.yMin, r.scope.yMax
	xMin, xMax := r.scope.xMin, r.scope.xMax
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.background}

	p := plotArea{
		x:    60,
		y:    28,
		w:    size.Width - 60 - 20,
		h:    size.Height - 28 - 40,
		xMin: xMin, xMax: xMax,
		yMin: yMin, yMax: yMax,
	}

	r.drawTitle(len(samples))
	r.drawGrid(p)
	r.drawLine(p, samples)
}

// plotArea maps data coordinates into the widget.
type plotArea struct {
	x, y, w, h float32
	xMin, xMax time.Time
	yMin, yMax float64
}

func (p plotArea) pos(s sample.Sample) fyne.Position {
	span := p.xMax.Sub(p.xMin).Seconds()
	fx := 0.0
	if span > 0 {
		fx = s.Timestamp.Sub(p.xMin).Seconds() / span
	}
	fy := 0.0
	if p.yMax != p.yMin {
		fy = (s.Value - p.yMin) / (p.yMax - p.yMin)
	}
	fy = math.Max(0, math.Min(1, fy))
	return fyne.NewPos(p.x+float32(fx)*p.w, p.y+p.h-float32(fy)*p.h)
}

func (r *scopeRenderer) drawTitle(n int) {
	text := canvas.NewText(r.scope.title+" ("+r.scope.unit+")", titleColor)
	text.TextSize = 13
	text.TextStyle = fyne.TextStyle{Bold: true}
	text.Move(fyne.NewPos(60, 6))
	r.objects = append(r.objects, text)

	if n == 0 {
		empty := canvas.NewText("Keine Daten", labelColor)
		empty.TextSize = 12
		empty.Move(fyne.NewPos(r.scope.Size().Width/2-30, r.scope.Size().Height/2-8))
		r.objects = append(r.objects, empty)
	}
}

// drawGrid draws horizontal value lines and vertical time lines with labels.
func (r *scopeRenderer) drawGrid(p plotArea) {
	const numHLines = 5
	for i := range numHLines + 1 {
		y := p.y + float32(i)*p.h/numHLines
		r.addLine(gridColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))

		value := p.yMax - float64(i)*(p.yMax-p.yMin)/numHLines
		text := canvas.NewText(formatValue(value), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(p.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	const numVLines = 6
	span := p.xMax.Sub(p.xMin)
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.w/numVLines
		r.addLine(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))

		t := p.xMin.Add(span * time.Duration(i) / numVLines)
		text := canvas.NewText(formatTime(t, span), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, p.y+p.h+5))
		r.objects = append(r.objects, text)
	}
}

// drawLine draws the series as connected segments.
func (r *scopeRenderer) drawLine(p plotArea, samples []sample.Sample) {
	if len(samples) == 1 {
		pt := p.pos(samples[0])
		dot := canvas.NewCircle(r.scope.lineColor)
		dot.Resize(fyne.NewSize(4, 4))
		dot.Move(pt.SubtractXY(2, 2))
		r.objects = append(r.objects, dot)
		return
	}
	for i := 1; i < len(samples); i++ {
		r.addLine(r.scope.lineColor, 1.5, p.pos(samples[i-1]), p.pos(samples[i]))
	}
}

func (r *scopeRenderer) addLine(c color.Color, width float32, a, b fyne.Position) {
	line := canvas.NewLine(c)
	line.Position1 = a
	line.Position2 = b
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {
	// Cleanup handled by Fyne
}

// formatValue prints axis values with precision matching their magnitude.
func formatValue(v float64) string {
	switch a := math.Abs(v); {
	case a >= 100:
		return strconv.FormatFloat(v, 'f', 0, 64)
	case a >= 10:
		return strconv.FormatFloat(v, 'f', 1, 64)
	default:
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
}

// formatTime prints clock time, with the date for spans over a day.
func formatTime(t time.Time, span time.Duration) string {
	switch {
	case span > 24*time.Hour:
		return t.Format("02.01. 15:04")
	case span < 10*time.Minute:
		return t.Format("15:04:05")
	default:
		return t.Format("15:04")
	}
}
