package main

import (
	"flag"
	"image/color"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gardenmeter/pkg/client"
	"github.com/itohio/gardenmeter/pkg/config"
	"github.com/itohio/gardenmeter/pkg/sample"
	"github.com/itohio/gardenmeter/pkg/scope"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		urlFlag    = flag.String("url", "", "Daemon URL override (e.g., http://gardenmeter.local:8080)")
		fileFlag   = flag.String("file", "sensor_data.csv", "Local copy of the downloaded log")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *urlFlag != "" {
		cfg.Viewer.URL = *urlFlag
	}

	loc, err := time.LoadLocation(cfg.Clock.Timezone)
	if err != nil {
		log.Printf("Unknown timezone %q, using local time: %v", cfg.Clock.Timezone, err)
		loc = time.Local
	}

	application := app.NewWithID("com.itohio.gardenview")

	window := application.NewWindow("Sensordaten")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		dataFile:   *fileFlag,
		loc:        loc,
		window:     window,
		client:     client.New(cfg.Viewer.URL, 0),
		soil:       scope.New("Bodenfeuchte", "Rohwert", color.RGBA{R: 139, G: 195, B: 74, A: 255}, cfg.Viewer.MaxPoints),
		light:      scope.New("Lichtintensität", "W/m²", color.RGBA{R: 255, G: 165, B: 0, A: 255}, cfg.Viewer.MaxPoints),
		temp:       scope.New("Temperatur", "°C", color.RGBA{R: 244, G: 67, B: 54, A: 255}, cfg.Viewer.MaxPoints),
		humidity:   scope.New("Luftfeuchtigkeit", "%", color.RGBA{R: 33, G: 150, B: 243, A: 255}, cfg.Viewer.MaxPoints),
	}
	state.humidity.SetRange(0, 100)

	toolbar := createToolbar(state)
	rangeBar := createRangeBar(state)
	live := createLivePanel(state)

	plots := container.NewGridWithColumns(2, state.soil, state.light, state.temp, state.humidity)

	window.SetContent(container.NewBorder(
		container.NewVBox(toolbar, live),
		rangeBar,
		nil,
		nil,
		plots,
	))

	// Show whatever was downloaded last time.
	state.loadFile()

	stopLive := startLivePolling(state)
	window.SetOnClosed(stopLive)
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configPath string
	dataFile   string
	loc        *time.Location
	window     fyne.Window

	clientMu sync.Mutex
	client   *client.Client // replaced from the settings dialog

	soil, light, temp, humidity *scope.ScopeWidget

	series     sample.Series // all loaded data
	rangeStart *widget.Slider
	rangeEnd   *widget.Slider
	rangeLabel *widget.Label
	statusText *widget.Label

	liveLabels map[string]*widget.Label
}

// daemon returns the current daemon client.
func (state *appState) daemon() *client.Client {
	state.clientMu.Lock()
	defer state.clientMu.Unlock()
	return state.client
}

func (state *appState) setDaemon(c *client.Client) {
	state.clientMu.Lock()
	state.client = c
	state.clientMu.Unlock()
}

// createToolbar creates the toolbar with Download, Reload and Settings buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	downloadBtn := widget.NewButtonWithIcon("Aktuelle Daten laden", theme.DownloadIcon(), func() {
		handleDownload(state)
	})
	reloadBtn := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), func() {
		state.loadFile()
	})
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})
	state.statusText = widget.NewLabel("")

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(downloadBtn, reloadBtn, settingsBtn),
		nil,
		state.statusText,
	)
}

// createRangeBar creates the start/end sliders selecting the plotted time range.
func createRangeBar(state *appState) fyne.CanvasObject {
	state.rangeLabel = widget.NewLabel("Zeitraum: --")
	state.rangeStart = widget.NewSlider(0, 1000)
	state.rangeEnd = widget.NewSlider(0, 1000)
	state.rangeEnd.SetValue(1000)

	onChange := func(float64) {
		if state.rangeStart.Value > state.rangeEnd.Value {
			state.rangeStart.SetValue(state.rangeEnd.Value)
			return
		}
		state.applyRange()
	}
	state.rangeStart.OnChanged = onChange
	state.rangeEnd.OnChanged = onChange

	return container.NewVBox(
		state.rangeLabel,
		container.NewGridWithColumns(2, state.rangeStart, state.rangeEnd),
	)
}
