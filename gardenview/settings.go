package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gardenmeter/pkg/calibration"
	"github.com/itohio/gardenmeter/pkg/client"
)

// showSettingsDialog displays a settings dialog with tabs for the viewer options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createDeviceTab(state),
		createCalibrationTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(500, 400))

	d := dialog.NewCustom("Einstellungen", "Schließen", content, state.window)
	d.Resize(fyne.NewSize(500, 400))
	d.Show()
}

// createDeviceTab creates the daemon connection tab.
func createDeviceTab(state *appState) *container.TabItem {
	urlEntry := widget.NewEntry()
	urlEntry.SetText(state.cfg.Viewer.URL)

	refreshEntry := widget.NewEntry()
	refreshEntry.SetText(state.cfg.Viewer.Refresh.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "URL", Widget: urlEntry},
			{Text: "Aktualisierung", Widget: refreshEntry, HintText: "z.B. 5s; gilt nach Neustart"},
		},
		OnSubmit: func() {
			state.cfg.Viewer.URL = urlEntry.Text
			if d, err := time.ParseDuration(refreshEntry.Text); err == nil && d > 0 {
				state.cfg.Viewer.Refresh = d
			}
			state.setDaemon(client.New(state.cfg.Viewer.URL, 0))
			state.save()
		},
	}

	return container.NewTabItem("Gerät", form)
}

// createCalibrationTab creates the calibration tab. Irradiance is recomputed
// from the raw light values, so changes apply to already loaded data.
func createCalibrationTab(state *appState) *container.TabItem {
	cal := state.cfg.Calibration

	moistEntry := intEntry(cal.Soil.Moist)
	saturatedEntry := intEntry(cal.Soil.Saturated)
	darkRawEntry := intEntry(cal.Light.DarkRaw)
	brightRawEntry := intEntry(cal.Light.BrightRaw)
	darkIrrEntry := floatEntry(cal.Light.DarkIrradiance)
	brightIrrEntry := floatEntry(cal.Light.BrightIrradiance)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Feucht ab (ADC)", Widget: moistEntry},
			{Text: "Sehr nass ab (ADC)", Widget: saturatedEntry},
			{Text: "Dunkel (ADC)", Widget: darkRawEntry},
			{Text: "Hell (ADC)", Widget: brightRawEntry},
			{Text: "Dunkel (W/m²)", Widget: darkIrrEntry},
			{Text: "Hell (W/m²)", Widget: brightIrrEntry},
		},
		OnSubmit: func() {
			next := calibration.Calibration{
				Soil: calibration.SoilThresholds{
					Moist:     parseInt(moistEntry.Text, cal.Soil.Moist),
					Saturated: parseInt(saturatedEntry.Text, cal.Soil.Saturated),
				},
				Light: calibration.LightCalibration{
					DarkRaw:          parseInt(darkRawEntry.Text, cal.Light.DarkRaw),
					BrightRaw:        parseInt(brightRawEntry.Text, cal.Light.BrightRaw),
					DarkIrradiance:   parseFloat(darkIrrEntry.Text, cal.Light.DarkIrradiance),
					BrightIrradiance: parseFloat(brightIrrEntry.Text, cal.Light.BrightIrradiance),
				},
			}
			if err := next.Validate(); err != nil {
				dialog.ShowError(err, state.window)
				return
			}
			state.cfg.Calibration = next
			state.save()
			state.loadFile()
		},
	}

	return container.NewTabItem("Kalibrierung", form)
}

func (state *appState) save() {
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

func intEntry(v int) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(strconv.Itoa(v))
	return e
}

func floatEntry(v float64) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(strconv.FormatFloat(v, 'f', -1, 64))
	return e
}

func parseInt(s string, fallback int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return fallback
}

func parseFloat(s string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return fallback
}

