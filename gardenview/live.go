package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gardenmeter/pkg/measurement"
)

var liveFields = []string{"status", "soilRaw", "irradiance", "temperature", "humidity"}

// createLivePanel shows the latest reading of the daemon.
func createLivePanel(state *appState) fyne.CanvasObject {
	state.liveLabels = make(map[string]*widget.Label, len(liveFields))
	objects := make([]fyne.CanvasObject, 0, len(liveFields))
	for _, f := range liveFields {
		l := widget.NewLabel("--")
		state.liveLabels[f] = l
		objects = append(objects, l)
	}
	return container.NewGridWithColumns(len(liveFields), objects...)
}

// startLivePolling polls /api/data every refresh interval until the returned
// function is called.
func startLivePolling(state *appState) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(state.cfg.Viewer.Refresh)
		defer ticker.Stop()

		for {
			pollOnce(ctx, state)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return cancel
}

func pollOnce(ctx context.Context, state *appState) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	v, err := state.daemon().Current(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Live update failed: %v", err)
		}
		fyne.Do(func() { state.liveLabels["status"].SetText("Gerät nicht erreichbar") })
		return
	}
	fyne.Do(func() { updateLiveLabels(state, v) })
}

func updateLiveLabels(state *appState, v measurement.View) {
	state.liveLabels["status"].SetText(v.Status.String())
	state.liveLabels["soilRaw"].SetText(fmt.Sprintf("Boden ADC-Wert: %d", v.SoilRaw))
	state.liveLabels["irradiance"].SetText(fmt.Sprintf("%.2f W/m² (ADC %d)", v.Irradiance, v.LightRaw))
	state.liveLabels["temperature"].SetText(fmt.Sprintf("%.1f °C", v.Temperature))
	state.liveLabels["humidity"].SetText(fmt.Sprintf("%.1f %%", v.Humidity))
}
