package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"

	"github.com/itohio/gardenmeter/pkg/client"
	"github.com/itohio/gardenmeter/pkg/sample"
)

const rangeFormat = "2006-01-02 15:04:05"

// handleDownload fetches the log from the daemon in the background.
func handleDownload(state *appState) {
	state.statusText.SetText("Lade Daten herunter...")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := state.daemon().DownloadFile(ctx, state.dataFile)
		fyne.Do(func() {
			if err != nil {
				state.statusText.SetText("")
				if errors.Is(err, client.ErrNoLog) {
					dialog.ShowInformation("Download", "Auf dem Gerät ist noch keine Datendatei vorhanden.", state.window)
					return
				}
				dialog.ShowError(fmt.Errorf("download failed: %w", err), state.window)
				return
			}
			state.statusText.SetText(fmt.Sprintf("%d Bytes in %s gespeichert", n, state.dataFile))
			state.loadFile()
		})
	}()
}

// loadFile reads the local copy of the log and replots it.
func (state *appState) loadFile() {
	ms, err := client.ReadFile(state.dataFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			state.statusText.SetText("Keine lokalen Daten. Bitte zuerst herunterladen.")
			return
		}
		if len(ms) == 0 {
			dialog.ShowError(fmt.Errorf("failed to read %s: %w", state.dataFile, err), state.window)
			return
		}
		// Plot what could be decoded up to the broken row.
		state.statusText.SetText(fmt.Sprintf("Datei unvollständig: %v", err))
	}

	state.series = sample.FromMeasurements(ms, state.cfg.Calibration, state.loc)
	if state.series.Len() == 0 {
		state.statusText.SetText("Die Datendatei enthält keine gültigen Zeitstempel.")
	} else if err == nil {
		state.statusText.SetText(fmt.Sprintf("%d Messungen geladen, %d ohne Zeitstempel", state.series.Len(), state.series.Skipped))
	}

	state.rangeStart.SetValue(0)
	state.rangeEnd.SetValue(1000)
	state.applyRange()
}

// applyRange plots the part of the series selected by the sliders.
func (state *appState) applyRange() {
	first, last, ok := state.series.Bounds()
	if !ok {
		state.rangeLabel.SetText("Zeitraum: --")
		state.plot(sample.Series{})
		return
	}

	span := last.Sub(first)
	start := first.Add(time.Duration(float64(span) * state.rangeStart.Value / state.rangeStart.Max))
	end := first.Add(time.Duration(float64(span) * state.rangeEnd.Value / state.rangeEnd.Max))

	state.rangeLabel.SetText(fmt.Sprintf("Zeitraum: %s bis %s", start.Format(rangeFormat), end.Format(rangeFormat)))
	state.plot(state.series.Window(start, end))
}

func (state *appState) plot(s sample.Series) {
	state.soil.UpdateData(s.Soil)
	state.light.UpdateData(s.Irradiance)
	state.temp.UpdateData(s.Temperature)
	state.humidity.UpdateData(s.Humidity)
}
