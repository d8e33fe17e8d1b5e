//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"strconv"
	"time"

	"github.com/chewxy/math32"
	"tinygo.org/x/drivers/dht"
)

var (
	analogPins = [...]machine.Pin{PIN_SOIL, PIN_LIGHT}
	adcs       [len(analogPins)]machine.ADC
	uart       = machine.UART0

	climate     dht.Device
	lastClimate time.Time
	temperature = math32.NaN()
	humidity    = math32.NaN()

	// Serial buffer for reading lines
	serialBuffer [8]byte
	serialPos    int
)

func main() {
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	for i, pin := range analogPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
		adcs[i] = machine.ADC{Pin: pin}
		adcs[i].Configure(adcConfig)
	}

	PIN_DHT.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	climate = dht.New(PIN_DHT, dht.DHT11)

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	for {
		processSerial()
		time.Sleep(time.Millisecond)
	}
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 0 {
				handleRequest(serialBuffer[:serialPos])
			}
			serialPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			// Overlong line, drop it
			serialPos = 0
		}
	}
}

// handleRequest answers A<n> with A<n>,<raw> and C with C,<temp>,<humidity>.
// Unknown requests are ignored.
func handleRequest(req []byte) {
	switch req[0] {
	case 'A':
		ch, err := strconv.Atoi(string(req[1:]))
		if err != nil || ch < 0 || ch >= len(adcs) {
			return
		}
		print("A")
		print(ch)
		print(",")
		print(adcs[ch].Get() >> ADC_SHIFT)
		print("\n")

	case 'C':
		if len(req) != 1 {
			return
		}
		readClimate()
		print("C,")
		printFloat(temperature)
		print(",")
		printFloat(humidity)
		print("\n")
	}
}

// readClimate refreshes the DHT sample, at most once per DHT_MIN_INTERVAL_MS.
// A failed read reports NaN until the next successful one.
func readClimate() {
	now := time.Now()
	if !lastClimate.IsZero() && now.Sub(lastClimate) < DHT_MIN_INTERVAL_MS*time.Millisecond {
		return
	}
	lastClimate = now

	t, err := climate.TemperatureFloat(dht.C)
	if err != nil {
		temperature, humidity = math32.NaN(), math32.NaN()
		return
	}
	h, err := climate.HumidityFloat()
	if err != nil {
		temperature, humidity = math32.NaN(), math32.NaN()
		return
	}
	temperature, humidity = t, h
}

// printFloat prints v with one decimal, or "nan".
func printFloat(v float32) {
	if math32.IsNaN(v) {
		print("nan")
		return
	}
	tenths := int32(math32.Round(v * 10))
	if tenths < 0 {
		print("-")
		tenths = -tenths
	}
	print(tenths / 10)
	print(".")
	print(tenths % 10)
}
