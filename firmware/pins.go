//go:build tinygo

package main

import "machine"

const (
	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)
	ADC_SHIFT        = 16 - ADC_RESOLUTION

	// Analog channels, indexed by the number in an A<n> request
	PIN_SOIL  = machine.A0
	PIN_LIGHT = machine.A1

	// DHT11 data line, needs a pull-up
	PIN_DHT = machine.D7

	// DHT11 cannot be sampled more often than once per second
	DHT_MIN_INTERVAL_MS = 1000

	// Serial configuration
	// Longest reply: "C,-40.0,100.0\n" = 14 bytes.
	// One exchange per channel every two seconds is far below any baud rate.
	UART_BAUD_RATE = 115200
)
