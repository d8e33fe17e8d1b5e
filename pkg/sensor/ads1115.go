package sensor

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// ADS1115 registers and config bits.
const (
	regConversion = 0x00
	regConfig     = 0x01

	configOsSingle    uint16 = 0x8000
	configModeSingle  uint16 = 0x0100
	configDataRate860 uint16 = 0x00E0
	configQueueNone   uint16 = 0x0003

	// conversion poll limits (~1.2ms at 860SPS)
	convTimeout  = 50 * time.Millisecond
	convPollWait = 200 * time.Microsecond

	// DefaultADS1115Address is the address with ADDR tied to GND.
	DefaultADS1115Address = 0x48
	// DefaultNativeMax is the native range the calibration expects (12-bit).
	DefaultNativeMax = 4095
)

// gainBits maps the configured full-scale gain label to PGA config bits.
var gainBits = map[string]uint16{
	"2/3": 0x0000, // +/- 6.144V
	"1":   0x0200, // +/- 4.096V
	"2":   0x0400, // +/- 2.048V
	"4":   0x0600, // +/- 1.024V
	"8":   0x0800, // +/- 0.512V
	"16":  0x0A00, // +/- 0.256V
}

// muxForChannel returns mux bits for single-ended AINx vs GND.
func muxForChannel(ch Channel) (uint16, bool) {
	if ch < 0 || ch > 3 {
		return 0, false
	}
	return 0x4000 + uint16(ch)<<12, true
}

// ADS1115 samples analog channels from an ADS1115 on an I2C bus. Conversions
// are rescaled to [0, nativeMax] so the same calibration applies as for the
// microcontroller ADC. It has no climate sensor.
type ADS1115 struct {
	busName   string
	addr      uint16
	gain      uint16
	nativeMax int

	mu        sync.Mutex
	bus       i2c.BusCloser
	dev       conn.Conn
	connected bool
}

// NewADS1115 creates a driver for the chip at addr on the named bus ("" = first bus).
func NewADS1115(busName string, addr uint16, gain string, nativeMax int) (*ADS1115, error) {
	if addr == 0 {
		addr = DefaultADS1115Address
	}
	if gain == "" {
		gain = "1"
	}
	bits, ok := gainBits[gain]
	if !ok {
		return nil, fmt.Errorf("ads1115: unsupported gain %q", gain)
	}
	if nativeMax <= 0 {
		nativeMax = DefaultNativeMax
	}
	return &ADS1115{busName: busName, addr: addr, gain: bits, nativeMax: nativeMax}, nil
}

// Connect initializes the host drivers and opens the I2C bus.
func (d *ADS1115) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("ads1115: host init: %w", err)
	}
	bus, err := i2creg.Open(d.busName)
	if err != nil {
		return fmt.Errorf("ads1115: open i2c bus %q: %w", d.busName, err)
	}

	d.bus = bus
	d.dev = &i2c.Dev{Bus: bus, Addr: d.addr}
	d.connected = true
	return nil
}

// Close releases the bus.
func (d *ADS1115) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	d.connected = false
	d.dev = nil
	if d.bus != nil {
		err := d.bus.Close()
		d.bus = nil
		return err
	}
	return nil
}

// IsConnected reports whether the bus is open.
func (d *ADS1115) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Analog performs one single-shot conversion on AINch.
func (d *ADS1115) Analog(ctx context.Context, ch Channel) (int, error) {
	mux, ok := muxForChannel(ch)
	if !ok {
		return 0, fmt.Errorf("ads1115: invalid channel %d (must be 0..3)", ch)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return 0, ErrNotConnected
	}

	raw, err := d.convert(ctx, mux)
	if err != nil {
		return 0, err
	}
	return d.scale(raw), nil
}

// Climate is not available on the ADC.
func (d *ADS1115) Climate(context.Context) (Climate, error) {
	return Climate{}, fmt.Errorf("ads1115: climate: %w", ErrNotSupported)
}

func (d *ADS1115) convert(ctx context.Context, mux uint16) (int16, error) {
	config := configOsSingle | configModeSingle | configQueueNone | configDataRate860 | mux | d.gain

	if err := d.dev.Tx([]byte{regConfig, byte(config >> 8), byte(config)}, nil); err != nil {
		return 0, fmt.Errorf("ads1115: write config: %w", err)
	}

	deadline := time.Now().Add(convTimeout)
	buf := make([]byte, 2)
	for {
		if err := d.dev.Tx([]byte{regConfig}, buf); err != nil {
			return 0, fmt.Errorf("ads1115: read config: %w", err)
		}
		if binary.BigEndian.Uint16(buf)&configOsSingle != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("ads1115: conversion timeout after %s", convTimeout)
		}
		if err := sleep(ctx, convPollWait); err != nil {
			return 0, err
		}
	}

	if err := d.dev.Tx([]byte{regConversion}, buf); err != nil {
		return 0, fmt.Errorf("ads1115: read conversion: %w", err)
	}
	return int16(binary.BigEndian.Uint16(buf)), nil
}

// scale maps a signed conversion to [0, nativeMax]. Single-ended inputs never
// go meaningfully negative; noise below ground reads as 0.
func (d *ADS1115) scale(raw int16) int {
	if raw <= 0 {
		return 0
	}
	return int(raw) * d.nativeMax / 32767
}
