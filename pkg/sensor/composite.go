package sensor

import (
	"context"
	"errors"
)

// Composite takes analog samples from one device and climate samples from another.
type Composite struct {
	analog  Device
	climate Device
}

// NewComposite combines two devices. When both are the same device it is
// connected and closed once.
func NewComposite(analog, climate Device) *Composite {
	return &Composite{analog: analog, climate: climate}
}

func (c *Composite) devices() []Device {
	if c.analog == c.climate {
		return []Device{c.analog}
	}
	return []Device{c.analog, c.climate}
}

// Connect connects both devices, closing the first if the second fails.
func (c *Composite) Connect() error {
	var connected []Device
	for _, d := range c.devices() {
		if err := d.Connect(); err != nil {
			for _, cd := range connected {
				cd.Close()
			}
			return err
		}
		connected = append(connected, d)
	}
	return nil
}

// Close closes both devices.
func (c *Composite) Close() error {
	var errs []error
	for _, d := range c.devices() {
		errs = append(errs, d.Close())
	}
	return errors.Join(errs...)
}

// IsConnected reports whether both devices are connected.
func (c *Composite) IsConnected() bool {
	for _, d := range c.devices() {
		if !d.IsConnected() {
			return false
		}
	}
	return true
}

// Analog samples the analog device.
func (c *Composite) Analog(ctx context.Context, ch Channel) (int, error) {
	return c.analog.Analog(ctx, ch)
}

// Climate samples the climate device.
func (c *Composite) Climate(ctx context.Context) (Climate, error) {
	return c.climate.Climate(ctx)
}
