// SPDX-License-Identifier: MIT
package pdm

// Setters change the configuration used by the next Init (pins, clock,
// edge, gain) or Start (output format, range, rate). They return ErrArmed
// while capture is armed or stopped.

// Config returns the current configuration.
func (d *Driver) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Configure replaces the whole configuration.
func (d *Driver) Configure(cfg Config) error {
	return d.update(func(c *Config) { *c = cfg })
}

func (d *Driver) update(fn func(*Config)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st := d.State(); st == Armed || st == Stopped {
		return ErrArmed
	}
	next := d.cfg
	fn(&next)
	if err := next.validate(d.geometry); err != nil {
		return err
	}
	d.cfg = next
	return nil
}

func (d *Driver) SetOutputSize(size OutputSize) error {
	return d.update(func(c *Config) { c.OutputSize = size })
}

func (d *Driver) SetRange(r Range) error {
	return d.update(func(c *Config) { c.Range = r })
}

// SetSampleRate selects the delivered rate; it must divide the hardware
// rate (e.g. 8000 from 16000).
func (d *Driver) SetSampleRate(hz int) error {
	return d.update(func(c *Config) { c.SampleRate = hz })
}

// SetStereo switches to interleaved left/right samples.
func (d *Driver) SetStereo(stereo bool) error {
	return d.update(func(c *Config) { c.Stereo = stereo })
}

// SetPins overrides the clock and data pins. Targets with fixed PDM pins
// ignore them.
func (d *Driver) SetPins(clk, dat Pin) error {
	return d.update(func(c *Config) {
		c.ClockPin = clk
		c.DataPin = dat
	})
}

func (d *Driver) SetClockFrequency(f ClockFrequency) error {
	return d.update(func(c *Config) { c.ClockFrequency = f })
}

func (d *Driver) SetEdge(e Edge) error {
	return d.update(func(c *Config) { c.Edge = e })
}

// SetGain sets the raw gain register values for both channels.
func (d *Driver) SetGain(left, right uint8) error {
	return d.update(func(c *Config) {
		c.GainLeft = left
		c.GainRight = right
	})
}

// SetGainDB sets both channels from a gain in dB, -20 to +20 in 0.5 dB steps.
func (d *Driver) SetGainDB(db float64) error {
	g := GainFromDB(db)
	return d.SetGain(g, g)
}
