// Package periphhal implements em4x70reader.dev/hal.Front and
// em4x70reader.dev/hal.Signals on a Raspberry Pi, using periph.io's
// GPIO and SPI bindings. The modulation line and the abort/button
// lines are plain bcm283x GPIOs; the amplitude sample comes from an
// MCP3008-style SPI ADC wired to the LF front end's peak detector.
package periphhal

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/bcm283x"

	"em4x70reader.dev/hal"
)

// Pins is the GPIO wiring between the reader board and the Pi.
type Pins struct {
	Mod    gpio.PinOut
	Button gpio.PinIn
	Abort  gpio.PinIn
}

// DefaultPins is the wiring used by the reference reader hat.
var DefaultPins = Pins{
	Mod:    bcm283x.GPIO6,
	Button: bcm283x.GPIO19,
	Abort:  bcm283x.GPIO5,
}

// adcChannel is the MCP3008 channel the peak detector is wired to.
const adcChannel = 0

// Adapter drives the RF front end. It satisfies both hal.Front and
// hal.Signals; callers typically pass the same *Adapter for both.
type Adapter struct {
	pins Pins
	spi  spi.Conn

	start time.Time
}

// Open initializes periph.io's host drivers, binds pins, and opens the
// SPI port the ADC is wired to.
func Open(spiPort string, pins Pins) (*Adapter, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periphhal: open: %w", err)
	}
	if err := pins.Mod.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("periphhal: open: mod pin: %w", err)
	}
	if err := pins.Button.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("periphhal: open: button pin: %w", err)
	}
	if err := pins.Abort.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("periphhal: open: abort pin: %w", err)
	}
	port, err := spireg.Open(spiPort)
	if err != nil {
		return nil, fmt.Errorf("periphhal: open: spi: %w", err)
	}
	conn, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("periphhal: open: spi connect: %w", err)
	}
	return &Adapter{pins: pins, spi: conn}, nil
}

// Configure arms the sample clock; the carrier divisor itself is fixed
// in hardware on this reader board, so only the ticks origin resets.
func (a *Adapter) Configure(divisor int) error {
	a.start = time.Now()
	return nil
}

func (a *Adapter) ModHigh() { a.pins.Mod.Out(gpio.High) }
func (a *Adapter) ModLow()  { a.pins.Mod.Out(gpio.Low) }

// Sample reads the MCP3008's 10-bit conversion on adcChannel and
// scales it to the 0-255 range the engine's thresholds are tuned for.
func (a *Adapter) Sample() uint8 {
	tx := []byte{0x01, (0x08 | adcChannel) << 4, 0x00}
	rx := make([]byte, len(tx))
	if err := a.spi.Tx(tx, rx); err != nil {
		return 0
	}
	raw := (uint16(rx[1]&0x03) << 8) | uint16(rx[2])
	return uint8(raw >> 2)
}

// Now returns elapsed ticks since the last Configure, at
// hal.TicksPerMicrosecond ticks per microsecond.
func (a *Adapter) Now() hal.Ticks {
	return hal.ToTicks(time.Since(a.start))
}

// Wait busy-polls Now rather than sleeping: a scheduler sleep can
// oversleep by far more than the microsecond-level tolerance the air
// interface allows.
func (a *Adapter) Wait(n hal.Ticks) {
	deadline := a.Now() + n
	for a.Now() < deadline {
	}
}

// Close releases the modulation line by driving it low.
func (a *Adapter) Close() error {
	a.pins.Mod.Out(gpio.Low)
	return nil
}

// WatchdogKick is a no-op placeholder: this reference adapter has no
// hardware watchdog wired up.
func (a *Adapter) WatchdogKick() {}

// ButtonPressed reports the abort button's current state.
func (a *Adapter) ButtonPressed() bool {
	return a.pins.Button.Read() == gpio.Low
}

// HostAbortPending reports the host-driven abort line's state.
func (a *Adapter) HostAbortPending() bool {
	return a.pins.Abort.Read() == gpio.Low
}
