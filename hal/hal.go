// Package hal declares the narrow hardware-abstraction interfaces the
// EM4x70 protocol engine drives the RF front end through. Nothing in
// this package touches a register or a pin; concrete implementations
// live outside the engine (see [em4x70reader.dev/hal/periphhal] for a
// Raspberry Pi reference adapter).
package hal

import "time"

// Ticks is a free-running, monotonically increasing hardware tick
// count. The engine never reads a wall clock: every wait is expressed
// in ticks because only the tick source is synchronized with the tag's
// carrier.
type Ticks uint32

// Polarity selects which edge direction a pulse measurement is framed
// on: a rising-frame pulse is timed from the signal going low, through
// high, back to low; a falling-frame pulse is the mirror image, timed
// from the signal going high, through low, back to high.
type Polarity int

const (
	RisingEdge Polarity = iota
	FallingEdge
)

// Front is the radio front end consumed by the engine: carrier
// configuration, modulation, and amplitude sampling. An implementation
// must not block or sleep — every wait happens in the engine's own
// busy-poll loops against [Front.Now].
type Front interface {
	// Configure sets the carrier divisor (95 for 125 kHz) and arms the
	// ADC sample register. Called once per top-level operation.
	Configure(divisor int) error

	// ModHigh and ModLow drive the modulation pin. Must return as fast
	// as possible: they are called from the bit-modulator's inner
	// timing loop.
	ModHigh()
	ModLow()

	// Sample returns the latest peak-detected ADC sample on the LF
	// path, 0-255.
	Sample() uint8

	// Now returns the current tick count. Ticks run at
	// [TicksPerMicrosecond] per microsecond.
	Now() Ticks

	// Wait busy-polls until at least n ticks have elapsed. It must be
	// implemented as a spin loop against Now, never a sleep: any
	// preemption point here would desynchronize the reader from the
	// tag's carrier.
	Wait(n Ticks)

	// Close tears down the field (stops modulation, releases the
	// sample register) at the end of a top-level operation.
	Close() error
}

// HighThreshold and LowThreshold are the amplitude thresholds that
// discriminate a high/low signal on the peak-detected LF path
// (127 ± 13).
const (
	HighThreshold = 127 + 13
	LowThreshold  = 127 - 13
)

// SignalHigh reports whether sample reads as a high signal.
func SignalHigh(sample uint8) bool { return sample > HighThreshold }

// SignalLow reports whether sample reads as a low signal.
func SignalLow(sample uint8) bool { return sample < LowThreshold }

// Signals is the small set of asynchronous inputs the engine consults
// at its two permitted suspension points: top-level setup, and once
// per key in brute force.
type Signals interface {
	// WatchdogKick resets the hardware watchdog. Called at the start
	// of every top-level operation and, in brute force, every
	// iteration.
	WatchdogKick()

	// ButtonPressed reports whether the abort button is currently held.
	ButtonPressed() bool

	// HostAbortPending reports whether the host has asked the running
	// operation to stop.
	HostAbortPending() bool
}

// TicksPerMicrosecond is the tick rate of [Front.Now]: 1.5 ticks/µs,
// matching the reader's free-running counter.
const TicksPerMicrosecond = 1.5

// ToTicks converts a [time.Duration] to a whole tick count, rounding
// down,
// for callers (tests, simulators) that think in wall-clock terms.
func ToTicks(d time.Duration) Ticks {
	us := float64(d) / float64(time.Microsecond)
	return Ticks(us * TicksPerMicrosecond)
}
