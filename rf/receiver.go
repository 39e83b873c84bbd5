package rf

import (
	"errors"

	"em4x70reader.dev/hal"
)

// ErrHeaderNotFound is returned when the tag's 1111_1111_1111_0000
// sync header could not be located within the allotted pulses.
var ErrHeaderNotFound = errors.New("rf: header not found")

// ErrPulseTimeout is returned when a single edge wait exceeded
// [PulseTimeout].
var ErrPulseTimeout = errors.New("rf: pulse timeout")

// pulseSource measures full-cycle pulse lengths on f's sampled signal.
// A signal is high iff the sample exceeds 140, low iff it is below 114
// (127 ± 13); samples in between extend whichever run is in progress.
type pulseSource struct {
	f hal.Front
}

func newPulseSource(f hal.Front) *pulseSource {
	return &pulseSource{f: f}
}

// waitLevel busy-polls until the signal reads as the given level. It
// reports false if [PulseTimeout] elapses first.
func (p *pulseSource) waitLevel(high bool) bool {
	start := p.f.Now()
	for {
		s := p.f.Sample()
		if (high && hal.SignalHigh(s)) || (!high && hal.SignalLow(s)) {
			return true
		}
		if p.f.Now()-start > PulseTimeout {
			return false
		}
	}
}

// next measures one full modulation cycle, in ticks. For
// [hal.RisingEdge] it syncs on the signal going low and times the
// low-high-low cycle; for [hal.FallingEdge] the mirror image.
// Consecutive calls with the same polarity share the boundary edge, so
// back-to-back cycles are measured without losing one to
// resynchronization; switching polarity shifts the measurement frame
// by half a cycle, the phase correction a 1.5-period pulse calls for.
// It returns false if any single edge wait times out.
func (p *pulseSource) next(pol hal.Polarity) (hal.Ticks, bool) {
	syncHigh := pol == hal.FallingEdge
	if !p.waitLevel(syncHigh) {
		return 0, false
	}
	start := p.f.Now()
	if !p.waitLevel(!syncHigh) {
		return 0, false
	}
	if !p.waitLevel(syncHigh) {
		return 0, false
	}
	return p.f.Now() - start, true
}

// Demodulator decodes the tag's Manchester-like response after a
// command has been clocked out.
type Demodulator struct {
	f hal.Front
}

func NewDemodulator(f hal.Front) *Demodulator {
	return &Demodulator{f: f}
}

// Decode waits for the tag response header, then decodes pulses into
// bits until maxBits have been collected or the listen window returns
// (a non-matching pulse). It returns the bits actually decoded, which
// may be fewer than maxBits.
//
// The decoder tracks a polarity that is both the measurement frame and
// the bit value: a full-period pulse yields one bit of the current
// polarity's value (1 on rising, 0 on falling); a 1.5-period pulse
// yields that value twice and flips the polarity; a two-period pulse
// yields the value then its complement with the polarity unchanged.
func (d *Demodulator) Decode(maxBits int) ([]byte, error) {
	ps := newPulseSource(d.f)

	// Skip the noisy beginning of the 12-one preamble.
	d.f.Wait(6 * FullPeriod)

	if err := d.findHeader(ps); err != nil {
		return nil, err
	}

	bits := make([]byte, 0, maxBits)
	// The header's 1.5-period pulse flipped the frame from the rising
	// polarity it was found on.
	polarity := hal.FallingEdge
	for len(bits) < maxBits {
		pl, ok := ps.next(polarity)
		if !ok {
			break
		}
		switch {
		case within(pl, FullPeriod):
			bits = append(bits, bitFor(polarity))
		case within(pl, FullPeriod+HalfPeriod):
			v := bitFor(polarity)
			bits = append(bits, v, v)
			polarity = flip(polarity)
		case within(pl, 2*FullPeriod):
			v := bitFor(polarity)
			bits = append(bits, v, complement(v))
		default:
			// Not a pulse of ours: likely the start of the next LIW.
			return bits, nil
		}
	}
	// A two-bit pulse on the final cell can decode one bit past the
	// requested count; the overflow belongs to the inter-response gap.
	if len(bits) > maxBits {
		bits = bits[:maxBits]
	}
	return bits, nil
}

func bitFor(p hal.Polarity) byte {
	if p == hal.RisingEdge {
		return 1
	}
	return 0
}

func complement(b byte) byte {
	return b ^ 1
}

func flip(p hal.Polarity) hal.Polarity {
	if p == hal.RisingEdge {
		return hal.FallingEdge
	}
	return hal.RisingEdge
}

// findHeader waits for the tag's 1111_1111_1111_0000 sync header: up
// to 16 rising-frame pulses are measured looking for the 1.5-period
// one-to-zero transition, then the remaining three zero bits are
// consumed on the flipped (falling) frame.
func (d *Demodulator) findHeader(ps *pulseSource) error {
	const maxHeaderPulses = 16
	found := false
	for i := 0; i < maxHeaderPulses; i++ {
		pl, ok := ps.next(hal.RisingEdge)
		if !ok {
			return ErrPulseTimeout
		}
		if within(pl, FullPeriod+HalfPeriod) {
			found = true
			break
		}
	}
	if !found {
		return ErrHeaderNotFound
	}
	for i := 0; i < 3; i++ {
		if _, ok := ps.next(hal.FallingEdge); !ok {
			return ErrPulseTimeout
		}
	}
	return nil
}
