package rf

import "em4x70reader.dev/hal"

// MaxListenWindowAttempts bounds how many LIW signatures
// [FindListenWindow] will scan for before giving up.
const MaxListenWindowAttempts = 50

// FindListenWindow scans the carrier for the tag's idle LIW signature:
// two rising pulses of 2.5 periods, then two falling pulses of 3 and 2
// periods. If sendRM is true and the signature is found, the reader
// waits [RMWaitTicks] and clocks out the two-bit RM(00) prefix that
// arms the tag for the command that follows. It reports whether a
// listen window was found within [MaxListenWindowAttempts] attempts.
func FindListenWindow(f hal.Front, sendRM bool) bool {
	ps := newPulseSource(f)
	for attempt := 0; attempt < MaxListenWindowAttempts; attempt++ {
		if matchLIW(ps) {
			if sendRM {
				f.Wait(RMWaitTicks)
				SendBit(f, 0)
				SendBit(f, 0)
			}
			return true
		}
	}
	return false
}

// matchLIW looks for the LIW's four-pulse width pattern: two
// rising-frame cycles of 2.5 periods, then falling-frame cycles of 3
// and 2 periods.
func matchLIW(ps *pulseSource) bool {
	if pl, ok := ps.next(hal.RisingEdge); !ok || !within(pl, 5*FullPeriod/2) {
		return false
	}
	if pl, ok := ps.next(hal.RisingEdge); !ok || !within(pl, 5*FullPeriod/2) {
		return false
	}
	if pl, ok := ps.next(hal.FallingEdge); !ok || !within(pl, 3*FullPeriod) {
		return false
	}
	if pl, ok := ps.next(hal.FallingEdge); !ok || !within(pl, 2*FullPeriod) {
		return false
	}
	return true
}
