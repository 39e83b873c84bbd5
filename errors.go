package em4x70

import (
	"errors"

	"em4x70reader.dev/rf"
)

// Status is the coarse result a host-facing reply carries. It is
// derived from the error an operation returns; the engine itself only
// ever returns Go errors.
type Status int

const (
	StatusSuccess Status = iota
	// StatusSoftFail covers every recoverable protocol failure: no
	// signal, no listen window, a missing header, a short read, a
	// missing ACK, or a pulse timeout.
	StatusSoftFail
	// StatusAborted is reported only when the caller's button or host
	// abort signal interrupted a brute-force run.
	StatusAborted
)

// ErrNoSignal is returned when the carrier amplitude never exceeded
// [em4x70reader.dev/hal.HighThreshold] within the presence window.
var ErrNoSignal = errors.New("em4x70: no signal")

// ErrAborted is returned when brute force was stopped by a button
// press or a host abort request.
var ErrAborted = errors.New("em4x70: aborted")

// ErrKeyNotFound is returned by BruteForce when the whole key space
// from start to 0xFFFF was exhausted without a matching g(RN).
var ErrKeyNotFound = errors.New("em4x70: brute force: key not found")

// StatusOf classifies err as a host-facing status. A nil error is
// StatusSuccess.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrAborted):
		return StatusAborted
	default:
		return StatusSoftFail
	}
}

// The "protocol failure" half of SOFT_FAIL comes from package rf's
// sentinel errors: rf.ErrNoListenWindow, rf.ErrHeaderNotFound,
// rf.ErrShortRead, rf.ErrNoAck, and rf.ErrPulseTimeout.
var _ = []error{
	rf.ErrNoListenWindow,
	rf.ErrHeaderNotFound,
	rf.ErrShortRead,
	rf.ErrNoAck,
	rf.ErrPulseTimeout,
}
