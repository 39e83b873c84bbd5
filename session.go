// Package em4x70 is the reader-side protocol engine for EM4x70/EM4170/
// V4070 125 kHz RFID transponders: it drives a [hal.Front] to identify,
// read, authenticate, unlock, and write a tag, and to brute-force a
// partial key. Package rf owns the bit-exact air interface and package
// proto owns command encoding; this package composes them into the
// operations a host dispatcher calls.
package em4x70

import (
	"time"

	"em4x70reader.dev/hal"
	"em4x70reader.dev/rf"
)

// fieldSettle is how long the RF field is allowed to stabilize after
// configuration before the presence check begins.
const fieldSettle = 50 * time.Millisecond

// presencePeriods bounds how long Session waits, in tag periods, for
// the carrier amplitude to read as a high signal before giving up.
const presencePeriods = 32

// Session is the single mutable context a process holds for one tag at
// a time: the hardware front end and signal lines it drives, the
// caller-selected parity mode, the tag image discovered so far, and
// the diagnostic log of the most recent transaction.
type Session struct {
	Front   hal.Front
	Signals hal.Signals
	Parity  bool

	Image TagImage
	Log   rf.TransactionLog

	hasID bool

	// authFn runs one AUTH transaction. Left nil it defaults to the
	// real air-interface exchange; brute-force tests substitute an
	// arithmetic check so a 2^16 key search needs no scripted
	// waveforms.
	authFn func(rnd [7]byte, frnd [4]byte) ([3]byte, error)
}

// NewSession returns a Session bound to front and signals, using the
// given parity mode for every command this session builds.
func NewSession(front hal.Front, signals hal.Signals, parity bool) *Session {
	return &Session{Front: front, Signals: signals, Parity: parity}
}

// begin resets the tag image, configures the carrier, waits for it to
// settle, and confirms a tag is present by finding a listen window
// without sending RM. It is the first step of every top-level
// operation.
func (s *Session) begin() error {
	s.Image = TagImage{}
	s.hasID = false

	if err := s.Front.Configure(rf.CarrierDivisor); err != nil {
		return err
	}
	s.Front.Wait(hal.ToTicks(fieldSettle))
	s.Signals.WatchdogKick()

	if !s.waitForSignal() {
		return ErrNoSignal
	}
	if !rf.FindListenWindow(s.Front, false) {
		return rf.ErrNoListenWindow
	}
	return nil
}

func (s *Session) waitForSignal() bool {
	deadline := s.Front.Now() + hal.Ticks(presencePeriods*rf.FullPeriod)
	for s.Front.Now() < deadline {
		if hal.SignalHigh(s.Front.Sample()) {
			return true
		}
	}
	return false
}

// run wraps op with the begin/execute/teardown sequence common to
// every top-level operation: the field is always torn down, whether
// op succeeds, fails, or begin itself failed after partially
// configuring the front end.
func (s *Session) run(op func() error) error {
	if err := s.begin(); err != nil {
		s.Front.Close()
		return err
	}
	defer s.Front.Close()
	return op()
}
