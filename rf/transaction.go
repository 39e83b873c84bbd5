package rf

import (
	"errors"

	"em4x70reader.dev/hal"
)

// ListenWindowRetries bounds how many times the transaction engine
// re-invokes [FindListenWindow] before giving up on a command. Once a
// listen window is found, command emission and reception happen
// exactly once: re-sending a partial command mid-frame can corrupt the
// tag, so a failure past this point is reported, never retried.
const ListenWindowRetries = 5

var (
	// ErrNoListenWindow is returned when no LIW signature was seen
	// within the retry budget.
	ErrNoListenWindow = errors.New("rf: no listen window")
	// ErrShortRead is returned when fewer bits were decoded than the
	// command expected.
	ErrShortRead = errors.New("rf: short read")
	// ErrNoAck is returned when an expected ACK after WRITE or PIN did
	// not arrive (NAK or silence).
	ErrNoAck = errors.New("rf: no ack")
)

func retryFindListenWindow(f hal.Front, sendRM bool) bool {
	for attempt := 0; attempt < ListenWindowRetries; attempt++ {
		if FindListenWindow(f, sendRM) {
			return true
		}
	}
	return false
}

func clockOut(f hal.Front, log *TransactionLog, send []byte) {
	start := f.Now()
	SendBits(f, send)
	log.Transmit = SubLog{StartTick: start, EndTick: f.Now(), Bits: append([]byte(nil), send...)}
}

// SendAndRead runs the send-and-read transaction shape used by ID,
// UM1, UM2, and AUTH: find a listen window, clock out send, then
// collect exactly receiveBits bits of response.
func SendAndRead(f hal.Front, log *TransactionLog, send []byte, receiveBits int) ([]byte, error) {
	log.Reset()
	if !retryFindListenWindow(f, true) {
		return nil, ErrNoListenWindow
	}
	clockOut(f, log, send)

	rxStart := f.Now()
	bits, err := NewDemodulator(f).Decode(receiveBits)
	log.Receive = SubLog{StartTick: rxStart, EndTick: f.Now(), Bits: bits}
	if err != nil {
		return nil, err
	}
	if len(bits) != receiveBits {
		return nil, ErrShortRead
	}
	return bits, nil
}

// SendAndAck runs the send-and-ack transaction shape used by WRITE:
// find a listen window, clock out send, wait [TWA] and check for an
// ACK, then wait the EEPROM program time [TWEE] and check for a second
// ACK. Both must succeed.
func SendAndAck(f hal.Front, log *TransactionLog, send []byte) error {
	log.Reset()
	if !retryFindListenWindow(f, true) {
		return ErrNoListenWindow
	}
	clockOut(f, log, send)

	f.Wait(TWA)
	if !checkAck(f) {
		return ErrNoAck
	}
	f.Wait(TWEE)
	if !checkAck(f) {
		return ErrNoAck
	}
	return nil
}

// SendAndWaitAndRead runs the transaction shape used by PIN: find a
// listen window, clock out send, wait [TWALB] and check for an ACK,
// then wait [TWEE] and receive the tag's re-issued 32-bit ID.
func SendAndWaitAndRead(f hal.Front, log *TransactionLog, send []byte) ([]byte, error) {
	log.Reset()
	if !retryFindListenWindow(f, true) {
		return nil, ErrNoListenWindow
	}
	clockOut(f, log, send)

	f.Wait(TWALB)
	if !checkAck(f) {
		return nil, ErrNoAck
	}
	f.Wait(TWEE)

	const idBits = 32
	rxStart := f.Now()
	bits, err := NewDemodulator(f).Decode(idBits)
	log.Receive = SubLog{StartTick: rxStart, EndTick: f.Now(), Bits: bits}
	if err != nil {
		return nil, err
	}
	if len(bits) != idBits {
		return nil, ErrShortRead
	}
	return bits, nil
}

// checkAck looks for two consecutive falling-frame pulses of ≈2 full
// periods; anything else is a NAK.
func checkAck(f hal.Front) bool {
	ps := newPulseSource(f)
	for i := 0; i < 2; i++ {
		pl, ok := ps.next(hal.FallingEdge)
		if !ok || !within(pl, 2*FullPeriod) {
			return false
		}
	}
	return true
}
