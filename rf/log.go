package rf

import (
	"fmt"
	"strings"

	"em4x70reader.dev/hal"
)

// SubLog records one direction (transmit or receive) of a single
// transaction, for debugging.
type SubLog struct {
	StartTick hal.Ticks
	EndTick   hal.Ticks
	Bits      []byte
}

// TransactionLog is the process-wide diagnostic log, reset at the
// start of every transaction. It is consulted only by [TransactionLog.Dump].
type TransactionLog struct {
	Transmit SubLog
	Receive  SubLog
}

// Reset clears the log for a new transaction.
func (l *TransactionLog) Reset() {
	*l = TransactionLog{}
}

// Dump renders the logged bits as a compact human-readable string,
// e.g. "tx[4]=0011 rx[32]=...".
func (l *TransactionLog) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tx[%d]=%s", len(l.Transmit.Bits), bitsString(l.Transmit.Bits))
	fmt.Fprintf(&b, " rx[%d]=%s", len(l.Receive.Bits), bitsString(l.Receive.Bits))
	return b.String()
}

func bitsString(bits []byte) string {
	var b strings.Builder
	for _, bit := range bits {
		if bit != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
