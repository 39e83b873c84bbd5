package rf

import (
	"errors"
	"testing"

	"em4x70reader.dev/hal"
)

// scriptedFront is a fake hal.Front whose Sample reads back a
// pre-recorded level timeline: a sequence of run lengths whose levels
// alternate from startHigh, after which the level flips once more and
// holds. Now is a free-running tick counter; Wait advances it directly
// instead of spinning, since tests have no real clock to race against.
type scriptedFront struct {
	tick      hal.Ticks
	startHigh bool
	runs      []hal.Ticks

	modEvents []modEvent
}

type modEvent struct {
	tick hal.Ticks
	high bool
}

func newScriptedFront(startHigh bool, runs []hal.Ticks) *scriptedFront {
	return &scriptedFront{startHigh: startHigh, runs: runs}
}

// hp builds a run list from half-period multiples, the natural unit of
// the tag's pulse lengths.
func hp(units ...int) []hal.Ticks {
	runs := make([]hal.Ticks, len(units))
	for i, u := range units {
		runs[i] = hal.Ticks(u) * HalfPeriod
	}
	return runs
}

func (f *scriptedFront) levelAt(tick hal.Ticks) bool {
	level := f.startHigh
	var end hal.Ticks
	for _, r := range f.runs {
		end += r
		if tick < end {
			return level
		}
		level = !level
	}
	return level
}

func (f *scriptedFront) Configure(divisor int) error { return nil }
func (f *scriptedFront) ModHigh()                    { f.modEvents = append(f.modEvents, modEvent{f.tick, true}) }
func (f *scriptedFront) ModLow()                     { f.modEvents = append(f.modEvents, modEvent{f.tick, false}) }
func (f *scriptedFront) Sample() uint8 {
	if f.levelAt(f.tick) {
		return 255
	}
	return 0
}

// Now returns the current tick then advances it by one: every
// busy-wait loop in this package (SendBit's waitUntil, waitLevel's
// timeout check) polls Now in a tight loop with no other way to make
// simulated time pass.
func (f *scriptedFront) Now() hal.Ticks {
	t := f.tick
	f.tick++
	return t
}
func (f *scriptedFront) Wait(n hal.Ticks) {
	deadline := f.tick + n
	for f.tick < deadline {
		f.tick++
	}
}
func (f *scriptedFront) Close() error { return nil }

// flatFront holds a single level forever: no edges, only timeouts.
func flatFront() *scriptedFront {
	return newScriptedFront(false, nil)
}

// jitter bounds the few-tick slop introduced by Now()'s
// read-then-advance semantics accumulating across a handful of calls;
// it is far smaller than Tolerance, so it never risks masking a real
// timing defect in the assertions below.
const jitter = 4

func TestSendBitTiming(t *testing.T) {
	f := flatFront()

	// Bit 0: ModLow (notch) at ~0, ModHigh at ~BitModTime, ModLow again
	// at ~HalfPeriod, for the rest of the period.
	SendBit(f, 0)
	if len(f.modEvents) != 3 {
		t.Fatalf("bit 0: got %d mod events, want 3: %+v", len(f.modEvents), f.modEvents)
	}
	if f.modEvents[0].high {
		t.Errorf("bit 0: first event = %+v, want ModLow first", f.modEvents[0])
	}
	if !f.modEvents[1].high || f.modEvents[1].tick < BitModTime || f.modEvents[1].tick > BitModTime+jitter {
		t.Errorf("bit 0: second event = %+v, want ModHigh near tick %d", f.modEvents[1], BitModTime)
	}
	if f.modEvents[2].high || f.modEvents[2].tick < HalfPeriod || f.modEvents[2].tick > HalfPeriod+jitter {
		t.Errorf("bit 0: third event = %+v, want ModLow near tick %d", f.modEvents[2], HalfPeriod)
	}
	if f.tick < FullPeriod || f.tick > FullPeriod+jitter {
		t.Errorf("bit 0: elapsed = %d, want ~%d", f.tick, FullPeriod)
	}

	// Bit 1: a single ModHigh, held for the whole period.
	f2 := flatFront()
	SendBit(f2, 1)
	if len(f2.modEvents) != 1 || !f2.modEvents[0].high {
		t.Errorf("bit 1: mod events = %+v, want single ModHigh", f2.modEvents)
	}
	if f2.tick < FullPeriod || f2.tick > FullPeriod+jitter {
		t.Errorf("bit 1: elapsed = %d, want ~%d", f2.tick, FullPeriod)
	}
}

// liwRuns is a level timeline whose rising-frame cycles measure 2.5
// and 2.5 periods and whose falling-frame cycles then measure 3 and 2
// periods — the LIW signature matchLIW looks for. Starting high, the
// matcher's first rising-frame measurement syncs on the fall at 2 half
// periods.
func liwRuns() []hal.Ticks {
	return hp(2, 2, 3, 3, 2, 2, 3, 3, 2, 2)
}

func TestFindListenWindowSuccessNoRM(t *testing.T) {
	f := newScriptedFront(true, liwRuns())
	if !FindListenWindow(f, false) {
		t.Fatal("expected listen window to be found")
	}
	if len(f.modEvents) != 0 {
		t.Errorf("sendRM=false: got %d mod events, want 0", len(f.modEvents))
	}
}

func TestFindListenWindowSendsRM(t *testing.T) {
	f := newScriptedFront(true, liwRuns())
	if !FindListenWindow(f, true) {
		t.Fatal("expected listen window to be found")
	}
	// RM is two zero bits: three mod events each (low, high, low).
	if len(f.modEvents) != 6 {
		t.Fatalf("got %d mod events for RM, want 6: %+v", len(f.modEvents), f.modEvents)
	}
	for i, want := range []bool{false, true, false, false, true, false} {
		if f.modEvents[i].high != want {
			t.Errorf("mod event %d high=%v, want %v", i, f.modEvents[i].high, want)
		}
	}
}

func TestFindListenWindowRetryBudget(t *testing.T) {
	// A flat, never-transitioning signal never matches the LIW shape:
	// every attempt's first pulse measurement times out, so
	// FindListenWindow must still terminate (not hang) after
	// MaxListenWindowAttempts attempts.
	if FindListenWindow(flatFront(), false) {
		t.Fatal("expected no listen window on a flat signal")
	}
}

func TestMatchLIWRejectsWrongShape(t *testing.T) {
	// The first rising-frame cycle measures a single period, nowhere
	// near the 2.5-period signature; every later attempt times out on
	// the trailing flat level.
	f := newScriptedFront(true, hp(2, 1, 1))
	if FindListenWindow(f, false) {
		t.Fatal("expected no match for a malformed signature")
	}
}

// headerRuns is the lead-in Decode must get through before any data
// bit: a high plateau covering the 6-period settling wait, the
// 1.5-period one-to-zero transition the rising-frame header search
// accepts, and the three remaining zero bits of the
// 1111_1111_1111_0000 sync header consumed on the falling frame.
// Data runs appended after it are measured on the falling frame,
// starting at the rise the last zero bit ends on.
func headerRuns() []hal.Ticks {
	return hp(13, 1, 2, 1, 1, 1, 1, 1, 1, 1)
}

// TestDemodulatorDecodeInPhaseRepeatsCurrentValue exercises the
// full-period branch: each cycle yields one bit equal to the decoder's
// current frame value, which the header leaves at 0 and which plain
// full-period cycles never change.
func TestDemodulatorDecodeInPhaseRepeatsCurrentValue(t *testing.T) {
	runs := append(headerRuns(), hp(1, 1, 1, 1, 1, 1)...)
	f := newScriptedFront(true, runs)
	got, err := NewDemodulator(f).Decode(3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte{0, 0, 0}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestDemodulatorDecodeOneAndHalfPeriodFlips exercises the 1.5-period
// branch: one cycle yields two bits of the current value, then the
// frame flips, so the following full-period cycle decodes as the
// opposite value.
func TestDemodulatorDecodeOneAndHalfPeriodFlips(t *testing.T) {
	runs := append(headerRuns(), hp(2, 1, 1, 1, 1)...)
	f := newScriptedFront(true, runs)
	got, err := NewDemodulator(f).Decode(3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte{0, 0, 1}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestDemodulatorDecodeTwoPeriodHoldsPhase exercises the two-period
// branch: one cycle yields the current value then its complement,
// leaving the frame unchanged for what follows.
func TestDemodulatorDecodeTwoPeriodHoldsPhase(t *testing.T) {
	runs := append(headerRuns(), hp(2, 2, 1, 1)...)
	f := newScriptedFront(true, runs)
	got, err := NewDemodulator(f).Decode(3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte{0, 1, 0}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestDemodulatorDecodeStopsOnUnmatchedPulse checks that an
// unrecognized cycle length ends decoding early, returning whatever
// bits were collected rather than an error (it likely signals the
// start of the next listen window).
func TestDemodulatorDecodeStopsOnUnmatchedPulse(t *testing.T) {
	runs := append(headerRuns(), hp(1, 1, 5, 5)...)
	f := newScriptedFront(true, runs)
	got, err := NewDemodulator(f).Decode(8)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("decoded %d bits, want 1 (should stop at the unmatched pulse)", len(got))
	}
}

func TestDemodulatorDecodeNoHeader(t *testing.T) {
	// Nothing but single-period cycles: the header search exhausts its
	// 16 measurements without seeing a 1.5-period transition.
	runs := []hal.Ticks{13 * HalfPeriod}
	for i := 0; i < 34; i++ {
		runs = append(runs, HalfPeriod)
	}
	f := newScriptedFront(true, runs)
	if _, err := NewDemodulator(f).Decode(32); !errors.Is(err, ErrHeaderNotFound) {
		t.Fatalf("Decode error = %v, want %v", err, ErrHeaderNotFound)
	}
}

// ackRuns is a level timeline whose two falling-frame cycles each
// measure 2 full periods: the ACK signature.
func ackRuns() []hal.Ticks {
	return hp(1, 2, 2, 2, 2)
}

func TestCheckAckAccepts(t *testing.T) {
	f := newScriptedFront(false, ackRuns())
	if !checkAck(f) {
		t.Fatal("expected checkAck to accept a valid ACK signature")
	}
}

func TestCheckAckRejectsWrongLength(t *testing.T) {
	// First falling-frame cycle measures 1.5 periods, not 2.
	f := newScriptedFront(false, hp(1, 2, 1))
	if checkAck(f) {
		t.Fatal("expected checkAck to reject a 1.5-period first pulse")
	}
}

func TestCheckAckRejectsSilence(t *testing.T) {
	if checkAck(flatFront()) {
		t.Fatal("expected checkAck to reject a flat signal")
	}
}

// TestSendAndAckReportsNoListenWindow exercises the transaction-shape
// wrapper's own error path: with no LIW signature ever present,
// SendAndAck must exhaust its retry budget and report
// ErrNoListenWindow without ever reaching the ACK check.
func TestSendAndAckReportsNoListenWindow(t *testing.T) {
	var log TransactionLog
	err := SendAndAck(flatFront(), &log, []byte{0, 0, 1, 1})
	if err != ErrNoListenWindow {
		t.Fatalf("SendAndAck = %v, want %v", err, ErrNoListenWindow)
	}
}
