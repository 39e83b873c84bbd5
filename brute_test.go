package em4x70

import (
	"testing"

	"em4x70reader.dev/proto"
)

// TestApplyKeyGuessMatchesReflectedAdd checks the byte-wise carry
// chain against a reference model that does the whole addition in one
// uint64: the 7-byte nonce read as a little-endian 56-bit integer,
// plus the reflected addend shifted to the byte pair addr selects,
// truncated back to 56 bits (a carry out of the top byte is dropped).
func TestApplyKeyGuessMatchesReflectedAdd(t *testing.T) {
	rnds := [][7]byte{
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		{0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF, 0x00},
	}
	for _, rnd := range rnds {
		for _, addr := range []uint8{7, 8, 9} {
			for _, k := range []uint16{0x0000, 0x1234, 0xFFFF, 0x00FF, 0x8000} {
				got := applyKeyGuess(rnd, k, addr)

				var value uint64
				for i, b := range rnd {
					value |= uint64(b) << (8 * i)
				}
				idx := int(9-addr) * 2
				sum := (value + uint64(proto.Reflect16(k))<<(8*idx)) & (1<<56 - 1)
				var want [7]byte
				for i := range want {
					want[i] = byte(sum >> (8 * i))
				}

				if got != want {
					t.Fatalf("rnd=%x addr=%d k=%#04x: applyKeyGuess = %x, want %x", rnd, addr, k, got, want)
				}
			}
		}
	}
}

// TestApplyKeyGuessAddr9NoCarry checks the simplest case: adding
// reflect16(0x1234) into an all-zero rnd at addr 9, where no carry can
// leave the first byte pair.
func TestApplyKeyGuessAddr9NoCarry(t *testing.T) {
	var rnd [7]byte // all zero: no carry possible out of the low two bytes
	got := applyKeyGuess(rnd, 0x1234, 9)

	reflected := proto.Reflect16(0x1234)
	want := [7]byte{byte(reflected), byte(reflected >> 8), 0, 0, 0, 0, 0}
	if got != want {
		t.Fatalf("applyKeyGuess = %x, want %x", got, want)
	}
}

func TestApplyKeyGuessCarriesThroughTail(t *testing.T) {
	rnd := [7]byte{0xFF, 0xFF, 0x01, 0x02, 0x03, 0x04, 0x05}
	// reflect16(0x0000) is 0: the addend is zero, so a carry can only
	// come from rnd's own bytes, which there isn't one of here. Use a
	// k whose reflected low byte is non-zero against a 0xFF low byte to
	// force a carry out of idx into idx+1, and again into the tail.
	got := applyKeyGuess(rnd, 0x8000, 9) // reflect16(0x8000) = 0x0001
	if got[0] != 0x00 {
		t.Fatalf("byte 0 = %#x, want 0x00 (0xFF+0x01 wraps)", got[0])
	}
	if got[1] != 0x00 {
		t.Fatalf("byte 1 = %#x, want 0x00 (0xFF+carry wraps again)", got[1])
	}
	if got[2] != 0x02 {
		t.Fatalf("byte 2 = %#x, want 0x02 (carry propagated into the tail)", got[2])
	}
}

func TestBruteForceRejectsNonKeyAddress(t *testing.T) {
	s := NewSession(nil, nil, false)
	for _, addr := range []uint8{0, 1, 6, 10, 15} {
		if _, err := s.BruteForce(addr, [7]byte{}, [4]byte{}, 0, [3]byte{}, nil); err == nil {
			t.Errorf("addr=%d: expected rejection, got nil error", addr)
		}
	}
}
