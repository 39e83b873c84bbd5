package proto

import (
	"bytes"
	"testing"
)

// bitsOfBytes expands a byte slice into its arrival-order bit
// sequence, MSB of the first transmitted group first — the inverse of
// what PackBits reassembles.
func bitsOfBytes(want []byte) []byte {
	n := len(want)
	out := make([]byte, 0, n*8)
	for g := 0; g < n; g++ {
		b := want[n-1-g]
		for i := 7; i >= 0; i-- {
			out = append(out, (b>>i)&1)
		}
	}
	return out
}

func TestPackBitsID(t *testing.T) {
	// 32 decoded bits representing 0x12345678 arrive; packed bytes
	// come out reversed with respect to arrival group order.
	want := []byte{0x78, 0x56, 0x34, 0x12}
	got := PackBits(bitsOfBytes(want))
	if !bytes.Equal(got, want) {
		t.Fatalf("PackBits = %x, want %x", got, want)
	}
}

func TestPackBitsReissuedID(t *testing.T) {
	want := []byte{0xBE, 0xBA, 0xFE, 0xCA}
	got := PackBits(bitsOfBytes(want))
	if !bytes.Equal(got, want) {
		t.Fatalf("PackBits = %x, want %x", got, want)
	}
}

func TestPackBitsRoundTrip(t *testing.T) {
	for _, n := range []int{20, 32, 64} {
		padded := n
		if padded%8 != 0 {
			padded += 8 - padded%8
		}
		raw := make([]byte, n)
		for i := range raw {
			raw[i] = byte((i * 7) % 2)
		}
		packed := PackBits(raw)
		if len(packed) != padded/8 {
			t.Fatalf("n=%d: packed length = %d, want %d", n, len(packed), padded/8)
		}
		// Re-expanding the packed bytes and truncating padding
		// reproduces the original bits exactly.
		expanded := bitsOfBytes(packed)
		got := expanded[:n]
		for i := range got {
			if got[i] != raw[i] {
				t.Fatalf("n=%d: round trip mismatch at bit %d: got %d want %d", n, i, got[i], raw[i])
			}
		}
	}
}
