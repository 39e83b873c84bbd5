package em4x70

import (
	"fmt"

	"em4x70reader.dev/proto"
)

// applyKeyGuess adds reflect16(k), byte-reversed into little-endian
// form, into rnd starting at the byte pair addr selects (9 -> bytes
// 0-1, 8 -> bytes 2-3, 7 -> bytes 4-5), propagating carry through the
// remaining bytes of the 7-byte array: a multi-precision add of a
// 16-bit addend into a 56-bit reflected value at a fixed byte index.
func applyKeyGuess(rnd [7]byte, k uint16, addr uint8) [7]byte {
	idx := int(9-addr) * 2
	reflected := proto.Reflect16(k)
	out := rnd

	carry := uint16(out[idx]) + uint16(byte(reflected))
	out[idx] = byte(carry)
	carry >>= 8

	carry += uint16(out[idx+1]) + uint16(byte(reflected>>8))
	out[idx+1] = byte(carry)
	carry >>= 8

	for i := idx + 2; i < len(out) && carry != 0; i++ {
		carry += uint16(out[i])
		out[i] = byte(carry)
		carry >>= 8
	}
	return out
}

// progressStride is how often BruteForce reports progress: every 256
// keys tried.
const progressStride = 256

// BruteForce searches k from start to 0xFFFF, applying each guess to
// rnd at the byte position addr selects (7, 8, or 9), running AUTH,
// and comparing the tag's g(RN) against target. The cipher itself is
// a library concern outside this package; BruteForce only knows how
// to construct candidate nonces and recognize a match. progress, if
// non-nil, is called with the current k every 256 attempts. The search
// aborts early, returning ErrAborted, if the caller's button or host
// abort signal is observed between attempts.
func (s *Session) BruteForce(addr uint8, rnd [7]byte, frnd [4]byte, start uint16, target [3]byte, progress func(k uint16)) ([2]byte, error) {
	if addr != 7 && addr != 8 && addr != 9 {
		return [2]byte{}, fmt.Errorf("em4x70: brute force: address %d is not brute-forceable (must be 7, 8, or 9)", addr)
	}

	authn := s.authFn
	if authn == nil {
		authn = s.auth
	}

	var key [2]byte
	err := s.run(func() error {
		for k := uint32(start); k <= 0xFFFF; k++ {
			if s.Signals.ButtonPressed() || s.Signals.HostAbortPending() {
				return ErrAborted
			}
			s.Signals.WatchdogKick()

			if progress != nil && uint16(k) != start && uint16(k)%progressStride == 0 {
				progress(uint16(k))
			}

			guess := applyKeyGuess(rnd, uint16(k), addr)
			grn, err := authn(guess, frnd)
			if err != nil {
				continue
			}
			if grn == target {
				key = [2]byte{byte(k >> 8), byte(k)}
				return nil
			}
		}
		return ErrKeyNotFound
	})
	return key, err
}
