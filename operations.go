package em4x70

import (
	"fmt"

	"em4x70reader.dev/proto"
	"em4x70reader.dev/rf"
)

// addrPINUpper and addrPINLower are the block addresses the tag
// reserves for the write-only PIN halves, between the ID block (1)
// and the key words (4-9).
const (
	addrPINUpper uint8 = 3
	addrPINLower uint8 = 2
)

func (s *Session) readID() error {
	bs := proto.BuildID(s.Parity)
	bits, err := rf.SendAndRead(s.Front, &s.Log, bs.Send, bs.ReceiveBits)
	if err != nil {
		return err
	}
	s.Image.setID(proto.PackBits(bits))
	s.hasID = true
	return nil
}

func (s *Session) readUM1() error {
	bs := proto.BuildUM1(s.Parity)
	bits, err := rf.SendAndRead(s.Front, &s.Log, bs.Send, bs.ReceiveBits)
	if err != nil {
		return err
	}
	s.Image.setUM1(proto.PackBits(bits))
	return nil
}

func (s *Session) readUM2() error {
	bs := proto.BuildUM2(s.Parity)
	bits, err := rf.SendAndRead(s.Front, &s.Log, bs.Send, bs.ReceiveBits)
	if err != nil {
		return err
	}
	s.Image.setUM2(proto.PackBits(bits))
	return nil
}

func (s *Session) auth(rnd [7]byte, frnd [4]byte) ([3]byte, error) {
	var grn [3]byte
	bs := proto.BuildAuth(s.Parity, rnd, frnd)
	bits, err := rf.SendAndRead(s.Front, &s.Log, bs.Send, bs.ReceiveBits)
	if err != nil {
		return grn, err
	}
	copy(grn[:], proto.PackBits(bits))
	return grn, nil
}

// unlockPIN sends the PIN transaction. The command carries the tag's
// own ID, so the caller must have completed readID first.
func (s *Session) unlockPIN(pin uint32) error {
	if !s.hasID {
		return fmt.Errorf("em4x70: unlock: tag id not read")
	}
	bs := proto.BuildPIN(s.Parity, s.Image.idBytes(), pin)
	bits, err := rf.SendAndWaitAndRead(s.Front, &s.Log, bs.Send)
	if err != nil {
		return err
	}
	s.Image.setID(proto.PackBits(bits))
	return nil
}

func (s *Session) writeBlock(word uint16, addr uint8) error {
	bs, err := proto.BuildWrite(s.Parity, word, addr)
	if err != nil {
		return err
	}
	return rf.SendAndAck(s.Front, &s.Log, bs.Send)
}

// ReadUM1 reads the tag's UM1 block into Image.
func (s *Session) ReadUM1() error {
	return s.run(s.readUM1)
}

// ReadUM2 reads the tag's UM2 block into Image. A V4070 tag does not
// answer this command at all; callers that only need variant
// detection should use Identify instead of treating this error as
// fatal.
func (s *Session) ReadUM2() error {
	return s.run(s.readUM2)
}

// Identify reads the tag ID and UM1 block, then attempts UM2 to tell
// an EM4170 (UM2 present) from a V4070 (UM2 absent). The UM2 attempt
// failing does not fail Identify.
func (s *Session) Identify() (Variant, error) {
	var variant Variant
	err := s.run(func() error {
		if err := s.readID(); err != nil {
			return err
		}
		if err := s.readUM1(); err != nil {
			return err
		}
		if s.readUM2() == nil {
			variant = VariantEM4170
		} else {
			variant = VariantV4070
		}
		return nil
	})
	return variant, err
}

// Authenticate runs the AUTH transaction with the given 56-bit reader
// nonce and 28-bit reader response, and returns the tag's 20-bit g(RN)
// left-aligned in 3 bytes.
func (s *Session) Authenticate(rnd [7]byte, frnd [4]byte) ([3]byte, error) {
	var grn [3]byte
	err := s.run(func() error {
		var aerr error
		grn, aerr = s.auth(rnd, frnd)
		return aerr
	})
	return grn, err
}

// Unlock reads the tag ID, then sends pin as the PIN transaction,
// storing the tag's re-issued ID back into Image.
func (s *Session) Unlock(pin uint32) error {
	return s.run(func() error {
		if err := s.readID(); err != nil {
			return err
		}
		return s.unlockPIN(pin)
	})
}

// WriteBlock writes word to the 16-bit block at addr (0-15).
func (s *Session) WriteBlock(word uint16, addr uint8) error {
	if !addrInRange(addr) {
		return fmt.Errorf("em4x70: write block: address %d out of range 0-15", addr)
	}
	return s.run(func() error {
		return s.writeBlock(word, addr)
	})
}

// WritePIN programs a new PIN by writing its lower 16 bits to the
// upper PIN block and its upper 16 bits to the lower PIN block (the
// tag's own addressing swaps them), then confirms the write with an
// Unlock-equivalent PIN transaction.
func (s *Session) WritePIN(pin uint32) error {
	return s.run(func() error {
		if err := s.readID(); err != nil {
			return err
		}
		if err := s.writeBlock(uint16(pin), addrPINUpper); err != nil {
			return err
		}
		if err := s.writeBlock(uint16(pin>>16), addrPINLower); err != nil {
			return err
		}
		return s.unlockPIN(pin)
	})
}

// WriteKey writes the 96-bit key to block addresses 9 down to 4, each
// 16-bit word built little-endian from consecutive byte pairs.
func (s *Session) WriteKey(key [12]byte) error {
	return s.run(func() error {
		for i := 0; i <= 5; i++ {
			word := uint16(key[2*i+1])<<8 | uint16(key[2*i])
			addr := uint8(9 - i)
			if err := s.writeBlock(word, addr); err != nil {
				return err
			}
		}
		return nil
	})
}
