package em4x70

import "encoding/binary"

// TagImage is the 32-byte logical image of a tag's memory, as
// discovered by the operations that have run in this session. It is
// never partially updated: a failed operation leaves whatever region
// it was refreshing untouched.
//
// Layout: [0:4] UM1 (the top two bits of byte 3 are the lock bits),
// [4:8] ID, [8:24] KEY (six 16-bit words addressable 4..9), [24:32]
// UM2.
type TagImage [32]byte

const (
	offUM1 = 0
	offID  = 4
	offKey = 8
	offUM2 = 24

	// keyWordBase is the lowest addressable key-word index; the six
	// 16-bit key words occupy addresses 4 through 9.
	keyWordBase = 4
)

// UM1 returns the 32-bit UM1 block, including its lock bits.
func (t *TagImage) UM1() uint32 { return binary.LittleEndian.Uint32(t[offUM1:]) }

// ID returns the 32-bit tag ID.
func (t *TagImage) ID() uint32 { return binary.LittleEndian.Uint32(t[offID:]) }

// UM2 returns the 64-bit UM2 block.
func (t *TagImage) UM2() uint64 { return binary.LittleEndian.Uint64(t[offUM2:]) }

// KeyWord returns the 16-bit key word at addr, which must be in 4..9.
func (t *TagImage) KeyWord(addr uint8) uint16 {
	i := offKey + 2*(int(addr)-keyWordBase)
	return binary.LittleEndian.Uint16(t[i:])
}

// idBytes returns the stored ID's 4 bytes in storage (little-endian)
// order, the form [proto.BuildPIN] expects for its tagID argument.
func (t *TagImage) idBytes() [4]byte {
	var b [4]byte
	copy(b[:], t[offID:offID+4])
	return b
}

func (t *TagImage) setID(b []byte)  { copy(t[offID:offID+4], b) }
func (t *TagImage) setUM1(b []byte) { copy(t[offUM1:offUM1+4], b) }
func (t *TagImage) setUM2(b []byte) { copy(t[offUM2:offUM2+8], b) }

func (t *TagImage) setKeyWord(addr uint8, word uint16) {
	i := offKey + 2*(int(addr)-keyWordBase)
	binary.LittleEndian.PutUint16(t[i:], word)
}

// addrInRange reports whether addr fits the wire-level 4-bit block
// address field (0-15). Whether V4070 tags genuinely lack storage
// above block 9 or merely leave it one-time-programmable is unknown;
// probing would require an unsolicited write, so no caller does.
func addrInRange(addr uint8) bool {
	return addr <= 15
}
