package main

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wire protocol spoken to a reader device over the serial transport:
// one-byte opcode, little-endian request payload, then a one-byte
// status and a variable-length reply payload. The device side (the
// embedded firmware running the protocol engine) is the out-of-scope
// hardware collaborator this command talks to; nothing in this
// package implements it.
const (
	opInfo   = 0x01
	opWrite  = 0x02
	opUnlock = 0x03
	opAuth   = 0x04
	opBrute  = 0x05
	opSetPIN = 0x06
	opSetKey = 0x07
)

const (
	statusSuccess  = 0x00
	statusSoftFail = 0x01
	statusAborted  = 0x02
)

// wireClient speaks the opcode/status framing to a reader device over
// a serial link.
type wireClient struct {
	rw io.ReadWriter
}

func newWireClient(rw io.ReadWriter) *wireClient {
	return &wireClient{rw: rw}
}

func (c *wireClient) call(op byte, payload []byte) ([]byte, error) {
	req := append([]byte{op}, payload...)
	if _, err := c.rw.Write(req); err != nil {
		return nil, fmt.Errorf("em4x70ctl: write request: %w", err)
	}
	var status [1]byte
	if _, err := io.ReadFull(c.rw, status[:]); err != nil {
		return nil, fmt.Errorf("em4x70ctl: read status: %w", err)
	}
	switch status[0] {
	case statusSuccess:
	case statusAborted:
		return nil, fmt.Errorf("em4x70ctl: device reported ABORTED")
	default:
		return nil, fmt.Errorf("em4x70ctl: device reported SOFT_FAIL")
	}
	var length [2]byte
	if _, err := io.ReadFull(c.rw, length[:]); err != nil {
		return nil, fmt.Errorf("em4x70ctl: read reply length: %w", err)
	}
	reply := make([]byte, binary.LittleEndian.Uint16(length[:]))
	if _, err := io.ReadFull(c.rw, reply); err != nil {
		return nil, fmt.Errorf("em4x70ctl: read reply: %w", err)
	}
	return reply, nil
}

func (c *wireClient) info(parity bool) ([]byte, error) {
	return c.call(opInfo, []byte{boolByte(parity)})
}

func (c *wireClient) write(parity bool, word uint16, addr uint8) ([]byte, error) {
	payload := []byte{boolByte(parity)}
	payload = binary.LittleEndian.AppendUint16(payload, word)
	payload = append(payload, addr)
	return c.call(opWrite, payload)
}

func (c *wireClient) unlock(parity bool, pin uint32) ([]byte, error) {
	payload := []byte{boolByte(parity)}
	payload = binary.LittleEndian.AppendUint32(payload, pin)
	return c.call(opUnlock, payload)
}

func (c *wireClient) auth(parity bool, rnd [7]byte, frnd [4]byte) ([]byte, error) {
	payload := []byte{boolByte(parity)}
	payload = append(payload, rnd[:]...)
	payload = append(payload, frnd[:]...)
	return c.call(opAuth, payload)
}

func (c *wireClient) brute(parity bool, addr uint8, rnd [7]byte, frnd [4]byte, start uint16, target [3]byte) ([]byte, error) {
	payload := []byte{boolByte(parity), addr}
	payload = append(payload, rnd[:]...)
	payload = append(payload, frnd[:]...)
	payload = binary.LittleEndian.AppendUint16(payload, start)
	payload = append(payload, target[:]...)
	return c.call(opBrute, payload)
}

func (c *wireClient) setPIN(parity bool, pin uint32) ([]byte, error) {
	payload := []byte{boolByte(parity)}
	payload = binary.LittleEndian.AppendUint32(payload, pin)
	return c.call(opSetPIN, payload)
}

func (c *wireClient) setKey(parity bool, key [12]byte) ([]byte, error) {
	payload := []byte{boolByte(parity)}
	payload = append(payload, key[:]...)
	return c.call(opSetKey, payload)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
