package main

import (
	"em4x70reader.dev/hal"
)

// simulator is a minimal stand-in hal.Front/hal.Signals for exercising
// this command's dispatch and flag parsing without a reader attached.
// It does not encode a real EM4x70 waveform: Sample always reads as
// "no signal present", so every operation fails fast with ErrNoSignal
// the same way a reader with no tag in the field would. It exists to
// smoke-test the CLI end to end without flags or hardware; it is not a
// protocol test harness (see the rf and proto package tests for that).
type simulator struct {
	now hal.Ticks
}

func newSimulator() *simulator {
	return &simulator{}
}

func (s *simulator) Configure(divisor int) error { return nil }
func (s *simulator) ModHigh()                    {}
func (s *simulator) ModLow()                     {}
func (s *simulator) Sample() uint8               { return hal.LowThreshold }
func (s *simulator) Now() hal.Ticks {
	t := s.now
	s.now++
	return t
}
func (s *simulator) Wait(n hal.Ticks) {
	deadline := s.now + n
	for s.now < deadline {
		s.now++
	}
}
func (s *simulator) Close() error { return nil }

func (s *simulator) WatchdogKick()          {}
func (s *simulator) ButtonPressed() bool    { return false }
func (s *simulator) HostAbortPending() bool { return false }
