// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package postep256test implements an in-memory PoStep256 for testing code
// that uses the postep256 driver without hardware.
package postep256test

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

// Register offsets understood by Sim.
const (
	regLoopback         = 0x01
	regRunSleep         = 0x03
	regAddress          = 0x04
	regDriverMode       = 0x05
	regPWM              = 0x06
	regInfo             = 0x0A
	regVoltage          = 0x10
	regTemperature      = 0x11
	regPinStatus        = 0x12
	regDriverStatus     = 0x13
	regReadDriverMode   = 0x14
	regFaults           = 0x25
	regResetFaults      = 0x35
	regSaveSettings     = 0x3F
	regPosition         = 0x40
	regCurrentSpeed     = 0x44
	regReadRequested    = 0x45
	regReadInvert       = 0x46
	regSetPosition      = 0x50
	regZero             = 0x5E
	regStop             = 0x5F
	regSystemReset      = 0x60
	runValue            = 0xDA
	sleepValue          = 0x0F
	modeDefault         = 0x01
	modePositionControl = 0x04
	modeBinxButtons     = 0x05
	modeAuto            = 0x06
)

// readback maps a settings register to the register it is read back from.
var readback = map[byte]byte{
	0x30: 0x20, // current full scale
	0x31: 0x21, // current idle
	0x32: 0x22, // current overheat
	0x33: 0x23, // step mode
	0x34: 0x24, // temperature limit
	0x51: 0x41, // max speed
	0x52: 0x42, // acceleration
	0x53: 0x43, // deceleration
	0x54: regReadRequested,
	0x55: regReadInvert,
}

// Sim is an i2c.Bus with a single simulated PoStep256 attached.
//
// Settings written to the driver can be read back from their matching
// register. In ModeAuto the motor turns at the requested speed while the
// driver is in the run state; Advance moves the position accordingly.
type Sim struct {
	sync.Mutex
	// Addr is the address the simulated driver answers to.
	Addr uint16
	// Err, when set, is returned by every Tx without touching the simulated
	// registers.
	Err error
	// Ops records every successful transaction.
	Ops []i2ctest.IO

	// Chip state, readable through the matching registers.
	Info        [5]byte
	Voltage     physic.ElectricPotential
	Temperature physic.Temperature
	Pins        uint8
	Status      uint8
	Faults      uint8
	Mode        uint8
	Running     bool
	Position    int32
	PWM         [6]byte
	Saved       int

	settings map[byte][]byte
	loopback []byte
	pointer  byte
	fraction time.Duration
}

// New returns a simulated driver at addr with power-on defaults.
func New(addr uint16) *Sim {
	s := &Sim{Addr: addr}
	s.reset()
	return s
}

func (s *Sim) reset() {
	s.Info = [5]byte{0x56, 1, 0, 1, 2}
	s.Voltage = 24 * physic.Volt
	s.Temperature = physic.ZeroCelsius + 25*physic.Kelvin
	s.Mode = modeDefault
	s.Running = false
	s.Position = 0
	s.Faults = 0
	s.settings = map[byte][]byte{
		0x20: {123, 3},
		0x21: {61, 3},
		0x22: {61, 3},
		0x23: {0},
		0x24: {80},
		0x41: {0x10, 0x27},
		0x42: {0xE8, 0x03},
		0x43: {0xE8, 0x03},
		0x45: {0, 0},
		0x46: {0},
	}
}

// String implements i2c.Bus.
func (s *Sim) String() string {
	return fmt.Sprintf("postep256test.Sim{0x%02X}", s.Addr)
}

// SetSpeed implements i2c.Bus.
func (s *Sim) SetSpeed(f physic.Frequency) error {
	return nil
}

// Close implements i2c.BusCloser.
func (s *Sim) Close() error {
	return nil
}

// Tx implements i2c.Bus.
//
// The first written byte selects the register. Any further bytes are written
// to it. When r is not empty, it is filled from the selected register.
func (s *Sim) Tx(addr uint16, w, r []byte) error {
	s.Lock()
	defer s.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if addr != s.Addr {
		return fmt.Errorf("postep256test: no device at 0x%02X", addr)
	}
	if len(w) != 0 {
		if err := s.write(w[0], w[1:]); err != nil {
			return err
		}
	}
	if len(r) != 0 {
		s.read(r)
	}
	s.Ops = append(s.Ops, i2ctest.IO{Addr: addr, W: append([]byte(nil), w...), R: append([]byte(nil), r...)})
	return nil
}

// Advance moves the motor as if it had turned for d at its current speed.
func (s *Sim) Advance(d time.Duration) {
	s.Lock()
	defer s.Unlock()
	// Keep sub-step remainders so many short advances add up.
	total := time.Duration(s.speed())*d + s.fraction
	s.Position += int32(total / time.Second)
	s.fraction = total % time.Second
}

// Setting returns the raw bytes read back for a settings register.
func (s *Sim) Setting(reg byte) []byte {
	s.Lock()
	defer s.Unlock()
	return append([]byte(nil), s.settings[reg]...)
}

func (s *Sim) write(reg byte, data []byte) error {
	if reg < 0x01 || reg > 0x60 {
		return fmt.Errorf("postep256test: invalid register 0x%02X", reg)
	}
	s.pointer = reg
	if rb, ok := readback[reg]; ok {
		if len(data) == 0 {
			return nil
		}
		s.settings[rb] = append([]byte(nil), data...)
		return nil
	}
	switch reg {
	case regLoopback:
		if len(data) != 0 {
			s.loopback = append([]byte(nil), data...)
		}
	case regRunSleep:
		if len(data) == 1 {
			switch data[0] {
			case runValue:
				s.Running = true
			case sleepValue:
				s.Running = false
			}
		}
	case regAddress:
		if len(data) == 2 && uint16(data[0]) == s.Addr {
			s.Addr = uint16(data[1])
		}
	case regDriverMode:
		if len(data) == 1 {
			s.Mode = data[0]
		}
	case regPWM:
		copy(s.PWM[:], data)
	case regResetFaults:
		s.Faults = 0
	case regSaveSettings:
		s.Saved++
	case regSetPosition:
		if len(data) == 4 && (s.Mode == modePositionControl || s.Mode == modeBinxButtons) {
			s.Position = int32(binary.LittleEndian.Uint32(data))
		}
	case regZero:
		s.Position = 0
		s.fraction = 0
	case regStop:
		s.Running = false
	case regSystemReset:
		s.reset()
	}
	return nil
}

func (s *Sim) read(r []byte) {
	var b []byte
	switch s.pointer {
	case regLoopback:
		b = append([]byte{regLoopback}, s.loopback...)
	case regInfo:
		b = s.Info[:]
	case regVoltage:
		b = le16(uint16(int16(s.Voltage / (72 * physic.MilliVolt))))
	case regTemperature:
		b = le16(uint16(int16((s.Temperature - physic.ZeroCelsius) / (125 * physic.MilliKelvin))))
	case regPinStatus:
		b = []byte{s.Pins}
	case regDriverStatus:
		b = []byte{s.Status}
	case regReadDriverMode:
		b = []byte{s.Mode}
	case regFaults:
		b = []byte{s.Faults}
	case regPosition:
		b = make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(s.Position))
	case regCurrentSpeed:
		b = le16(uint16(int16(s.speed())))
	default:
		b = s.settings[s.pointer]
	}
	n := copy(r, b)
	for i := n; i < len(r); i++ {
		r[i] = 0
	}
}

// speed is the signed motor speed in steps per second.
func (s *Sim) speed() int64 {
	if !s.Running || s.Mode != modeAuto {
		return 0
	}
	v := int64(binary.LittleEndian.Uint16(pad(s.settings[regReadRequested], 2)))
	if b := s.settings[regReadInvert]; len(b) != 0 && b[0]&1 != 0 {
		v = -v
	}
	return v
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func pad(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	return append(append([]byte(nil), b...), make([]byte, n-len(b))...)
}

var _ i2c.BusCloser = &Sim{}
