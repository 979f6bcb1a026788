// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package postep256

import (
	"encoding/binary"

	"periph.io/x/conn/v3/physic"
)

// register is an offset in the PoStep256 register map. See the "I2C
// protocol" section of the PoStep user manual for details.
//
// The chip exposes separate offsets for writing and reading back most
// settings.
type register uint8

const (
	regLoopback             register = 0x01 // 4 bytes echoed back
	regRunSleep             register = 0x03 // uint8 write
	regAddress              register = 0x04 // [current, new] write
	regDriverMode           register = 0x05 // uint8 write
	regPWM                  register = 0x06 // 6 bytes write
	regInfo                 register = 0x0A // 5 bytes read
	regVoltage              register = 0x10 // int16 read
	regTemperature          register = 0x11 // int16 read
	regPinStatus            register = 0x12 // uint8 read
	regDriverStatus         register = 0x13 // uint8 read
	regReadDriverMode       register = 0x14 // uint8 read
	regReadCurrentFullScale register = 0x20 // [torque, exponent] read
	regReadCurrentIdle      register = 0x21 // [torque, exponent] read
	regReadCurrentOverheat  register = 0x22 // [torque, exponent] read
	regReadStepMode         register = 0x23 // uint8 read, low nibble
	regReadTemperatureLimit register = 0x24 // uint8 read
	regFaults               register = 0x25 // uint8 read
	regCurrentFullScale     register = 0x30 // [torque, exponent] write
	regCurrentIdle          register = 0x31 // [torque, exponent] write
	regCurrentOverheat      register = 0x32 // [torque, exponent] write
	regStepMode             register = 0x33 // uint8 write
	regTemperatureLimit     register = 0x34 // uint8 write
	regResetFaults          register = 0x35 // no data
	regSaveSettings         register = 0x3F // no data
	regPosition             register = 0x40 // int32 read
	regReadMaxSpeed         register = 0x41 // uint16 read
	regReadAcceleration     register = 0x42 // uint16 read
	regReadDeceleration     register = 0x43 // uint16 read
	regCurrentSpeed         register = 0x44 // int16 read
	regReadRequestedSpeed   register = 0x45 // uint16 read
	regReadInvertDirection  register = 0x46 // uint8 read
	regSetPosition          register = 0x50 // int32 write
	regMaxSpeed             register = 0x51 // uint16 write
	regAcceleration         register = 0x52 // uint16 write
	regDeceleration         register = 0x53 // uint16 write
	regRequestedSpeed       register = 0x54 // uint16 write
	regInvertDirection      register = 0x55 // uint8 write
	regZero                 register = 0x5E // no data
	regStop                 register = 0x5F // no data
	regSystemReset          register = 0x60 // no data
)

// writeRegister writes data to a register in a single I²C transaction. With no
// data, the register offset alone acts as a command.
func (d *Dev) writeRegister(reg register, data ...byte) error {
	w := make([]byte, 1+len(data))
	w[0] = byte(reg)
	copy(w[1:], data)
	return d.c.Tx(w, nil)
}

// readRegister reads length bytes from a register in a single combined
// write/read I²C transaction.
func (d *Dev) readRegister(reg register, length int) ([]byte, error) {
	r := make([]byte, length)
	if err := d.c.Tx([]byte{byte(reg)}, r); err != nil {
		return nil, err
	}
	return r, nil
}

// readUint8 reads an 8 bit value from a register.
func (d *Dev) readUint8(reg register) (uint8, error) {
	b, err := d.readRegister(reg, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// readUint16 reads a little endian 16 bit value from a register.
func (d *Dev) readUint16(reg register) (uint16, error) {
	b, err := d.readRegister(reg, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// readUint32 reads a little endian 32 bit value from a register.
func (d *Dev) readUint32(reg register) (uint32, error) {
	b, err := d.readRegister(reg, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// writeUint16 writes a little endian 16 bit value to a register.
func (d *Dev) writeUint16(reg register, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return d.writeRegister(reg, b[:]...)
}

// writeUint32 writes a little endian 32 bit value to a register.
func (d *Dev) writeUint32(reg register, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return d.writeRegister(reg, b[:]...)
}

// Current registers hold a torque value and a binary exponent:
//
//	I = 65mA * torque / 2^exponent
//
// The encoder starts at exponent 3 and halves the torque until it fits in a
// byte, which keeps the most resolution available.
const (
	currentUnit          = 65 * physic.MilliAmpere
	currentTorquePerAmp  = 123
	currentStartExponent = 3
)

// encodeCurrent converts a current to the [torque, exponent] register pair.
func encodeCurrent(c physic.ElectricCurrent) [2]byte {
	torque := int64(c) * currentTorquePerAmp / int64(physic.Ampere)
	exp := uint8(currentStartExponent)
	for torque > 0xFF {
		exp--
		torque >>= 1
	}
	return [2]byte{byte(torque), exp}
}

// decodeCurrent converts a [torque, exponent] register pair to a current.
func decodeCurrent(b []byte) physic.ElectricCurrent {
	return (physic.ElectricCurrent(b[0]) * currentUnit) >> b[1]
}
